package domain

import "time"

// Credential is a username with its bcrypt password hash.
type Credential struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}
