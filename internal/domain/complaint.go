package domain

import "time"

// StatusReceived is the status every complaint starts with.
const StatusReceived = "Recibida"

// Complaint is a citizen complaint identified publicly by its tracking code.
// Only Status changes after creation.
type Complaint struct {
	ID           int64
	TrackingCode string
	Category     string
	Body         string
	Status       string
	CreatedAt    time.Time
}
