package repository

import (
	"context"

	"github.com/quejas/complaint-service/internal/domain"
)

// CredentialRepository defines persistence access for login credentials.
type CredentialRepository interface {
	Create(ctx context.Context, credential *domain.Credential) error
	GetByUsername(ctx context.Context, username string) (*domain.Credential, error)
}

type credentialRepository struct {
	db DB
}

// NewCredentialRepository returns a Postgres-backed implementation.
func NewCredentialRepository(db DB) CredentialRepository {
	return &credentialRepository{db: db}
}

func (r *credentialRepository) Create(ctx context.Context, credential *domain.Credential) error {
	const query = `
        INSERT INTO credentials (username, password_hash)
        VALUES ($1, $2)
        RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		credential.Username,
		credential.PasswordHash,
	).Scan(&credential.ID, &credential.CreatedAt)
	return translateInsertError(err)
}

func (r *credentialRepository) GetByUsername(ctx context.Context, username string) (*domain.Credential, error) {
	const query = `
        SELECT id, username, password_hash, created_at
        FROM credentials WHERE username=$1`

	var credential domain.Credential
	if err := r.db.QueryRow(ctx, query, username).Scan(
		&credential.ID,
		&credential.Username,
		&credential.PasswordHash,
		&credential.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &credential, nil
}
