package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/quejas/complaint-service/internal/domain"
)

// ComplaintRepository encapsulates complaint persistence. Lookups are keyed by tracking code.
type ComplaintRepository interface {
	Create(ctx context.Context, complaint *domain.Complaint) error
	GetByTrackingCode(ctx context.Context, code string) (*domain.Complaint, error)
	ListAll(ctx context.Context) ([]domain.Complaint, error)
	UpdateStatus(ctx context.Context, code, status string) error
}

type complaintRepository struct {
	db DB
}

// NewComplaintRepository returns a Postgres-backed implementation.
func NewComplaintRepository(db DB) ComplaintRepository {
	return &complaintRepository{db: db}
}

func (r *complaintRepository) Create(ctx context.Context, complaint *domain.Complaint) error {
	const query = `
        INSERT INTO complaints (tracking_code, category, body, status)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		complaint.TrackingCode,
		complaint.Category,
		complaint.Body,
		complaint.Status,
	).Scan(&complaint.ID, &complaint.CreatedAt)
	return translateInsertError(err)
}

func (r *complaintRepository) GetByTrackingCode(ctx context.Context, code string) (*domain.Complaint, error) {
	const query = `
        SELECT id, tracking_code, category, body, status, created_at
        FROM complaints WHERE tracking_code=$1`

	var complaint domain.Complaint
	if err := r.db.QueryRow(ctx, query, code).Scan(
		&complaint.ID,
		&complaint.TrackingCode,
		&complaint.Category,
		&complaint.Body,
		&complaint.Status,
		&complaint.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &complaint, nil
}

func (r *complaintRepository) ListAll(ctx context.Context) ([]domain.Complaint, error) {
	const query = `
        SELECT id, tracking_code, category, body, status, created_at
        FROM complaints ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanComplaints(rows)
}

func (r *complaintRepository) UpdateStatus(ctx context.Context, code, status string) error {
	const query = `UPDATE complaints SET status=$1 WHERE tracking_code=$2`

	cmd, err := r.db.Exec(ctx, query, status, code)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanComplaints(rows pgx.Rows) ([]domain.Complaint, error) {
	result := make([]domain.Complaint, 0)
	for rows.Next() {
		var complaint domain.Complaint
		if err := rows.Scan(
			&complaint.ID,
			&complaint.TrackingCode,
			&complaint.Category,
			&complaint.Body,
			&complaint.Status,
			&complaint.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, complaint)
	}
	return result, rows.Err()
}
