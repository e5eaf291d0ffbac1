package dto

import (
	"strings"
	"time"

	"github.com/quejas/complaint-service/internal/domain"
)

// CreateComplaintRequest payload.
type CreateComplaintRequest struct {
	Category string `json:"category" validate:"required,max=20"`
	Body     string `json:"body" validate:"required"`
}

// Normalize trims the fields so length limits apply to the stored values.
func (r *CreateComplaintRequest) Normalize() {
	r.Category = strings.TrimSpace(r.Category)
	r.Body = strings.TrimSpace(r.Body)
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,max=50"`
}

// Normalize trims the status.
func (r *UpdateStatusRequest) Normalize() {
	r.Status = strings.TrimSpace(r.Status)
}

// CreateComplaintResponse returns the tracking code the complainant keeps.
type CreateComplaintResponse struct {
	TrackingCode string `json:"trackingCode"`
}

// ComplaintResponse is the full public view of a complaint.
type ComplaintResponse struct {
	ID           int64     `json:"id"`
	TrackingCode string    `json:"trackingCode"`
	Category     string    `json:"category"`
	Body         string    `json:"body"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}

// SuccessResponse acknowledges a mutation.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// NewComplaintResponse maps the domain record.
func NewComplaintResponse(c *domain.Complaint) ComplaintResponse {
	return ComplaintResponse{
		ID:           c.ID,
		TrackingCode: c.TrackingCode,
		Category:     c.Category,
		Body:         c.Body,
		Status:       c.Status,
		CreatedAt:    c.CreatedAt,
	}
}
