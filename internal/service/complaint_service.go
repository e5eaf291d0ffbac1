package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/quejas/complaint-service/internal/domain"
	"github.com/quejas/complaint-service/internal/events"
	"github.com/quejas/complaint-service/internal/repository"
	apperrors "github.com/quejas/complaint-service/pkg/util/errorutil"
)

// ComplaintService is the complaint ledger: intake, lookup by tracking code, listing and status updates.
// It never retries; a DuplicateCode error tells the caller to try again.
type ComplaintService struct {
	complaints repository.ComplaintRepository
	dispatcher events.Dispatcher
	nextCode   func() string
	logger     *zap.Logger
}

// ComplaintDependencies bundles collaborators for the complaint service.
type ComplaintDependencies struct {
	ComplaintRepo repository.ComplaintRepository
	Dispatcher    events.Dispatcher
	// CodeGenerator defaults to NewTrackingCodeGenerator().Next.
	CodeGenerator func() string
	Logger        *zap.Logger
}

// NewComplaintService constructs the service.
func NewComplaintService(deps ComplaintDependencies) *ComplaintService {
	nextCode := deps.CodeGenerator
	if nextCode == nil {
		nextCode = NewTrackingCodeGenerator().Next
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ComplaintService{
		complaints: deps.ComplaintRepo,
		dispatcher: deps.Dispatcher,
		nextCode:   nextCode,
		logger:     logger,
	}
}

// Create stores a new complaint with the initial status and a freshly generated tracking code.
func (s *ComplaintService) Create(ctx context.Context, category, body string) (*domain.Complaint, error) {
	category = strings.TrimSpace(category)
	body = strings.TrimSpace(body)
	missing := make([]string, 0, 2)
	if category == "" {
		missing = append(missing, "category")
	}
	if body == "" {
		missing = append(missing, "body")
	}
	if len(missing) > 0 {
		return nil, apperrors.NewValidationError("missing required fields", map[string]any{"fields": missing})
	}

	complaint := &domain.Complaint{
		TrackingCode: s.nextCode(),
		Category:     category,
		Body:         body,
		Status:       domain.StatusReceived,
	}
	if err := s.complaints.Create(ctx, complaint); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, apperrors.NewDuplicateCode(complaint.TrackingCode, err)
		}
		return nil, apperrors.NewStorageUnavailable(fmt.Errorf("create complaint: %w", err))
	}

	s.publishEvent(ctx, events.Event{
		Type:         events.EventComplaintCreated,
		TrackingCode: complaint.TrackingCode,
		Payload: events.ComplaintCreatedPayload{
			Category: complaint.Category,
			Status:   complaint.Status,
		},
	})
	return complaint, nil
}

// GetByCode returns the full complaint record for a tracking code.
func (s *ComplaintService) GetByCode(ctx context.Context, code string) (*domain.Complaint, error) {
	complaint, err := s.complaints.GetByTrackingCode(ctx, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, complaintNotFound(code)
		}
		return nil, apperrors.NewStorageUnavailable(fmt.Errorf("get complaint: %w", err))
	}
	return complaint, nil
}

// ListAll returns every complaint, newest first.
func (s *ComplaintService) ListAll(ctx context.Context) ([]domain.Complaint, error) {
	complaints, err := s.complaints.ListAll(ctx)
	if err != nil {
		return nil, apperrors.NewStorageUnavailable(fmt.Errorf("list complaints: %w", err))
	}
	if complaints == nil {
		complaints = []domain.Complaint{}
	}
	return complaints, nil
}

// UpdateStatus overwrites the status. Any value is accepted; there is no transition table.
func (s *ComplaintService) UpdateStatus(ctx context.Context, code, status string) error {
	status = strings.TrimSpace(status)
	if status == "" {
		return apperrors.NewValidationError("missing required fields", map[string]any{"fields": []string{"status"}})
	}

	if err := s.complaints.UpdateStatus(ctx, code, status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return complaintNotFound(code)
		}
		return apperrors.NewStorageUnavailable(fmt.Errorf("update complaint status: %w", err))
	}

	s.publishEvent(ctx, events.Event{
		Type:         events.EventComplaintStatusChanged,
		TrackingCode: code,
		Payload:      events.ComplaintStatusChangedPayload{NewStatus: status},
	})
	return nil
}

func complaintNotFound(code string) error {
	return apperrors.NewNotFound("complaint", map[string]any{"tracking_code": code})
}

func (s *ComplaintService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed",
			zap.String("event_type", string(event.Type)),
			zap.String("tracking_code", event.TrackingCode),
			zap.Error(err))
	}
}
