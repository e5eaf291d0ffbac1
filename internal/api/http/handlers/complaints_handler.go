package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/quejas/complaint-service/internal/api/dto"
	"github.com/quejas/complaint-service/internal/domain"
	"github.com/quejas/complaint-service/internal/service"
	apperrors "github.com/quejas/complaint-service/pkg/util/errorutil"
)

// ComplaintsHandler exposes the complaint ledger.
type ComplaintsHandler struct {
	service        *service.ComplaintService
	createAttempts int
	logger         *zap.Logger
}

// NewComplaintsHandler constructs handler. createAttempts bounds retries on tracking-code collisions.
func NewComplaintsHandler(complaintService *service.ComplaintService, createAttempts int, logger *zap.Logger) *ComplaintsHandler {
	if createAttempts < 1 {
		createAttempts = 1
	}
	return &ComplaintsHandler{service: complaintService, createAttempts: createAttempts, logger: logger}
}

// Create POST /api/quejas.
func (h *ComplaintsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateComplaintRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	var (
		complaint *domain.Complaint
		err       error
	)
	for attempt := 1; attempt <= h.createAttempts; attempt++ {
		complaint, err = h.service.Create(c.UserContext(), req.Category, req.Body)
		if !apperrors.HasCode(err, apperrors.CodeDuplicateCode) {
			break
		}
		h.logger.Warn("tracking code collision",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", h.createAttempts))
	}
	if err != nil {
		return err
	}
	return c.JSON(dto.CreateComplaintResponse{TrackingCode: complaint.TrackingCode})
}

// List GET /api/quejas.
func (h *ComplaintsHandler) List(c *fiber.Ctx) error {
	complaints, err := h.service.ListAll(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.ComplaintResponse, 0, len(complaints))
	for i := range complaints {
		items = append(items, dto.NewComplaintResponse(&complaints[i]))
	}
	return c.JSON(items)
}

// Get GET /api/quejas/:code.
func (h *ComplaintsHandler) Get(c *fiber.Ctx) error {
	complaint, err := h.service.GetByCode(c.UserContext(), c.Params("code"))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewComplaintResponse(complaint))
}

// UpdateStatus PUT /api/quejas/:code.
func (h *ComplaintsHandler) UpdateStatus(c *fiber.Ctx) error {
	var req dto.UpdateStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.service.UpdateStatus(c.UserContext(), c.Params("code"), req.Status); err != nil {
		return err
	}
	return c.JSON(dto.SuccessResponse{Success: true, Message: "complaint updated"})
}
