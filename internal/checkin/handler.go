package checkin

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gatepass/backend/internal/middleware"
	"github.com/gatepass/backend/internal/models"
	"github.com/gatepass/backend/pkg/response"
)

// ScanRequest is the body for POST /scan.
type ScanRequest struct {
	Code string `json:"code" binding:"required"`
}

// TrailLister reads the admission audit trail of a registration.
type TrailLister interface {
	ListCheckInsByRegistration(ctx context.Context, registrationID uuid.UUID) ([]models.CheckInRecord, error)
}

// Handler handles verifier endpoints.
type Handler struct {
	protocol *Protocol
	trail    TrailLister
}

// NewHandler creates a check-in handler. trail may be nil, which disables Trail.
func NewHandler(protocol *Protocol, trail TrailLister) *Handler {
	return &Handler{protocol: protocol, trail: trail}
}

// Scan handles POST /scan.
func (h *Handler) Scan(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "code required")
		return
	}
	res, err := h.protocol.VerifyScan(c.Request.Context(), req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// CheckIn handles POST /registrations/:id/check-in.
func (h *Handler) CheckIn(c *gin.Context) {
	h.gate(c, h.protocol.CheckIn)
}

// CheckOut handles POST /registrations/:id/check-out.
func (h *Handler) CheckOut(c *gin.Context) {
	h.gate(c, h.protocol.CheckOut)
}

func (h *Handler) gate(c *gin.Context, fn func(ctx context.Context, id, verifierID uuid.UUID) (*models.CheckInRecord, error)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	rec, err := fn(c.Request.Context(), id, middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rec)
}

// Trail handles GET /registrations/:id/check-ins.
func (h *Handler) Trail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	if h.trail == nil {
		response.ServiceUnavailable(c, "check-in history unavailable")
		return
	}
	list, err := h.trail.ListCheckInsByRegistration(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to list check-ins")
		return
	}
	if list == nil {
		list = []models.CheckInRecord{}
	}
	response.OK(c, list)
}
