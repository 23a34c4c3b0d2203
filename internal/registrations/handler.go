package registrations

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatepass/backend/internal/events"
	"github.com/gatepass/backend/internal/identity"
	"github.com/gatepass/backend/internal/lifecycle"
	"github.com/gatepass/backend/internal/middleware"
	"github.com/gatepass/backend/internal/models"
	"github.com/gatepass/backend/pkg/apperr"
	"github.com/gatepass/backend/pkg/response"
)

// RegisterRequest is the body for POST /events/:id/register.
type RegisterRequest struct {
	Email         string          `json:"email" binding:"required,email"`
	FullName      string          `json:"full_name" binding:"required"`
	FormResponses json.RawMessage `json:"form_responses,omitempty"`
}

// TransitionRequest is the body for POST /registrations/:id/transition.
type TransitionRequest struct {
	Action lifecycle.Action `json:"action" binding:"required"`
}

// BulkRequest is the body for POST /events/:id/registrations/bulk.
type BulkRequest struct {
	RegistrationIDs []uuid.UUID               `json:"registration_ids" binding:"required"`
	Status          models.RegistrationStatus `json:"status" binding:"required"`
}

// Lister is the read path used by list endpoints.
type Lister interface {
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Registration, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Registration, error)
}

// Handler handles registration HTTP endpoints.
type Handler struct {
	svc    *Service
	repo   Lister
	logger *zap.Logger
}

// NewHandler creates a registrations handler.
func NewHandler(svc *Service, repo Lister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, repo: repo, logger: logger}
}

// Register handles POST /events/:id/register. Works for guests; a signed-in caller owns the registration.
func (h *Handler) Register(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	in := RegisterInput{
		EventID:       eventID,
		Email:         req.Email,
		FullName:      req.FullName,
		FormResponses: req.FormResponses,
	}
	// Only the account that owns the email gets the ticket linked; anything else stays a guest
	// ticket so the real owner can claim it on login.
	if uid := middleware.UserID(c); uid != uuid.Nil && identity.NormalizeEmail(middleware.UserEmail(c)) == identity.NormalizeEmail(req.Email) {
		in.UserID = &uid
	}
	reg, err := h.svc.Register(c.Request.Context(), in)
	if err != nil {
		if !errors.Is(err, apperr.ErrAlreadyRegistered) && !errors.Is(err, apperr.ErrNotFound) {
			h.logger.Error("create registration failed", zap.Error(err), zap.String("event_id", eventID.String()))
		}
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{
		"registration": reg,
		"qr_code":      reg.QRCode,
		"ticket_link":  reg.TicketLink,
	})
}

// ListByEvent handles GET /events/:id/registrations. Call after events.RequireOrganizer.
func (h *Handler) ListByEvent(c *gin.Context) {
	e := events.FromContext(c)
	list, err := h.repo.ListByEvent(c.Request.Context(), e.ID)
	if err != nil {
		h.logger.Error("list registrations failed", zap.Error(err), zap.String("event_id", e.ID.String()))
		response.Internal(c, "failed to list registrations")
		return
	}
	response.OK(c, list)
}

// ListMine handles GET /me/registrations.
func (h *Handler) ListMine(c *gin.Context) {
	list, err := h.repo.ListByUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Internal(c, "failed to list registrations")
		return
	}
	response.OK(c, list)
}

// Transition handles POST /registrations/:id/transition. Only organizer decisions are accepted here;
// admissions go through the role-guarded check-in routes.
func (h *Handler) Transition(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !req.Action.Valid() {
		response.BadRequest(c, "unknown action")
		return
	}
	if !req.Action.RequiresOwnership() {
		response.BadRequest(c, "use /registrations/:id/check-in or /registrations/:id/check-out")
		return
	}
	reg, err := h.svc.Transition(c.Request.Context(), id, req.Action, middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, reg)
}

// Bulk handles POST /events/:id/registrations/bulk. Call after events.RequireOrganizer.
func (h *Handler) Bulk(c *gin.Context) {
	var req BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if _, ok := lifecycle.ActionFor(req.Status); !ok {
		response.BadRequest(c, "status must be approved or rejected")
		return
	}
	res, err := h.svc.BulkTransition(c.Request.Context(), req.RegistrationIDs, req.Status, middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}
