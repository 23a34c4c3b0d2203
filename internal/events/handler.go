package events

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatepass/backend/internal/middleware"
	"github.com/gatepass/backend/internal/models"
	"github.com/gatepass/backend/pkg/response"
)

// CreateRequest is the body for POST /events.
type CreateRequest struct {
	Title            string `json:"title" binding:"required"`
	Description      string `json:"description"`
	StartsAt         string `json:"starts_at" binding:"required"`
	RequiresApproval bool   `json:"requires_approval"`
}

// Store is the event persistence used by the handler.
type Store interface {
	Getter
	Create(ctx context.Context, e *models.Event) error
	ListByOrganizer(ctx context.Context, organizerID uuid.UUID) ([]models.Event, error)
}

// StatusCounter counts registrations of an event per status.
type StatusCounter interface {
	CountByStatus(ctx context.Context, eventID uuid.UUID) (map[models.RegistrationStatus]int, error)
}

// Handler handles event HTTP endpoints.
type Handler struct {
	repo   Store
	counts StatusCounter
	logger *zap.Logger
}

// NewHandler creates an event handler.
func NewHandler(repo Store, counts StatusCounter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, counts: counts, logger: logger}
}

// Create handles POST /events (organizers only).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		response.BadRequest(c, "invalid starts_at")
		return
	}
	e := &models.Event{
		OrganizerID:      middleware.UserID(c),
		Title:            req.Title,
		Description:      req.Description,
		StartsAt:         startsAt,
		RequiresApproval: req.RequiresApproval,
	}
	if err := h.repo.Create(c.Request.Context(), e); err != nil {
		h.logger.Error("create event failed", zap.Error(err))
		response.Internal(c, "failed to create event")
		return
	}
	response.Created(c, e)
}

// GetByID handles GET /events/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	e, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, e)
}

// ListMine handles GET /me/events.
func (h *Handler) ListMine(c *gin.Context) {
	list, err := h.repo.ListByOrganizer(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Internal(c, "failed to list events")
		return
	}
	response.OK(c, list)
}

// Stats handles GET /events/:id/stats. Call after RequireOrganizer.
func (h *Handler) Stats(c *gin.Context) {
	e := FromContext(c)
	counts, err := h.counts.CountByStatus(c.Request.Context(), e.ID)
	if err != nil {
		h.logger.Error("count registrations failed", zap.Error(err), zap.String("event_id", e.ID.String()))
		response.Internal(c, "failed to load stats")
		return
	}
	total := 0
	byStatus := make(map[models.RegistrationStatus]int, len(models.Statuses))
	for _, s := range models.Statuses {
		byStatus[s] = counts[s]
		total += counts[s]
	}
	response.OK(c, gin.H{
		"event_id":  e.ID,
		"total":     total,
		"by_status": byStatus,
	})
}
