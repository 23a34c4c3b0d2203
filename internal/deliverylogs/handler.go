package deliverylogs

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gatepass/backend/internal/events"
	"github.com/gatepass/backend/internal/models"
	"github.com/gatepass/backend/pkg/response"
)

const listLimit = 500

// Lister reads delivery logs.
type Lister interface {
	ListByEvent(ctx context.Context, eventID uuid.UUID, limit int) ([]*models.DeliveryLog, error)
}

// Handler handles delivery log HTTP endpoints.
type Handler struct {
	repo Lister
}

// NewHandler creates a delivery logs handler.
func NewHandler(repo Lister) *Handler {
	return &Handler{repo: repo}
}

// ListByEvent handles GET /events/:id/deliveries.
// Call after events.RequireOrganizer so access is already validated.
func (h *Handler) ListByEvent(c *gin.Context) {
	e := events.FromContext(c)
	logs, err := h.repo.ListByEvent(c.Request.Context(), e.ID, listLimit)
	if err != nil {
		response.Internal(c, "failed to load delivery logs")
		return
	}
	if logs == nil {
		logs = []*models.DeliveryLog{}
	}
	response.OK(c, logs)
}
