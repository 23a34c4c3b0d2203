package broadcasts

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatepass/backend/internal/events"
	"github.com/gatepass/backend/internal/middleware"
	"github.com/gatepass/backend/internal/models"
	"github.com/gatepass/backend/pkg/response"
)

// SendRequest is the body for POST /events/:id/broadcasts.
type SendRequest struct {
	Title   string `json:"title" binding:"required,max=200"`
	Message string `json:"message" binding:"required,max=4000"`
}

// Sender fans a message out to an event's registrants.
type Sender interface {
	Broadcast(ctx context.Context, eventID, organizerID uuid.UUID, title, message string) (int, error)
}

// History lists past broadcasts.
type History interface {
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.BroadcastRecord, error)
}

// Handler handles broadcast endpoints.
type Handler struct {
	sender  Sender
	history History
	logger  *zap.Logger
}

// NewHandler creates a broadcasts handler.
func NewHandler(sender Sender, history History, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{sender: sender, history: history, logger: logger}
}

// Send handles POST /events/:id/broadcasts. Responds once recipients are resolved; delivery continues.
func (h *Handler) Send(c *gin.Context) {
	e := events.FromContext(c)
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	n, err := h.sender.Broadcast(c.Request.Context(), e.ID, middleware.UserID(c), req.Title, req.Message)
	if err != nil {
		h.logger.Warn("broadcast rejected", zap.String("event_id", e.ID.String()), zap.Error(err))
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusAccepted, response.Body{Success: true, Data: gin.H{"recipient_count": n}})
}

// List handles GET /events/:id/broadcasts.
func (h *Handler) List(c *gin.Context) {
	e := events.FromContext(c)
	list, err := h.history.ListByEvent(c.Request.Context(), e.ID)
	if err != nil {
		response.Internal(c, "failed to list broadcasts")
		return
	}
	if list == nil {
		list = []models.BroadcastRecord{}
	}
	response.OK(c, list)
}
