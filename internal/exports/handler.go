package exports

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gatepass/backend/internal/events"
	"github.com/gatepass/backend/pkg/response"
)

// Handler handles report endpoints.
type Handler struct {
	exporter *Exporter
	logger   *zap.Logger
}

// NewHandler creates an exports handler. exporter is nil when object storage is not configured.
func NewHandler(exporter *Exporter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{exporter: exporter, logger: logger}
}

// CheckIns handles POST /events/:id/exports/checkins. Call after events.RequireOrganizer.
func (h *Handler) CheckIns(c *gin.Context) {
	if h.exporter == nil {
		response.ServiceUnavailable(c, "exports are not configured")
		return
	}
	e := events.FromContext(c)
	out, err := h.exporter.CheckIns(c.Request.Context(), e.ID)
	if err != nil {
		h.logger.Error("check-in export failed", zap.String("event_id", e.ID.String()), zap.Error(err))
		response.Internal(c, "failed to export check-ins")
		return
	}
	response.Created(c, out)
}
