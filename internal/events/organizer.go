package events

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gatepass/backend/internal/middleware"
	"github.com/gatepass/backend/internal/models"
	"github.com/gatepass/backend/pkg/response"
)

// ContextEvent is the gin context key holding the *models.Event loaded by RequireOrganizer.
const ContextEvent = "event"

// Getter loads an event by id.
type Getter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// RequireOrganizer allows the request only when the caller organizes the event in :id. Call after JWT.
func RequireOrganizer(events Getter) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "invalid event id")
			c.Abort()
			return
		}
		e, err := events.GetByID(c.Request.Context(), eventID)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		if e.OrganizerID != middleware.UserID(c) {
			response.Forbidden(c, "not the organizer of this event")
			c.Abort()
			return
		}
		c.Set(ContextEvent, e)
		c.Next()
	}
}

// FromContext returns the event stored by RequireOrganizer.
func FromContext(c *gin.Context) *models.Event {
	e, _ := c.MustGet(ContextEvent).(*models.Event)
	return e
}
