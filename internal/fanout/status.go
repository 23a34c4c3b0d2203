package fanout

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatepass/backend/internal/identity"
	"github.com/gatepass/backend/internal/lifecycle"
	"github.com/gatepass/backend/internal/models"
	"github.com/gatepass/backend/internal/realtime"
)

// RegistrationChanged notifies the registrant of a committed status change and, for decisions and
// admissions, announces it to the event dashboard room and the registrant's room.
func (e *Engine) RegistrationChanged(ctx context.Context, reg *models.Registration, event *models.Event, previous models.RegistrationStatus) {
	recipient := e.registrant(ctx, reg)

	d := Delivery{EventID: reg.EventID}
	if recipient != uuid.Nil {
		related := reg.ID
		d.Recipients = []uuid.UUID{recipient}
		d.Message = Message{
			Type:      models.NotificationTypeRegistrationPrefix + string(reg.Status),
			Title:     statusTitle(reg.Status),
			Body:      statusBody(reg.Status, event),
			RelatedID: &related,
			Data: map[string]string{
				"type":            models.NotificationTypeRegistrationPrefix + string(reg.Status),
				"registration_id": reg.ID.String(),
				"event_id":        reg.EventID.String(),
			},
		}
	}
	if lifecycle.Announced(reg.Status) {
		rooms := []string{realtime.EventRoom(reg.EventID)}
		if recipient != uuid.Nil {
			rooms = append(rooms, realtime.UserRoom(recipient))
		}
		d.Announcements = []Announcement{{
			Rooms: rooms,
			Event: EventRegistrationUpdated,
			Payload: map[string]string{
				"registration_id": reg.ID.String(),
				"event_id":        reg.EventID.String(),
				"status":          string(reg.Status),
				"previous_status": string(previous),
			},
		}}
	}
	if len(d.Recipients) == 0 && len(d.Announcements) == 0 {
		return
	}
	e.dispatcher.Dispatch(ctx, d)
}

// registrant returns the account owning reg, resolving guests by email. Nil when there is none.
func (e *Engine) registrant(ctx context.Context, reg *models.Registration) uuid.UUID {
	if reg.UserID != nil {
		return *reg.UserID
	}
	ids, err := e.Identity.ResolveMany(ctx, []string{reg.Email})
	if err != nil {
		e.logger.Warn("resolve registrant failed", zap.String("registration_id", reg.ID.String()), zap.Error(err))
		return uuid.Nil
	}
	return ids[identity.NormalizeEmail(reg.Email)]
}

func statusTitle(s models.RegistrationStatus) string {
	switch s {
	case models.StatusApproved:
		return "Registration approved"
	case models.StatusRejected:
		return "Registration declined"
	case models.StatusCheckedIn:
		return "Checked in"
	case models.StatusCheckedOut:
		return "Checked out"
	}
	return "Registration updated"
}

func statusBody(s models.RegistrationStatus, event *models.Event) string {
	title := "the event"
	if event != nil && event.Title != "" {
		title = event.Title
	}
	switch s {
	case models.StatusApproved:
		return fmt.Sprintf("You're in! Your registration for %s was approved.", title)
	case models.StatusRejected:
		return fmt.Sprintf("Your registration for %s was not approved.", title)
	case models.StatusCheckedIn:
		return fmt.Sprintf("Welcome to %s.", title)
	case models.StatusCheckedOut:
		return fmt.Sprintf("You have checked out of %s.", title)
	}
	return fmt.Sprintf("Your registration for %s is now %s.", title, strings.ReplaceAll(string(s), "_", " "))
}
