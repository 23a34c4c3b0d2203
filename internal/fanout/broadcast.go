package fanout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatepass/backend/internal/identity"
	"github.com/gatepass/backend/internal/metrics"
	"github.com/gatepass/backend/internal/models"
	"github.com/gatepass/backend/pkg/apperr"
)

// Broadcast sends a message to everyone registered for the event and returns the number of
// unique recipients targeted. Delivery continues after return; its failures are not reported.
func (e *Engine) Broadcast(ctx context.Context, eventID, organizerID uuid.UUID, title, message string) (int, error) {
	event, err := e.Events.GetByID(ctx, eventID)
	if err != nil {
		return 0, err
	}
	if event.OrganizerID != organizerID {
		return 0, fmt.Errorf("broadcast to event %s: %w", eventID, apperr.ErrUnauthorized)
	}
	recipients, err := e.Recipients(ctx, event)
	if err != nil {
		return 0, err
	}

	related := event.ID
	d := Delivery{
		EventID:    event.ID,
		Recipients: recipients,
		Message: Message{
			Type:      models.NotificationTypeBroadcast,
			Title:     title,
			Body:      message,
			RelatedID: &related,
			Data: map[string]string{
				"type":     models.NotificationTypeBroadcast,
				"event_id": event.ID.String(),
			},
		},
		Audit: &models.BroadcastRecord{
			EventID:        event.ID,
			OrganizerID:    organizerID,
			Title:          title,
			Message:        message,
			RecipientCount: len(recipients),
		},
	}
	metrics.FanOutRecipients.Add(float64(len(recipients)))
	e.logger.Info("broadcast accepted",
		zap.String("event_id", event.ID.String()),
		zap.Int("recipients", len(recipients)),
	)
	e.dispatcher.Dispatch(ctx, d)
	return len(recipients), nil
}

// Recipients resolves the deduplicated account set of an event: account holders plus guests whose
// email belongs to an account, excluding the organizer and rejected registrations.
// Guests without an account are dropped since they have no inbox.
func (e *Engine) Recipients(ctx context.Context, event *models.Event) ([]uuid.UUID, error) {
	regs, err := e.Registrations.ListByEvent(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	seen := make(map[uuid.UUID]struct{}, len(regs))
	out := make([]uuid.UUID, 0, len(regs))
	add := func(id uuid.UUID) {
		if id == uuid.Nil || id == event.OrganizerID {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	var guests []string
	for _, r := range regs {
		if r.Status == models.StatusRejected {
			continue
		}
		if r.UserID != nil {
			add(*r.UserID)
			continue
		}
		guests = append(guests, r.Email)
	}
	if len(guests) == 0 {
		return out, nil
	}
	resolved, err := e.Identity.ResolveMany(ctx, guests)
	if err != nil {
		return nil, err
	}
	for _, email := range guests {
		if id, ok := resolved[identity.NormalizeEmail(email)]; ok {
			add(id)
		}
	}
	return out, nil
}
