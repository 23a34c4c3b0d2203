package registrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatepass/backend/internal/identity"
	"github.com/gatepass/backend/internal/lifecycle"
	"github.com/gatepass/backend/internal/metrics"
	"github.com/gatepass/backend/internal/models"
	"github.com/gatepass/backend/pkg/apperr"
	"github.com/gatepass/backend/pkg/utils"
)

// Store is the registration persistence the service needs.
type Store interface {
	Create(ctx context.Context, reg *models.Registration) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.RegistrationStatus, rec *models.CheckInRecord) (*models.Registration, error)
}

// EventGetter loads the event a registration belongs to.
type EventGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// Notifier is told about every committed status change. It must not block on delivery.
type Notifier interface {
	RegistrationChanged(ctx context.Context, reg *models.Registration, event *models.Event, previous models.RegistrationStatus)
}

// RegisterInput is a registration submission.
type RegisterInput struct {
	EventID       uuid.UUID
	Email         string
	FullName      string
	FormResponses json.RawMessage
	UserID        *uuid.UUID
}

// BulkResult reports how many registrations of a bulk request changed.
type BulkResult struct {
	Updated int `json:"updated"`
	Total   int `json:"total"`
}

// Service applies lifecycle transitions to stored registrations.
type Service struct {
	store    Store
	events   EventGetter
	notifier Notifier
	logger   *zap.Logger
	newToken func() (string, error)
}

// NewService creates a registration service. notifier may be nil.
func NewService(store Store, events EventGetter, notifier Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, events: events, notifier: notifier, logger: logger, newToken: utils.TicketToken}
}

// Register creates a registration in the event's initial status.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.Registration, error) {
	email := identity.NormalizeEmail(in.Email)
	if email == "" {
		return nil, errors.New("email required")
	}
	event, err := s.events.GetByID(ctx, in.EventID)
	if err != nil {
		return nil, err
	}
	qr, err := s.newToken()
	if err != nil {
		return nil, fmt.Errorf("generate qr code: %w", err)
	}
	link, err := s.newToken()
	if err != nil {
		return nil, fmt.Errorf("generate ticket link: %w", err)
	}
	reg := &models.Registration{
		EventID:       event.ID,
		UserID:        in.UserID,
		Email:         email,
		FullName:      in.FullName,
		Status:        lifecycle.InitialStatus(event.RequiresApproval),
		QRCode:        qr,
		TicketLink:    "/tickets/" + link,
		FormResponses: in.FormResponses,
	}
	if err := s.store.Create(ctx, reg); err != nil {
		return nil, err
	}
	s.logger.Info("registration created",
		zap.String("registration_id", reg.ID.String()),
		zap.String("event_id", event.ID.String()),
		zap.String("status", string(reg.Status)),
	)
	return reg, nil
}

// Transition applies action to the registration on behalf of actorID.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, action lifecycle.Action, actorID uuid.UUID) (*models.Registration, error) {
	reg, _, err := s.apply(ctx, id, action, actorID)
	return reg, err
}

// CheckIn admits the registration and returns the appended audit record.
func (s *Service) CheckIn(ctx context.Context, id, verifierID uuid.UUID) (*models.CheckInRecord, error) {
	_, rec, err := s.apply(ctx, id, lifecycle.ActionCheckIn, verifierID)
	return rec, err
}

// CheckOut records an exit and returns the appended audit record.
func (s *Service) CheckOut(ctx context.Context, id, verifierID uuid.UUID) (*models.CheckInRecord, error) {
	_, rec, err := s.apply(ctx, id, lifecycle.ActionCheckOut, verifierID)
	return rec, err
}

// BulkTransition moves each registration to target independently. Failures are counted, not returned.
func (s *Service) BulkTransition(ctx context.Context, ids []uuid.UUID, target models.RegistrationStatus, actorID uuid.UUID) (BulkResult, error) {
	action, ok := lifecycle.ActionFor(target)
	if !ok {
		return BulkResult{}, fmt.Errorf("bulk target %q: %w", target, apperr.ErrInvalidTransition)
	}
	res := BulkResult{Total: len(ids)}
	for _, id := range ids {
		if _, _, err := s.apply(ctx, id, action, actorID); err != nil {
			s.logger.Debug("bulk transition skipped",
				zap.String("registration_id", id.String()),
				zap.String("action", string(action)),
				zap.Error(err),
			)
			continue
		}
		res.Updated++
	}
	return res, nil
}

func (s *Service) apply(ctx context.Context, id uuid.UUID, action lifecycle.Action, actorID uuid.UUID) (*models.Registration, *models.CheckInRecord, error) {
	reg, rec, event, prev, err := s.commit(ctx, id, action, actorID)
	metrics.Transitions.WithLabelValues(string(action), resultLabel(err)).Inc()
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("registration transitioned",
		zap.String("registration_id", reg.ID.String()),
		zap.String("from", string(prev)),
		zap.String("to", string(reg.Status)),
		zap.String("actor_id", actorID.String()),
	)
	if s.notifier != nil {
		s.notifier.RegistrationChanged(ctx, reg, event, prev)
	}
	return reg, rec, nil
}

func (s *Service) commit(ctx context.Context, id uuid.UUID, action lifecycle.Action, actorID uuid.UUID) (*models.Registration, *models.CheckInRecord, *models.Event, models.RegistrationStatus, error) {
	if !action.Valid() {
		return nil, nil, nil, "", fmt.Errorf("unknown action %q: %w", action, apperr.ErrInvalidTransition)
	}
	cur, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, nil, nil, "", err
	}
	event, err := s.events.GetByID(ctx, cur.EventID)
	if err != nil {
		return nil, nil, nil, "", err
	}
	if action.RequiresOwnership() && event.OrganizerID != actorID {
		return nil, nil, nil, "", fmt.Errorf("%s registration %s: %w", action, id, apperr.ErrUnauthorized)
	}
	to, err := lifecycle.Next(cur.Status, action)
	if err != nil {
		return nil, nil, nil, "", err
	}
	var rec *models.CheckInRecord
	if t, ok := action.CheckInType(); ok {
		rec = &models.CheckInRecord{RegistrationID: id, Type: t}
		if actorID != uuid.Nil {
			v := actorID
			rec.VerifierID = &v
		}
	}
	updated, err := s.store.UpdateStatus(ctx, id, cur.Status, to, rec)
	if errors.Is(err, ErrStatusChanged) {
		from := cur.Status
		if fresh, ferr := s.store.GetByID(ctx, id); ferr == nil {
			from = fresh.Status
		}
		return nil, nil, nil, "", &lifecycle.TransitionError{From: from, Action: action}
	}
	if err != nil {
		return nil, nil, nil, "", err
	}
	return updated, rec, event, cur.Status, nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperr.ErrInvalidTransition):
		return "invalid"
	case errors.Is(err, apperr.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	}
	return "error"
}
