// Package fanout turns one organizer action into deduplicated, chunked delivery
// across the inbox, realtime rooms and the external push gateway.
package fanout

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatepass/backend/internal/models"
	"github.com/gatepass/backend/internal/push"
)

// DefaultChunkSize is the number of recipients handled per chunk.
const DefaultChunkSize = 100

// RegistrationLister reads the registrations of an event.
type RegistrationLister interface {
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Registration, error)
}

// EventGetter loads an event.
type EventGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// IdentityResolver maps normalized emails to account ids. Unknown emails are absent from the result.
type IdentityResolver interface {
	ResolveMany(ctx context.Context, emails []string) (map[string]uuid.UUID, error)
}

// InboxStore persists notifications. InsertBatch is all-or-nothing.
type InboxStore interface {
	InsertBatch(ctx context.Context, list []models.Notification) error
}

// RoomEmitter delivers best-effort realtime events to a room.
type RoomEmitter interface {
	Emit(room, event string, payload interface{})
}

// TokenLookup returns the push tokens of the accounts that have any.
type TokenLookup interface {
	TokensForUsers(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID][]string, error)
}

// PushGateway sends one batch of device notifications.
type PushGateway interface {
	SendBatch(ctx context.Context, msgs []push.Message) ([]push.Ticket, error)
}

// AuditLog stores broadcast history.
type AuditLog interface {
	Create(ctx context.Context, b *models.BroadcastRecord) error
}

// DeliveryRecorder stores per-chunk push outcomes.
type DeliveryRecorder interface {
	Record(ctx context.Context, l *models.DeliveryLog) error
}

// Message is the content delivered to every recipient of one fan-out.
type Message struct {
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	RelatedID *uuid.UUID        `json:"related_id,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
}

// Announcement is a realtime event for dashboard and account rooms, sent before the chunks.
type Announcement struct {
	Rooms   []string          `json:"rooms"`
	Event   string            `json:"event"`
	Payload map[string]string `json:"payload"`
}

// Delivery is one unit of asynchronous fan-out work. It is JSON-serializable so it can be queued.
type Delivery struct {
	EventID       uuid.UUID               `json:"event_id"`
	Recipients    []uuid.UUID             `json:"recipients"`
	Message       Message                 `json:"message"`
	Announcements []Announcement          `json:"announcements,omitempty"`
	Audit         *models.BroadcastRecord `json:"audit,omitempty"`
}

// Dispatcher runs a delivery, now or later. It never reports delivery errors.
type Dispatcher interface {
	Dispatch(ctx context.Context, d Delivery)
}

// Deps are the collaborators of the engine. Deliveries and Audit may be nil.
type Deps struct {
	Registrations RegistrationLister
	Events        EventGetter
	Identity      IdentityResolver
	Inbox         InboxStore
	Rooms         RoomEmitter
	Tokens        TokenLookup
	Gateway       PushGateway
	Audit         AuditLog
	Deliveries    DeliveryRecorder
}

// Engine resolves recipients and drives delivery.
type Engine struct {
	Deps
	chunkSize  int
	dispatcher Dispatcher
	logger     *zap.Logger
}

// NewEngine creates a fan-out engine. Until UseDispatcher is called deliveries run synchronously.
func NewEngine(deps Deps, chunkSize int, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	e := &Engine{Deps: deps, chunkSize: chunkSize, logger: logger}
	e.dispatcher = NewSyncDispatcher(e)
	return e
}

// UseDispatcher sets how deliveries are scheduled.
func (e *Engine) UseDispatcher(d Dispatcher) {
	e.dispatcher = d
}
