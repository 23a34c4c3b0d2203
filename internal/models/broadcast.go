package models

import (
	"time"

	"github.com/google/uuid"
)

// BroadcastRecord is the write-once audit entry of an organizer broadcast.
type BroadcastRecord struct {
	ID             uuid.UUID `json:"id"`
	EventID        uuid.UUID `json:"event_id"`
	OrganizerID    uuid.UUID `json:"organizer_id"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	RecipientCount int       `json:"recipient_count"`
	SentAt         time.Time `json:"sent_at"`
}
