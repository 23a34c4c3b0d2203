package models

import (
	"time"

	"github.com/google/uuid"
)

// Delivery channels.
const (
	ChannelInbox    = "inbox"
	ChannelRealtime = "realtime"
	ChannelPush     = "push"
)

// DeliveryLogStatus for one chunk on one channel.
const (
	DeliveryLogStatusSent   = "sent"
	DeliveryLogStatusFailed = "failed"
)

// DeliveryLog records the outcome of one fan-out chunk on the push channel.
type DeliveryLog struct {
	ID             uuid.UUID  `json:"id"`
	EventID        *uuid.UUID `json:"event_id,omitempty"`
	Channel        string     `json:"channel"`
	ChunkIndex     int        `json:"chunk_index"`
	RecipientCount int        `json:"recipient_count"`
	Accepted       int        `json:"accepted"`
	Rejected       int        `json:"rejected"`
	Status         string     `json:"status"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
