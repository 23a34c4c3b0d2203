package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification types written to the inbox.
const (
	NotificationTypeBroadcast = "broadcast"
	// Status notifications use "registration_" + status, e.g. registration_approved.
	NotificationTypeRegistrationPrefix = "registration_"
)

// Notification is a persisted in-app inbox entry for one account.
type Notification struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Type      string     `json:"type"`
	RelatedID *uuid.UUID `json:"related_id,omitempty"`
	Read      bool       `json:"read"`
	CreatedAt time.Time  `json:"created_at"`
}
