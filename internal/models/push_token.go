package models

import (
	"time"

	"github.com/google/uuid"
)

// PushToken is a device token registered with the external push gateway.
type PushToken struct {
	UserID    uuid.UUID `json:"user_id"`
	Token     string    `json:"token"`
	Platform  string    `json:"platform,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
