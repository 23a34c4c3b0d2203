package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is an organizer's event that attendees register for.
type Event struct {
	ID               uuid.UUID `json:"id"`
	OrganizerID      uuid.UUID `json:"organizer_id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	StartsAt         time.Time `json:"starts_at"`
	RequiresApproval bool      `json:"requires_approval"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
