package models

import (
	"time"

	"github.com/google/uuid"
)

// CheckInType distinguishes admission from exit.
type CheckInType string

const (
	CheckInTypeIn  CheckInType = "check_in"
	CheckInTypeOut CheckInType = "check_out"
)

// CheckInRecord is an append-only audit entry for one admission or exit.
type CheckInRecord struct {
	ID             uuid.UUID   `json:"id"`
	RegistrationID uuid.UUID   `json:"registration_id"`
	VerifierID     *uuid.UUID  `json:"verifier_id,omitempty"`
	Type           CheckInType `json:"type"`
	CreatedAt      time.Time   `json:"created_at"`
	// AttendeeEmail is only filled by event-wide listings.
	AttendeeEmail string `json:"attendee_email,omitempty"`
}
