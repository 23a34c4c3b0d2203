package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RegistrationStatus is the lifecycle status of a registration.
type RegistrationStatus string

const (
	StatusPending    RegistrationStatus = "pending"
	StatusApproved   RegistrationStatus = "approved"
	StatusRejected   RegistrationStatus = "rejected"
	StatusCheckedIn  RegistrationStatus = "checked_in"
	StatusCheckedOut RegistrationStatus = "checked_out"
)

// Statuses lists every registration status.
var Statuses = []RegistrationStatus{StatusPending, StatusApproved, StatusRejected, StatusCheckedIn, StatusCheckedOut}

// Registration is one attendee's ticket for one event. UserID is nil for guest registrations.
type Registration struct {
	ID            uuid.UUID          `json:"id"`
	EventID       uuid.UUID          `json:"event_id"`
	UserID        *uuid.UUID         `json:"user_id,omitempty"`
	Email         string             `json:"email"`
	FullName      string             `json:"full_name"`
	Status        RegistrationStatus `json:"status"`
	QRCode        string             `json:"qr_code"`
	TicketLink    string             `json:"ticket_link"`
	FormResponses json.RawMessage    `json:"form_responses,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// IsGuest reports whether the registration has no linked account.
func (r *Registration) IsGuest() bool {
	return r.UserID == nil
}
