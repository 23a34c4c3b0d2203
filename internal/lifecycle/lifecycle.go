// Package lifecycle holds the registration status graph. It is pure: no storage, no side effects.
package lifecycle

import (
	"fmt"

	"github.com/gatepass/backend/internal/models"
	"github.com/gatepass/backend/pkg/apperr"
)

// Action is an operation requested on a registration.
type Action string

const (
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionCheckIn  Action = "check_in"
	ActionCheckOut Action = "check_out"
)

// Actions lists every action.
var Actions = []Action{ActionApprove, ActionReject, ActionCheckIn, ActionCheckOut}

// transitions is the complete graph. Any (status, action) pair missing here is invalid.
var transitions = map[models.RegistrationStatus]map[Action]models.RegistrationStatus{
	models.StatusPending: {
		ActionApprove: models.StatusApproved,
		ActionReject:  models.StatusRejected,
	},
	models.StatusApproved: {
		ActionCheckIn: models.StatusCheckedIn,
	},
	models.StatusCheckedIn: {
		ActionCheckOut: models.StatusCheckedOut,
	},
	models.StatusCheckedOut: {
		ActionCheckIn: models.StatusCheckedIn,
	},
}

// TransitionError reports an action that is not allowed from the current status.
type TransitionError struct {
	From   models.RegistrationStatus
	Action Action
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: cannot %s a %s registration", e.Action, e.From)
}

// Unwrap lets errors.Is match apperr.ErrInvalidTransition.
func (e *TransitionError) Unwrap() error {
	return apperr.ErrInvalidTransition
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionApprove, ActionReject, ActionCheckIn, ActionCheckOut:
		return true
	}
	return false
}

// RequiresOwnership reports whether only the event organizer may perform a.
func (a Action) RequiresOwnership() bool {
	return a == ActionApprove || a == ActionReject
}

// CheckInType maps check actions to their audit record type. ok is false for organizer decisions.
func (a Action) CheckInType() (t models.CheckInType, ok bool) {
	switch a {
	case ActionCheckIn:
		return models.CheckInTypeIn, true
	case ActionCheckOut:
		return models.CheckInTypeOut, true
	}
	return "", false
}

// Next returns the status reached by applying a to from.
func Next(from models.RegistrationStatus, a Action) (models.RegistrationStatus, error) {
	to, ok := transitions[from][a]
	if !ok {
		return from, &TransitionError{From: from, Action: a}
	}
	return to, nil
}

// InitialStatus is the status a new registration starts in.
func InitialStatus(requiresApproval bool) models.RegistrationStatus {
	if requiresApproval {
		return models.StatusPending
	}
	return models.StatusApproved
}

// ActionFor maps a bulk target status to the organizer action that reaches it.
func ActionFor(target models.RegistrationStatus) (Action, bool) {
	switch target {
	case models.StatusApproved:
		return ActionApprove, true
	case models.StatusRejected:
		return ActionReject, true
	}
	return "", false
}

// Announced reports whether moving into s is pushed to realtime rooms.
func Announced(s models.RegistrationStatus) bool {
	switch s {
	case models.StatusApproved, models.StatusRejected, models.StatusCheckedIn:
		return true
	}
	return false
}
