// Package apperr defines the error taxonomy shared by the registration lifecycle and fan-out code.
package apperr

import "errors"

var (
	// ErrNotFound is returned when a referenced registration, event, code or notification does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition is returned when a status change is not allowed from the current status.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrUnauthorized is returned when the actor does not own the event.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrAlreadyRegistered is returned when the email already holds a registration for the event.
	ErrAlreadyRegistered = errors.New("already registered")
	// ErrDelivery marks a channel failure during fan-out. It never leaves the fan-out engine.
	ErrDelivery = errors.New("delivery failure")
)
