// Package common holds the error taxonomy shared by every layer of the
// files manager. Callers compare with errors.Is; the HTTP layer maps each
// sentinel to a stable code.
package common

import "errors"

var (
	// ErrUnauthenticated covers missing, unknown and expired tokens.
	ErrUnauthenticated = errors.New("unauthorized")

	// ErrNotFound is returned both for absent records and for records the
	// caller may not see.
	ErrNotFound = errors.New("not found")

	ErrValidation       = errors.New("validation error")
	ErrAlreadyExists    = errors.New("already exists")
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrNoContent is returned when content is requested for a folder.
	ErrNoContent = errors.New("a folder doesn't have content")

	// job specific errors
	ErrPermanentJob = errors.New("permanent job failure")
	ErrTransientJob = errors.New("transient job failure")
)

// ValidationError carries the user-facing reason a request was rejected.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError returns a *ValidationError with the given message.
func NewValidationError(msg string) error {
	return &ValidationError{Message: msg}
}
