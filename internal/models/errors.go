package models

import "errors"

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrUpstream     = errors.New("upstream failure")
)

// ValidationError carries a message that is safe to show to the user.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError returns a ValidationError with the given message.
func NewValidationError(msg string) error {
	return &ValidationError{Message: msg}
}
