package common

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy for the verification core. Every operation returns one of
// these (possibly wrapped); nothing is retried below the caller's boundary.
var (
	ErrValidation   = errors.New("validation failed")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("a job is already active")
	ErrNoActiveJob  = errors.New("no active job")
	ErrLineLocked   = errors.New("line is locked")
	ErrInvalidPIN   = errors.New("invalid supervisor PIN")
	ErrNotFound     = errors.New("resource not found")
	ErrPersistence  = errors.New("persistence failure")
	ErrUnauthorized = errors.New("unauthorized")
)

// RateLimitedError reports a PIN lockout in progress. RetryAfter is the
// remaining lockout duration at the time of the call.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	minutes := int(e.RetryAfter.Minutes()) + 1
	return fmt.Sprintf("too many PIN attempts, try again in %d minutes", minutes)
}

// NewValidationError wraps ErrValidation with a field-specific message.
func NewValidationError(field, message string) error {
	return fmt.Errorf("%w: %s %s", ErrValidation, field, message)
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// WrapPersistence marks a storage-layer failure so callers can map it
// uniformly without inspecting driver errors.
func WrapPersistence(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, message, err)
}
