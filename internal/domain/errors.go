package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidIntent signals a malformed search intent.
	ErrInvalidIntent = errors.New("invalid intent")
	// ErrEmptyCaption signals a search without any query text.
	ErrEmptyCaption = errors.New("caption is required")
	// ErrUserRequired signals a call without a user id.
	ErrUserRequired = errors.New("user id is required")
	// ErrMissingDestination signals a search without a usable destination.
	ErrMissingDestination = errors.New("destination is required")
	// ErrSearchInFlight signals that an identical search is already running.
	ErrSearchInFlight = errors.New("identical search already in progress")
	// ErrSearchSuperseded signals that a newer search cancelled this one.
	ErrSearchSuperseded = errors.New("search superseded by a newer request")
	// ErrSelectionDebounced signals a repeated selection inside the debounce window.
	ErrSelectionDebounced = errors.New("selection debounced")

	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrProviderUnavailable signals an open circuit or unreachable provider.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)

// ValidationError describes which part of an intent failed validation.
// It always matches ErrInvalidIntent; Cause (if set) is matched as well.
type ValidationError struct {
	Field  string
	Reason string
	Cause  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidIntent.Error(), e.Field, e.Reason)
}

// Unwrap exposes both the class sentinel and the specific cause.
func (e *ValidationError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrInvalidIntent, e.Cause}
	}
	return []error{ErrInvalidIntent}
}

// NewValidationError creates a validation error for the given field.
func NewValidationError(field, reason string, cause error) error {
	return &ValidationError{Field: field, Reason: reason, Cause: cause}
}

// IsValidation reports whether err is an input validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidIntent)
}
