// Package errors provides structured error types for skillforge.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnavailable   = errors.New("service unavailable")
	ErrTooLarge      = errors.New("resource too large")
	ErrNoSkills      = errors.New("no skills found")
	ErrInvalidPlan   = errors.New("invalid plan")
	ErrInvalidResult = errors.New("invalid execution result")
	ErrMissingAPIKey = errors.New("missing api key")
)

// ProviderError represents a failure talking to a completion provider.
// StatusCode is zero for transport failures that never produced a response.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		if e.Err != nil {
			return fmt.Sprintf("%s provider error: %s: %v", e.Provider, e.Message, e.Err)
		}
		return fmt.Sprintf("%s provider error: %s", e.Provider, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s provider error (status %d): %s: %v", e.Provider, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%s provider error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError creates a new provider error.
func NewProviderError(provider string, statusCode int, message string) *ProviderError {
	return &ProviderError{Provider: provider, StatusCode: statusCode, Message: message}
}

// IsProviderFailure reports whether err originated in a completion provider
// rather than in validation of what the provider returned.
func IsProviderFailure(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
