package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderError_Error(t *testing.T) {
	err := NewProviderError("openai", 403, "forbidden")
	assert.Contains(t, err.Error(), "openai")
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "forbidden")
}

func TestProviderError_TransportHasNoStatus(t *testing.T) {
	err := &ProviderError{Provider: "openai", Message: "post", Err: errors.New("connection refused")}
	assert.NotContains(t, err.Error(), "status")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestProviderError_WithWrapped(t *testing.T) {
	inner := errors.New("connection refused")
	err := &ProviderError{Provider: "openai", StatusCode: 500, Message: "fail", Err: inner}
	assert.ErrorIs(t, err, inner)
}

func TestIsProviderFailure(t *testing.T) {
	wrapped := fmt.Errorf("plan: %w", NewProviderError("openai", 502, "bad gateway"))
	assert.True(t, IsProviderFailure(wrapped))
	assert.False(t, IsProviderFailure(fmt.Errorf("plan: %w", ErrInvalidPlan)))
	assert.False(t, IsProviderFailure(nil))
}

func TestSentinelErrors(t *testing.T) {
	assert.True(t, errors.Is(fmt.Errorf("x: %w", ErrNotFound), ErrNotFound))
	assert.False(t, errors.Is(ErrNotFound, ErrInvalidInput))
}
