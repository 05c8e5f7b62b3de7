// Package llm defines the completion provider interface and its adapters.
// Providers are interchangeable behind this interface: the orchestrator only
// ever asks for a structured (JSON object) completion.
package llm

import (
	"context"
	"time"
)

// Role constants for chat messages.
const (
	RoleUser   = "user"
	RoleSystem = "system"
)

// Provider selectors accepted by Factory.New.
const (
	ProviderMock   = "mock"
	ProviderOpenAI = "openai"
)

// Defaults applied when a Request leaves a field zero.
const (
	DefaultMaxTokens = 2000
	DefaultTimeout   = 120 * time.Second
)

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the input to CompleteStructured.
type Request struct {
	System      string
	User        string
	SchemaHint  string // short description of the expected JSON shape
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration  // upper bound on the call; zero means DefaultTimeout
	Extra       map[string]any // merged verbatim into provider payloads that support it
}

func (r Request) withDefaults() Request {
	if r.MaxTokens <= 0 {
		r.MaxTokens = DefaultMaxTokens
	}
	if r.Timeout <= 0 {
		r.Timeout = DefaultTimeout
	}
	return r
}

// Provider is the core abstraction for completion backends.
type Provider interface {
	// CompleteStructured returns the JSON object the model produced for req.
	// The result is untyped; callers validate it into their own shapes.
	CompleteStructured(ctx context.Context, req Request) (map[string]any, error)
}
