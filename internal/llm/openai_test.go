package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/p-blackswan/skillforge/internal/errors"
)

func chatServer(t *testing.T, status int, content string, inspect func(map[string]any, *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if inspect != nil {
			inspect(body, r)
		}
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":"boom"}`))
			return
		}
		resp := map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
			"usage":   map[string]any{"prompt_tokens": 10, "completion_tokens": 5},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewOpenAIProvider_MissingKey(t *testing.T) {
	_, err := NewOpenAIProvider("")
	assert.ErrorIs(t, err, perrors.ErrMissingAPIKey)
}

func TestOpenAI_CompleteStructured(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "```json\n{\"mode\":\"learn\"}\n```", func(body map[string]any, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "yes", r.Header.Get("X-Extra"))
		assert.Equal(t, "m-1", body["model"])
		assert.Equal(t, 0.2, body["temperature"])
		assert.Equal(t, float64(1800), body["max_tokens"])
		assert.Equal(t, true, body["custom"])
		msgs := body["messages"].([]any)
		require.Len(t, msgs, 2)
		sys := msgs[0].(map[string]any)["content"].(string)
		assert.Contains(t, sys, "You MUST output ONLY valid JSON")
		assert.Contains(t, sys, "Schema hint: Plan")
	})

	p, err := NewOpenAIProvider("sk-test",
		WithBaseURL(srv.URL+"/"),
		WithModel("m-1"),
		WithHeaders(map[string]string{"X-Extra": "yes"}),
		WithLogger(zerolog.Nop()),
	)
	require.NoError(t, err)
	assert.Equal(t, "m-1", p.ModelID())

	out, err := p.CompleteStructured(context.Background(), Request{
		System: "sys", User: "u", SchemaHint: "Plan",
		Temperature: 0.2, MaxTokens: 1800,
		Extra: map[string]any{"custom": true},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"mode": "learn"}, out)
}

func TestOpenAI_Non2xx(t *testing.T) {
	srv := chatServer(t, http.StatusTooManyRequests, "", nil)
	p, err := NewOpenAIProvider("k", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = p.CompleteStructured(context.Background(), Request{User: "u"})
	var pe *perrors.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusTooManyRequests, pe.StatusCode)
	assert.Contains(t, pe.Message, "boom")
	assert.True(t, perrors.IsProviderFailure(err))
	assert.ErrorIs(t, err, perrors.ErrUnavailable)
}

func TestOpenAI_NoJSONInContent(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "I cannot help with that.", nil)
	p, err := NewOpenAIProvider("k", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = p.CompleteStructured(context.Background(), Request{User: "u"})
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestOpenAI_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()
	p, err := NewOpenAIProvider("k", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = p.CompleteStructured(context.Background(), Request{User: "u"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected response schema")
}

func TestOpenAI_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()
	p, err := NewOpenAIProvider("k", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = p.CompleteStructured(context.Background(), Request{User: "u", Timeout: 50 * time.Millisecond})
	assert.True(t, perrors.IsProviderFailure(err))
	assert.ErrorIs(t, err, perrors.ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFactory(t *testing.T) {
	f := NewFactory(FactoryConfig{DefaultModel: "gpt-x"}, zerolog.Nop())

	p, err := f.New("mock", "")
	require.NoError(t, err)
	assert.IsType(t, &MockProvider{}, p)

	_, err = f.New("openai", "")
	assert.ErrorIs(t, err, perrors.ErrMissingAPIKey)

	_, err = f.New("anthropic", "")
	assert.ErrorIs(t, err, perrors.ErrInvalidInput)

	f = NewFactory(FactoryConfig{APIKey: "k", DefaultModel: "gpt-x"}, zerolog.Nop())
	p, err = f.New("openai", "")
	require.NoError(t, err)
	assert.Equal(t, "gpt-x", p.(*OpenAIProvider).ModelID())
	p, err = f.New("openai", "override")
	require.NoError(t, err)
	assert.Equal(t, "override", p.(*OpenAIProvider).ModelID())
}
