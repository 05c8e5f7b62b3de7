package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/skillforge/internal/errors"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
	maxErrorBody         = 2048
)

// OpenAIProvider implements Provider against any OpenAI-compatible
// /chat/completions endpoint.
type OpenAIProvider struct {
	apiKey  string
	baseURL string
	model   string
	headers map[string]string
	client  *http.Client
	logger  zerolog.Logger
}

// OpenAIOption configures the provider.
type OpenAIOption func(*OpenAIProvider)

func WithModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) {
		if model != "" {
			p.model = model
		}
	}
}

func WithBaseURL(u string) OpenAIOption {
	return func(p *OpenAIProvider) {
		if u != "" {
			p.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithHeaders(h map[string]string) OpenAIOption {
	return func(p *OpenAIProvider) { p.headers = h }
}

func WithHTTPClient(c *http.Client) OpenAIOption {
	return func(p *OpenAIProvider) { p.client = c }
}

func WithLogger(l zerolog.Logger) OpenAIOption {
	return func(p *OpenAIProvider) { p.logger = l.With().Str("component", "openai_provider").Logger() }
}

// NewOpenAIProvider constructs a new OpenAI-compatible provider. An empty
// apiKey is rejected with ErrMissingAPIKey.
func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai provider: %w (set OPENAI_API_KEY or SCOS_API_KEY)", perrors.ErrMissingAPIKey)
	}
	p := &OpenAIProvider{
		apiKey:  apiKey,
		baseURL: defaultOpenAIBaseURL,
		model:   defaultOpenAIModel,
		client:  &http.Client{},
		logger:  zerolog.Nop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ModelID returns the configured model.
func (p *OpenAIProvider) ModelID() string { return p.model }

type chatRequest map[string]any

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *OpenAIProvider) buildRequest(req Request) chatRequest {
	system := req.System +
		"\n\nYou MUST output ONLY valid JSON. No Markdown fences, no commentary." +
		"\nSchema hint: " + req.SchemaHint

	body := chatRequest{
		"model": p.model,
		"messages": []Message{
			{Role: RoleSystem, Content: system},
			{Role: RoleUser, Content: req.User},
		},
		"temperature": req.Temperature,
		"max_tokens":  req.MaxTokens,
	}
	for k, v := range req.Extra {
		body[k] = v
	}
	return body
}

func (p *OpenAIProvider) doRequest(ctx context.Context, body chatRequest) (*http.Response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	for k, v := range p.headers {
		httpReq.Header.Set(k, v)
	}
	return p.client.Do(httpReq)
}

// CompleteStructured sends a blocking chat completion and extracts the JSON
// object from the first choice.
func (p *OpenAIProvider) CompleteStructured(ctx context.Context, req Request) (map[string]any, error) {
	req = req.withDefaults()
	ctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	body := p.buildRequest(req)
	resp, err := p.doRequest(ctx, body)
	if err != nil {
		return nil, &perrors.ProviderError{Provider: ProviderOpenAI, Message: "http", Err: fmt.Errorf("%w: %w", perrors.ErrUnavailable, err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &perrors.ProviderError{Provider: ProviderOpenAI, StatusCode: resp.StatusCode, Message: "read body", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(raw)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		pe := perrors.NewProviderError(ProviderOpenAI, resp.StatusCode, msg)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			pe.Err = perrors.ErrUnavailable
		}
		return nil, pe
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return nil, &perrors.ProviderError{Provider: ProviderOpenAI, StatusCode: resp.StatusCode, Message: "unmarshal response", Err: err}
	}
	if len(cr.Choices) == 0 || cr.Choices[0].Message.Content == nil {
		return nil, perrors.NewProviderError(ProviderOpenAI, resp.StatusCode, "unexpected response schema from provider")
	}

	p.logger.Debug().
		Str("model", p.model).
		Int("in_tokens", cr.Usage.PromptTokens).
		Int("out_tokens", cr.Usage.CompletionTokens).
		Msg("openai complete")

	out, err := ExtractJSON(*cr.Choices[0].Message.Content)
	if err != nil {
		return nil, &perrors.ProviderError{Provider: ProviderOpenAI, StatusCode: resp.StatusCode, Message: "extract json", Err: err}
	}
	return out, nil
}
