package llm

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/skillforge/internal/errors"
)

// FactoryConfig carries what the factory needs to build real providers.
type FactoryConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	HTTPClient   *http.Client
}

// Factory builds providers from a selector string.
type Factory struct {
	cfg    FactoryConfig
	logger zerolog.Logger
}

// NewFactory creates a provider factory.
func NewFactory(cfg FactoryConfig, logger zerolog.Logger) *Factory {
	return &Factory{cfg: cfg, logger: logger}
}

// New returns the provider named by selector. A non-empty model overrides
// the configured default for the openai provider.
func (f *Factory) New(selector, model string) (Provider, error) {
	switch selector {
	case ProviderMock, "":
		return NewMockProvider(), nil
	case ProviderOpenAI:
		if model == "" {
			model = f.cfg.DefaultModel
		}
		opts := []OpenAIOption{WithModel(model), WithBaseURL(f.cfg.BaseURL), WithLogger(f.logger)}
		if f.cfg.HTTPClient != nil {
			opts = append(opts, WithHTTPClient(f.cfg.HTTPClient))
		}
		return NewOpenAIProvider(f.cfg.APIKey, opts...)
	default:
		return nil, fmt.Errorf("provider must be one of: mock, openai (got %q): %w", selector, perrors.ErrInvalidInput)
	}
}
