package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	defaultOpenAIModel = "gpt-4o-mini"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Runs and skills
	RunsDir   string   `envconfig:"RUNS_DIR" default:"runs"`
	SkillDirs []string `envconfig:"SKILL_DIRS" default:".agents/skills,.github/skills,.claude/skills,skills,~/.claude/skills,~/.codex/skills"`

	// Completion provider
	Provider        string        `envconfig:"PROVIDER" default:"mock"`
	OpenAIAPIKey    string        `envconfig:"OPENAI_API_KEY"`
	SCOSAPIKey      string        `envconfig:"SCOS_API_KEY"` // fallback when OPENAI_API_KEY is unset
	OpenAIBaseURL   string        `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	OpenAIModel     string        `envconfig:"OPENAI_MODEL"`
	SCOSModel       string        `envconfig:"SCOS_MODEL"`
	ProviderTimeout time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"120s"`

	// Dashboard
	DashboardAddr      string        `envconfig:"DASHBOARD_ADDR" default:":8000"`
	CORSOrigins        string        `envconfig:"DASHBOARD_CORS_ORIGINS"`
	DashboardAPIKey    string        `envconfig:"DASHBOARD_API_KEY"` // empty leaves run submission open
	RateLimitRPS       int           `envconfig:"DASHBOARD_RATE_LIMIT_RPS" default:"50"`
	RateLimitBurst     int           `envconfig:"DASHBOARD_RATE_LIMIT_BURST" default:"100"`
	MaxConcurrentRuns  int           `envconfig:"MAX_CONCURRENT_RUNS" default:"4"`
	CatalogPath        string        `envconfig:"CATALOG_PATH"` // empty disables the SQLite run catalog
	CatalogRetention   time.Duration `envconfig:"CATALOG_RETENTION" default:"720h"`
	StreamPollInterval time.Duration `envconfig:"STREAM_POLL_INTERVAL" default:"600ms"`
	MaxPreviewBytes    int64         `envconfig:"MAX_PREVIEW_BYTES" default:"200000"`
}

// APIKey returns the key for the OpenAI-compatible provider, preferring OPENAI_API_KEY.
func (c *Config) APIKey() string {
	if c.OpenAIAPIKey != "" {
		return c.OpenAIAPIKey
	}
	return c.SCOSAPIKey
}

// Model resolves the model name. An explicit override wins, then OPENAI_MODEL,
// then SCOS_MODEL, then the built-in default.
func (c *Config) Model(override string) string {
	for _, m := range []string{override, c.OpenAIModel, c.SCOSModel} {
		if strings.TrimSpace(m) != "" {
			return strings.TrimSpace(m)
		}
	}
	return defaultOpenAIModel
}

// CatalogEnabled returns true if a SQLite run catalog path is configured.
func (c *Config) CatalogEnabled() bool {
	return c.CatalogPath != ""
}

// IsDevelopment reports whether human-friendly console logging should be used.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

// SkillRoots returns the configured skill roots followed by extra, in order.
func (c *Config) SkillRoots(extra ...string) []string {
	roots := make([]string, 0, len(c.SkillDirs)+len(extra))
	for _, r := range append(append([]string{}, c.SkillDirs...), extra...) {
		r = strings.TrimSpace(r)
		if r != "" {
			roots = append(roots, r)
		}
	}
	return roots
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// LoadWithPrefix reads configuration with a prefix.
func LoadWithPrefix(prefix string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("loading config with prefix %s: %w", prefix, err)
	}
	return &cfg, nil
}
