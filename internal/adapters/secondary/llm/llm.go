// Package llm adapts hosted language models to ports.CompletionClient.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/lorrc/ticket-triage/internal/core/domain"
	apperrors "github.com/lorrc/ticket-triage/internal/core/errors"
	"github.com/lorrc/ticket-triage/internal/core/ports"
)

// Supported providers.
const (
	ProviderGroq      = "groq"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Supported response formats for OpenAI-compatible providers.
const (
	ResponseFormatJSONObject = "json_object"
	ResponseFormatJSONSchema = "json_schema"
)

const (
	DefaultBaseURL     = "https://api.groq.com/openai/v1"
	DefaultModel       = "llama-3.3-70b-versatile"
	DefaultTemperature = 0.1
	DefaultMaxTokens   = 100
	DefaultTimeout     = 5 * time.Second

	defaultAnthropicModel = "claude-3-5-haiku-latest"
)

// Config selects and tunes the completion provider.
type Config struct {
	Provider       string
	APIKey         string
	BaseURL        string
	Model          string
	Temperature    float64
	MaxTokens      int
	Timeout        time.Duration
	ResponseFormat string
}

func (c Config) withDefaults() Config {
	if c.Provider == "" {
		c.Provider = ProviderGroq
	}
	if c.Model == "" {
		if c.Provider == ProviderAnthropic {
			c.Model = defaultAnthropicModel
		} else {
			c.Model = DefaultModel
		}
	}
	if c.BaseURL == "" && c.Provider == ProviderGroq {
		c.BaseURL = DefaultBaseURL
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.ResponseFormat == "" {
		c.ResponseFormat = ResponseFormatJSONObject
	}
	return c
}

// New builds the completion client for cfg. Without an API key the returned
// client reports Configured() == false and never reaches the network.
func New(cfg Config, logger *slog.Logger) (ports.CompletionClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	logger = logger.With("component", "llm", "provider", cfg.Provider, "model", cfg.Model)

	if strings.TrimSpace(cfg.APIKey) == "" {
		return unconfiguredClient{}, nil
	}

	switch cfg.Provider {
	case ProviderGroq, ProviderOpenAI:
		return newOpenAICompatibleClient(cfg, logger), nil
	case ProviderAnthropic:
		return newAnthropicClient(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

// unconfiguredClient stands in when no credential is present.
type unconfiguredClient struct{}

func (unconfiguredClient) Complete(context.Context, string, string) (string, error) {
	return "", apperrors.ErrLLMNotConfigured
}

func (unconfiguredClient) Configured() bool { return false }

// ClassificationSchema returns the JSON schema of a classification reply,
// with both fields required and constrained to their enumerations.
func ClassificationSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(domain.ClassificationResult{})
}
