package llm

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Supported providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Config holds configuration for creating a TextGenerator.
type Config struct {
	Provider       string        // "anthropic" or "openai"
	Endpoint       string        // Base URL; required for openai
	APIKey         string        // Required for anthropic, optional for local endpoints
	RequestTimeout time.Duration // Per-request HTTP timeout
}

func (c *Config) requestTimeout() time.Duration {
	if c.RequestTimeout <= 0 {
		return 5 * time.Minute
	}
	return c.RequestTimeout
}

// NewTextGenerator builds the TextGenerator for cfg.Provider.
func NewTextGenerator(cfg *Config, logger *zap.Logger) (TextGenerator, error) {
	switch cfg.Provider {
	case ProviderAnthropic, "":
		return NewAnthropicClient(cfg, logger)
	case ProviderOpenAI:
		return NewOpenAIClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
	}
}

func (r *Request) validate() error {
	if r.Model == "" {
		return NewError(ErrorTypeModel, "model is required", false, nil)
	}
	if r.Prompt == "" {
		return NewError(ErrorTypeContent, "prompt is required", false, nil)
	}
	if r.MaxTokens <= 0 {
		return NewError(ErrorTypeContent, "max tokens must be positive", false, nil)
	}
	return nil
}

// answeringModel prefers the model the provider reports having served,
// which can differ from an alias in the request.
func answeringModel(reported, requested string) string {
	if reported != "" {
		return reported
	}
	return requested
}
