// Package llm provides text generation against Anthropic and OpenAI-compatible endpoints.
package llm

import (
	"context"
)

// Request is a single-turn generation request.
type Request struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature *float32
}

// Response is the text and usage returned by a model.
type Response struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
	StopReason   string
}

// TextGenerator is the model abstraction used by the content generator.
// Use this interface for dependency injection to enable mocking in tests.
type TextGenerator interface {
	Generate(ctx context.Context, req *Request) (*Response, error)

	// Provider returns the backend name, e.g. "anthropic".
	Provider() string
}

// Ensure clients implement TextGenerator at compile time.
var (
	_ TextGenerator = (*AnthropicClient)(nil)
	_ TextGenerator = (*OpenAIClient)(nil)
)
