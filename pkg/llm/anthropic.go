package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/logging"
)

// AnthropicClient generates text with the Anthropic Messages API.
type AnthropicClient struct {
	client   *anthropic.Client
	endpoint string
	logger   *zap.Logger
}

// NewAnthropicClient creates a client for the Anthropic Messages API.
// endpoint may be empty to use the public API.
func NewAnthropicClient(cfg *Config, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	opts := []anthropic.ClientOption{
		anthropic.WithHTTPClient(&http.Client{Timeout: cfg.requestTimeout()}),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(cfg.Endpoint, "/")))
	}

	return &AnthropicClient{
		client:   anthropic.NewClient(cfg.APIKey, opts...),
		endpoint: cfg.Endpoint,
		logger:   logger.Named("llm-anthropic"),
	}, nil
}

// Provider implements TextGenerator.
func (c *AnthropicClient) Provider() string {
	return ProviderAnthropic
}

// Generate implements TextGenerator.
func (c *AnthropicClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	c.logger.Debug("LLM request",
		zap.String("model", req.Model),
		zap.Int("prompt_len", len(req.Prompt)),
		zap.Int("max_tokens", req.MaxTokens))

	start := time.Now()
	prompt := req.Prompt
	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(req.Model),
		System:      req.System,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &prompt},
			}},
		},
	})
	if err != nil {
		c.logger.Error("LLM request failed",
			zap.String("model", req.Model),
			zap.Duration("elapsed", time.Since(start)),
			logging.ErrorField(err))
		llmErr := ClassifyError(err)
		llmErr.Model = req.Model
		llmErr.Endpoint = c.endpoint
		return nil, llmErr
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			content.WriteString(*block.Text)
		}
	}
	if content.Len() == 0 {
		return nil, NewErrorWithContext(ErrorTypeContent, "empty response", false, nil, req.Model, c.endpoint, 0)
	}

	model := answeringModel(string(resp.Model), req.Model)
	c.logger.Info("LLM request completed",
		zap.String("model", model),
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))

	return &Response{
		Content:      content.String(),
		Model:        model,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		StopReason:   string(resp.StopReason),
	}, nil
}
