package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/config"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/extract"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/llm"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/models"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/prompts"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/retry"
)

// GeneratorConfig holds model defaults and limits for content generation.
type GeneratorConfig struct {
	BaseMemoModel      string
	BaseSlideModel     string
	CustomizationModel string
	MemoMaxTokens      int
	SlideMaxTokens     int
	MaxInputChars      int
	Retry              *retry.Config
}

// GeneratorConfigFrom maps the llm config section onto a GeneratorConfig.
func GeneratorConfigFrom(cfg *config.LLMConfig) GeneratorConfig {
	return GeneratorConfig{
		BaseMemoModel:      cfg.BaseMemoModel,
		BaseSlideModel:     cfg.BaseSlideModel,
		CustomizationModel: cfg.CustomizationModel,
		MemoMaxTokens:      cfg.MemoMaxTokens,
		SlideMaxTokens:     cfg.SlideMaxTokens,
		MaxInputChars:      cfg.MaxInputChars,
		Retry:              retry.LLMConfig(),
	}
}

// GenerationResult is the intermediate content that feeds a renderer.
type GenerationResult struct {
	// Text is memo markdown, or the deck as JSON for slide decks.
	Text         string
	Deck         *models.SlideDeck
	ModelUsed    string
	TokensInput  int
	TokensOutput int
	Truncated    bool
}

// ContentGenerator produces base and client-customized artifact content.
type ContentGenerator interface {
	// GenerateBase runs the high-capability model over the document text.
	GenerateBase(ctx context.Context, doc *models.RegulatoryDocument, tenant *models.Tenant, documentText string) (*GenerationResult, error)

	// GenerateSlides builds a deck from raw text using descriptionDoc (or the default rules).
	GenerateSlides(ctx context.Context, descriptionDoc, documentText, model string) (*GenerationResult, error)

	// GenerateClientCustomization re-frames base content for one client.
	GenerateClientCustomization(ctx context.Context, outputType models.OutputType, baseText string, client *models.Client, tenant *models.Tenant) (*GenerationResult, error)
}

type contentGenerator struct {
	llm    llm.TextGenerator
	cfg    GeneratorConfig
	logger *zap.Logger
}

var _ ContentGenerator = (*contentGenerator)(nil)

// NewContentGenerator creates a ContentGenerator over the given model transport.
func NewContentGenerator(generator llm.TextGenerator, cfg GeneratorConfig, logger *zap.Logger) ContentGenerator {
	if cfg.MemoMaxTokens <= 0 {
		cfg.MemoMaxTokens = 4000
	}
	if cfg.SlideMaxTokens <= 0 {
		cfg.SlideMaxTokens = 16000
	}
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = 180000
	}
	if cfg.Retry == nil {
		cfg.Retry = retry.LLMConfig()
	}
	return &contentGenerator{
		llm:    generator,
		cfg:    cfg,
		logger: logger.Named("content-generator"),
	}
}

func (g *contentGenerator) GenerateBase(ctx context.Context, doc *models.RegulatoryDocument, tenant *models.Tenant, documentText string) (*GenerationResult, error) {
	switch tenant.OutputType {
	case models.OutputTypeMemoPDF:
		return g.generateMemo(ctx, doc, tenant, documentText)
	case models.OutputTypeSlideDeck:
		model := pick(tenant.ModelConfig.BaseModel, g.cfg.BaseSlideModel)
		return g.GenerateSlides(ctx, tenant.DescriptionDoc, documentText, model)
	default:
		return nil, apperrors.GenerationError(fmt.Sprintf("unsupported output type %q", tenant.OutputType), nil)
	}
}

func (g *contentGenerator) generateMemo(ctx context.Context, doc *models.RegulatoryDocument, tenant *models.Tenant, documentText string) (*GenerationResult, error) {
	text, truncated := g.truncate(documentText)
	temperature := prompts.MemoTemperature

	req := &llm.Request{
		Model:  pick(tenant.ModelConfig.BaseModel, g.cfg.BaseMemoModel),
		System: prompts.BuildMemoSystemPrompt(tenant.DisplayName()),
		Prompt: prompts.BuildMemoPrompt(prompts.DocumentContext{
			Title:           doc.Title,
			PublicationDate: doc.PublicationDateString(),
			DocumentType:    doc.DocumentType,
			Citation:        doc.Citation,
			Abstract:        doc.Abstract,
		}, text),
		MaxTokens:   g.cfg.MemoMaxTokens,
		Temperature: &temperature,
	}

	resp, err := g.call(ctx, req)
	if err != nil {
		return nil, err
	}

	memo := strings.TrimSpace(resp.Content)
	if memo == "" {
		return nil, apperrors.GenerationError("model returned an empty memo", nil)
	}

	return &GenerationResult{
		Text:         memo,
		ModelUsed:    modelName(resp, req),
		TokensInput:  resp.InputTokens,
		TokensOutput: resp.OutputTokens,
		Truncated:    truncated,
	}, nil
}

func (g *contentGenerator) GenerateSlides(ctx context.Context, descriptionDoc, documentText, model string) (*GenerationResult, error) {
	text, truncated := g.truncate(documentText)

	req := &llm.Request{
		Model:     pick(model, g.cfg.BaseSlideModel),
		System:    prompts.BuildSlideSystemPrompt(),
		Prompt:    prompts.BuildSlidePrompt(descriptionDoc, text),
		MaxTokens: g.cfg.SlideMaxTokens,
	}

	resp, err := g.call(ctx, req)
	if err != nil {
		return nil, err
	}

	deck, deckJSON, err := decodeDeck(resp.Content)
	if err != nil {
		g.logger.Warn("Model returned an invalid slide deck",
			zap.String("model", req.Model),
			zap.String("stop_reason", resp.StopReason),
			zap.Error(err))
		return nil, err
	}

	return &GenerationResult{
		Text:         deckJSON,
		Deck:         deck,
		ModelUsed:    modelName(resp, req),
		TokensInput:  resp.InputTokens,
		TokensOutput: resp.OutputTokens,
		Truncated:    truncated,
	}, nil
}

func (g *contentGenerator) GenerateClientCustomization(ctx context.Context, outputType models.OutputType, baseText string, client *models.Client, tenant *models.Tenant) (*GenerationResult, error) {
	if strings.TrimSpace(baseText) == "" {
		return nil, apperrors.GenerationError("base content is empty", nil)
	}

	clientCtx := prompts.ClientContext{
		Name:       client.Name,
		Industry:   client.Industry,
		Context:    client.Context,
		FocusAreas: client.FocusAreas,
	}
	req := &llm.Request{Model: pick(tenant.ModelConfig.CustomizationModel, g.cfg.CustomizationModel)}

	switch outputType {
	case models.OutputTypeMemoPDF:
		temperature := prompts.MemoTemperature
		req.System = prompts.BuildMemoCustomizationSystemPrompt()
		req.Prompt = prompts.BuildMemoCustomizationPrompt(baseText, clientCtx)
		req.MaxTokens = g.cfg.MemoMaxTokens
		req.Temperature = &temperature
	case models.OutputTypeSlideDeck:
		req.System = prompts.BuildDeckCustomizationSystemPrompt()
		req.Prompt = prompts.BuildDeckCustomizationPrompt(baseText, clientCtx)
		req.MaxTokens = g.cfg.SlideMaxTokens
	default:
		return nil, apperrors.GenerationError(fmt.Sprintf("unsupported output type %q", outputType), nil)
	}

	resp, err := g.call(ctx, req)
	if err != nil {
		return nil, err
	}

	result := &GenerationResult{
		ModelUsed:    modelName(resp, req),
		TokensInput:  resp.InputTokens,
		TokensOutput: resp.OutputTokens,
	}

	if outputType == models.OutputTypeSlideDeck {
		deck, deckJSON, err := decodeDeck(resp.Content)
		if err != nil {
			return nil, err
		}
		result.Deck, result.Text = deck, deckJSON
		return result, nil
	}

	result.Text = strings.TrimSpace(resp.Content)
	if result.Text == "" {
		return nil, apperrors.GenerationError("model returned an empty memo", nil)
	}
	return result, nil
}

// call runs one model request with retries on transient failures.
func (g *contentGenerator) call(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	g.logger.Debug("Calling model",
		zap.String("model", req.Model),
		zap.Int("prompt_chars", len(req.Prompt)),
		zap.Int("max_tokens", req.MaxTokens))

	resp, err := retry.DoWithResult(ctx, g.cfg.Retry, func() (*llm.Response, error) {
		return g.llm.Generate(ctx, req)
	})
	if err != nil {
		g.logger.Error("Model call failed",
			zap.String("model", req.Model),
			zap.String("error_type", string(llm.GetErrorType(err))),
			zap.Error(err))
		return nil, apperrors.GenerationError("model call failed", err)
	}
	return resp, nil
}

func (g *contentGenerator) truncate(text string) (string, bool) {
	out := extract.Truncate(text, g.cfg.MaxInputChars)
	if out != text {
		g.logger.Info("Truncated document text for model input",
			zap.Int("max_chars", g.cfg.MaxInputChars))
		return out, true
	}
	return text, false
}

// decodeDeck extracts and validates a slide deck from model output.
// Invalid decks are rejected, never repaired.
func decodeDeck(content string) (*models.SlideDeck, string, error) {
	raw, err := llm.ExtractJSON(content)
	if err != nil {
		return nil, "", apperrors.GenerationError("no slide deck JSON in model output", err)
	}

	var deck models.SlideDeck
	if err := json.Unmarshal([]byte(raw), &deck); err != nil {
		return nil, "", apperrors.GenerationError("slide deck JSON does not match schema", err)
	}
	if err := deck.Validate(); err != nil {
		return nil, "", apperrors.GenerationError("invalid slide deck", err)
	}

	normalized, err := json.Marshal(&deck)
	if err != nil {
		return nil, "", apperrors.GenerationError("failed to encode slide deck", err)
	}
	return &deck, string(normalized), nil
}

func pick(override, fallback string) string {
	if strings.TrimSpace(override) != "" {
		return override
	}
	return fallback
}

func modelName(resp *llm.Response, req *llm.Request) string {
	if resp.Model != "" {
		return resp.Model
	}
	return req.Model
}
