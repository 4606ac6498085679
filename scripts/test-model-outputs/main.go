// test-model-outputs runs base generation for one PDF across several models.
// Each model's output is decoded, validated and rendered exactly as the pipeline
// would, and the artifact is written next to the others for side-by-side review.
//
// Usage: go run ./scripts/test-model-outputs -pdf rule.pdf -models claude-sonnet-4-20250514,claude-opus-4-5-20251101
//
// Provider credentials come from the same LLM_* environment variables as the server.
//
// Flags:
//
//	-type     memo_pdf or slide_deck (default: slide_deck)
//	-out      output directory (default: ./model-outputs)
//	-timeout  per-model timeout (default: 5m)
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/extract"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/llm"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/models"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/render"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/retry"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/services"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/storage"
)

type result struct {
	Model        string
	Success      bool
	Error        string
	Slides       int
	TokensInput  int
	TokensOutput int
	Duration     time.Duration
	OutputFile   string
}

func main() {
	pdfPath := flag.String("pdf", "", "PDF to summarize")
	modelList := flag.String("models", "", "Comma-separated model identifiers")
	outputType := flag.String("type", string(models.OutputTypeSlideDeck), "memo_pdf or slide_deck")
	outDir := flag.String("out", "./model-outputs", "Directory for rendered artifacts")
	timeout := flag.Duration("timeout", 5*time.Minute, "Timeout for each model call")
	flag.Parse()

	if *pdfPath == "" || *modelList == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -pdf <file> -models <m1,m2,...> [-type slide_deck|memo_pdf]\n", os.Args[0])
		os.Exit(1)
	}
	if !models.IsValidOutputType(models.OutputType(*outputType)) {
		fmt.Fprintf(os.Stderr, "Invalid output type %q\n", *outputType)
		os.Exit(1)
	}

	logConfig := zap.NewDevelopmentConfig()
	logConfig.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	logger, _ := logConfig.Build()
	defer func() { _ = logger.Sync() }()

	data, err := os.ReadFile(*pdfPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read PDF: %v\n", err)
		os.Exit(1)
	}
	text, err := extract.ExtractClean(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to extract text: %v\n", err)
		os.Exit(1)
	}

	textGen, err := llm.NewTextGenerator(&llm.Config{
		Provider:       os.Getenv("LLM_PROVIDER"),
		Endpoint:       os.Getenv("LLM_ENDPOINT"),
		APIKey:         os.Getenv("LLM_API_KEY"),
		RequestTimeout: *timeout,
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create model client: %v\n", err)
		os.Exit(1)
	}

	generator := services.NewContentGenerator(textGen, services.GeneratorConfig{
		MaxInputChars: 180000,
		Retry:         retry.LLMConfig(),
	}, logger)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	base := strings.TrimSuffix(filepath.Base(*pdfPath), filepath.Ext(*pdfPath))
	doc := &models.RegulatoryDocument{
		Source:     models.DocumentSourceFederalRegister,
		ExternalID: base,
		Title:      base,
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Model comparison: %s (%d chars extracted)\n", *pdfPath, len(text))
	fmt.Println(strings.Repeat("=", 80))

	var results []result
	for _, model := range strings.Split(*modelList, ",") {
		model = strings.TrimSpace(model)
		if model == "" {
			continue
		}
		tenant := &models.Tenant{
			Name:        "Model Comparison",
			OutputType:  models.OutputType(*outputType),
			ModelConfig: models.ModelConfig{BaseModel: model},
		}

		fmt.Printf("\n%s\nTesting: %s\n", strings.Repeat("-", 80), model)
		r := runModel(context.Background(), generator, doc, tenant, text, *outDir, *timeout)
		printResult(r)
		results = append(results, r)
	}

	fmt.Printf("\n%s\nSUMMARY\n%s\n", strings.Repeat("=", 80), strings.Repeat("=", 80))
	allPassed := true
	for _, r := range results {
		status := "PASS"
		if !r.Success {
			status = "FAIL"
			allPassed = false
		}
		fmt.Printf("%s  %-40s %6.1fs  in=%d out=%d\n", status, r.Model, r.Duration.Seconds(), r.TokensInput, r.TokensOutput)
	}
	if !allPassed {
		os.Exit(1)
	}
}

func runModel(ctx context.Context, generator services.ContentGenerator, doc *models.RegulatoryDocument, tenant *models.Tenant, text, outDir string, timeout time.Duration) result {
	r := result{Model: tenant.ModelConfig.BaseModel}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	gen, err := generator.GenerateBase(ctx, doc, tenant, text)
	r.Duration = time.Since(start)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.TokensInput = gen.TokensInput
	r.TokensOutput = gen.TokensOutput
	if gen.Deck != nil {
		r.Slides = len(gen.Deck.Slides)
	}

	renderer, err := render.ForOutputType(tenant.OutputType)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	artifact, err := renderer.Render(&render.RenderInput{
		Deck:     gen.Deck,
		Markdown: gen.Text,
		Document: doc,
		Branding: tenant.Branding,
	})
	if err != nil {
		r.Error = fmt.Sprintf("render failed: %v", err)
		return r
	}

	r.OutputFile = filepath.Join(outDir, storage.SafeName(r.Model)+"."+renderer.Extension())
	if err := os.WriteFile(r.OutputFile, artifact, 0o644); err != nil {
		r.Error = fmt.Sprintf("write failed: %v", err)
		return r
	}
	r.Success = true
	return r
}

func printResult(r result) {
	if !r.Success {
		fmt.Printf("Status: FAIL\nError: %s\n", r.Error)
		return
	}
	fmt.Printf("Status: PASS (%s)\n", r.Duration.Round(time.Millisecond))
	if r.Slides > 0 {
		fmt.Printf("Slides: %d\n", r.Slides)
	}
	fmt.Printf("Tokens: input=%d output=%d\n", r.TokensInput, r.TokensOutput)
	fmt.Printf("Wrote: %s\n", r.OutputFile)
}
