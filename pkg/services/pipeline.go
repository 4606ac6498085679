package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/extract"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/models"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/registry"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/render"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/storage"
)

// documentText downloads and extracts the document PDF. Newsroom items without
// a PDF fall back to their title and summary.
func documentText(ctx context.Context, reg registry.Registry, doc *models.RegulatoryDocument) (string, error) {
	if doc.PDFURL == "" {
		if doc.Source == models.DocumentSourceAgencyNewsroom && strings.TrimSpace(doc.Abstract) != "" {
			return doc.Title + "\n\n" + doc.Abstract, nil
		}
		return "", apperrors.ExtractionError("document does not have a PDF URL", nil)
	}

	data, err := reg.DownloadPDF(ctx, doc.PDFURL)
	if err != nil {
		return "", err
	}
	return extract.ExtractClean(data)
}

// loadLogo reads the tenant logo from the blob store. A missing or unreadable
// logo renders without one.
func loadLogo(ctx context.Context, blobs storage.BlobStore, tenant *models.Tenant, logger *zap.Logger) []byte {
	if tenant.Branding.LogoPath == "" {
		return nil
	}
	data, err := blobs.Get(ctx, tenant.Branding.LogoPath)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			logger.Warn("Failed to load tenant logo",
				zap.String("tenant_id", tenant.ID.String()),
				zap.String("path", tenant.Branding.LogoPath),
				zap.Error(err))
		}
		return nil
	}
	return data
}

// renderAndStore renders input for outputType and writes it to blobPath(ext).
// Returns the stored path and its size.
func renderAndStore(
	ctx context.Context,
	blobs storage.BlobStore,
	outputType models.OutputType,
	input *render.RenderInput,
	blobPath func(ext string) string,
) (string, int64, error) {
	renderer, err := render.ForOutputType(outputType)
	if err != nil {
		return "", 0, apperrors.RenderError("no renderer", err)
	}
	data, err := renderer.Render(input)
	if err != nil {
		return "", 0, err
	}
	p := blobPath(renderer.Extension())
	if err := blobs.Put(ctx, p, data); err != nil {
		return "", 0, err
	}
	return p, int64(len(data)), nil
}

// renderInput assembles renderer input from generated content.
func renderInput(gen *GenerationResult, doc *models.RegulatoryDocument, tenant *models.Tenant, logo []byte, clientName string) *render.RenderInput {
	in := &render.RenderInput{
		Deck:       gen.Deck,
		Document:   doc,
		Branding:   tenant.Branding,
		Logo:       logo,
		ClientName: clientName,
	}
	if gen.Deck == nil {
		in.Markdown = gen.Text
	}
	return in
}

func completion(path string, gen *GenerationResult) *models.OutputCompletion {
	return &models.OutputCompletion{
		OutputPath:   path,
		SourceText:   gen.Text,
		ModelUsed:    gen.ModelUsed,
		TokensInput:  gen.TokensInput,
		TokensOutput: gen.TokensOutput,
	}
}
