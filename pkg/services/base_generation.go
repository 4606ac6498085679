package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/logging"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/models"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/registry"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/repositories"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/storage"
)

// GenerateBaseRequest identifies the base artifact to produce.
type GenerateBaseRequest struct {
	DocumentID uuid.UUID
	TenantID   uuid.UUID
}

// GenerateBaseResult is the state of a base output after a generation attempt.
type GenerateBaseResult struct {
	Output *models.BaseOutput `json:"output"`
	// AlreadyComplete is set when a stored artifact was returned without regenerating.
	AlreadyComplete bool `json:"already_complete,omitempty"`
}

// Failed reports whether the attempt ended with the output marked failed.
func (r *GenerateBaseResult) Failed() bool {
	return r.Output != nil && r.Output.Status == models.OutputStatusFailed
}

// RunPendingResult summarizes one batch of automatic base generation.
type RunPendingResult struct {
	Disabled  bool `json:"disabled,omitempty"`
	Attempted int  `json:"attempted"`
	Completed int  `json:"completed"`
	Failed    int  `json:"failed"`
	Skipped   int  `json:"skipped"`
}

// BaseGenerationService produces tenant-level artifacts.
type BaseGenerationService interface {
	// Generate finds or creates the base output and runs generation unless it is
	// already processing (apperrors.ErrConflict) or complete with a stored file.
	// Stage failures are recorded on the output, not returned.
	Generate(ctx context.Context, req GenerateBaseRequest) (*GenerateBaseResult, error)

	// Approve starts generation for an output awaiting approval.
	Approve(ctx context.Context, tenantID, outputID uuid.UUID) (*GenerateBaseResult, error)

	// Retry resets a failed output to pending and generates it again.
	Retry(ctx context.Context, tenantID, outputID uuid.UUID) (*GenerateBaseResult, error)

	// RunPending generates up to limit pending outputs of auto-processing tenants, oldest first.
	RunPending(ctx context.Context, limit int) (*RunPendingResult, error)
}

type baseGenerationService struct {
	documentRepo   repositories.DocumentRepository
	tenantRepo     repositories.TenantRepository
	baseOutputRepo repositories.BaseOutputRepository
	settingsRepo   repositories.MonitorSettingsRepository
	registry       registry.Registry
	generator      ContentGenerator
	blobs          storage.BlobStore
	logger         *zap.Logger
}

var _ BaseGenerationService = (*baseGenerationService)(nil)

// NewBaseGenerationService creates a BaseGenerationService.
func NewBaseGenerationService(
	documentRepo repositories.DocumentRepository,
	tenantRepo repositories.TenantRepository,
	baseOutputRepo repositories.BaseOutputRepository,
	settingsRepo repositories.MonitorSettingsRepository,
	reg registry.Registry,
	generator ContentGenerator,
	blobs storage.BlobStore,
	logger *zap.Logger,
) BaseGenerationService {
	return &baseGenerationService{
		documentRepo:   documentRepo,
		tenantRepo:     tenantRepo,
		baseOutputRepo: baseOutputRepo,
		settingsRepo:   settingsRepo,
		registry:       reg,
		generator:      generator,
		blobs:          blobs,
		logger:         logger.Named("base-generation"),
	}
}

func (s *baseGenerationService) Generate(ctx context.Context, req GenerateBaseRequest) (*GenerateBaseResult, error) {
	doc, tenant, err := s.load(ctx, req.DocumentID, req.TenantID)
	if err != nil {
		return nil, err
	}

	output, _, err := s.baseOutputRepo.FindOrCreate(ctx, doc.ID, tenant.ID, tenant.OutputType, tenant.InitialOutputStatus())
	if err != nil {
		return nil, fmt.Errorf("failed to find or create base output: %w", err)
	}

	switch output.Status {
	case models.OutputStatusProcessing:
		return nil, apperrors.ErrConflict
	case models.OutputStatusSkipped:
		return nil, apperrors.ErrInvalidTransition
	case models.OutputStatusComplete:
		stored, err := s.hasStoredFile(ctx, output)
		if err != nil {
			return nil, err
		}
		if stored {
			return &GenerateBaseResult{Output: output, AlreadyComplete: true}, nil
		}
		s.logger.Warn("Complete output has no stored file, regenerating",
			zap.String("output_id", output.ID.String()))
		if err := s.reset(ctx, output.ID); err != nil {
			return nil, err
		}
	case models.OutputStatusFailed:
		if err := s.reset(ctx, output.ID); err != nil {
			return nil, err
		}
	}

	return s.process(ctx, output.ID, doc, tenant)
}

func (s *baseGenerationService) Approve(ctx context.Context, tenantID, outputID uuid.UUID) (*GenerateBaseResult, error) {
	output, err := s.getOwned(ctx, tenantID, outputID)
	if err != nil {
		return nil, err
	}
	if output.Status == models.OutputStatusProcessing {
		return nil, apperrors.ErrConflict
	}
	if output.Status != models.OutputStatusAwaitingApproval {
		return nil, fmt.Errorf("%w: output is %s", apperrors.ErrInvalidTransition, output.Status)
	}

	doc, tenant, err := s.load(ctx, output.RegulatoryDocumentID, tenantID)
	if err != nil {
		return nil, err
	}
	return s.process(ctx, output.ID, doc, tenant)
}

func (s *baseGenerationService) Retry(ctx context.Context, tenantID, outputID uuid.UUID) (*GenerateBaseResult, error) {
	output, err := s.getOwned(ctx, tenantID, outputID)
	if err != nil {
		return nil, err
	}
	if output.Status == models.OutputStatusProcessing {
		return nil, apperrors.ErrConflict
	}
	if output.Status != models.OutputStatusFailed {
		return nil, fmt.Errorf("%w: output is %s", apperrors.ErrInvalidTransition, output.Status)
	}

	doc, tenant, err := s.load(ctx, output.RegulatoryDocumentID, tenantID)
	if err != nil {
		return nil, err
	}
	if err := s.reset(ctx, output.ID); err != nil {
		return nil, err
	}
	return s.process(ctx, output.ID, doc, tenant)
}

func (s *baseGenerationService) RunPending(ctx context.Context, limit int) (*RunPendingResult, error) {
	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load monitor settings: %w", err)
	}
	if settings != nil && !settings.AutoProcessNew {
		return &RunPendingResult{Disabled: true}, nil
	}

	pending, err := s.baseOutputRepo.ListPendingAutoProcess(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending outputs: %w", err)
	}

	result := &RunPendingResult{}
	for _, output := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Attempted++

		doc, tenant, err := s.load(ctx, output.RegulatoryDocumentID, output.TenantID)
		if err != nil {
			result.Failed++
			s.logger.Error("Failed to load pending output context",
				zap.String("output_id", output.ID.String()),
				zap.Error(err))
			continue
		}

		res, err := s.process(ctx, output.ID, doc, tenant)
		switch {
		case err != nil:
			// Another worker claimed it first.
			result.Skipped++
		case res.Failed():
			result.Failed++
		default:
			result.Completed++
		}
	}

	s.logger.Info("Processed pending outputs",
		zap.Int("attempted", result.Attempted),
		zap.Int("completed", result.Completed),
		zap.Int("failed", result.Failed))

	return result, nil
}

// process claims the output and runs the pipeline. Losing the claim is ErrConflict.
func (s *baseGenerationService) process(ctx context.Context, outputID uuid.UUID, doc *models.RegulatoryDocument, tenant *models.Tenant) (*GenerateBaseResult, error) {
	ok, err := s.baseOutputRepo.BeginProcessing(ctx, outputID)
	if err != nil {
		return nil, fmt.Errorf("failed to begin processing: %w", err)
	}
	if !ok {
		return nil, apperrors.ErrConflict
	}

	log := s.logger.With(
		zap.String("output_id", outputID.String()),
		zap.String("document_id", doc.ID.String()),
		zap.String("tenant_id", tenant.ID.String()))

	// Bookkeeping must land even if the caller goes away mid-generation.
	bookCtx := context.WithoutCancel(ctx)

	done, err := s.produce(ctx, doc, tenant)
	if err != nil {
		log.Error("Base generation failed", logging.ErrorField(err))
		if mErr := s.baseOutputRepo.MarkFailed(bookCtx, outputID, logging.FailureMessage(err)); mErr != nil {
			return nil, fmt.Errorf("failed to mark output failed: %w", mErr)
		}
	} else {
		if mErr := s.baseOutputRepo.MarkComplete(bookCtx, outputID, done); mErr != nil {
			return nil, fmt.Errorf("failed to mark output complete: %w", mErr)
		}
		log.Info("Base output complete",
			zap.String("path", done.OutputPath),
			zap.String("model", done.ModelUsed),
			zap.Int("tokens_in", done.TokensInput),
			zap.Int("tokens_out", done.TokensOutput))
	}

	output, err := s.baseOutputRepo.GetByID(bookCtx, outputID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload output: %w", err)
	}
	return &GenerateBaseResult{Output: output}, nil
}

// produce runs download → extract → generate → render → store.
func (s *baseGenerationService) produce(ctx context.Context, doc *models.RegulatoryDocument, tenant *models.Tenant) (*models.OutputCompletion, error) {
	text, err := documentText(ctx, s.registry, doc)
	if err != nil {
		return nil, err
	}

	gen, err := s.generator.GenerateBase(ctx, doc, tenant, text)
	if err != nil {
		return nil, err
	}

	logo := loadLogo(ctx, s.blobs, tenant, s.logger)
	path, _, err := renderAndStore(ctx, s.blobs, tenant.OutputType, renderInput(gen, doc, tenant, logo, ""), func(ext string) string {
		return storage.BasePath(tenant.ID, doc.ExternalID, ext)
	})
	if err != nil {
		return nil, err
	}
	return completion(path, gen), nil
}

func (s *baseGenerationService) load(ctx context.Context, documentID, tenantID uuid.UUID) (*models.RegulatoryDocument, *models.Tenant, error) {
	doc, err := s.documentRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load document: %w", err)
	}
	if doc == nil {
		return nil, nil, fmt.Errorf("document %s: %w", documentID, apperrors.ErrNotFound)
	}
	tenant, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load tenant: %w", err)
	}
	if tenant == nil {
		return nil, nil, fmt.Errorf("tenant %s: %w", tenantID, apperrors.ErrNotFound)
	}
	return doc, tenant, nil
}

func (s *baseGenerationService) getOwned(ctx context.Context, tenantID, outputID uuid.UUID) (*models.BaseOutput, error) {
	output, err := s.baseOutputRepo.GetByID(ctx, outputID)
	if err != nil {
		return nil, fmt.Errorf("failed to load output: %w", err)
	}
	if output == nil || output.TenantID != tenantID {
		return nil, fmt.Errorf("output %s: %w", outputID, apperrors.ErrNotFound)
	}
	return output, nil
}

func (s *baseGenerationService) reset(ctx context.Context, outputID uuid.UUID) error {
	ok, err := s.baseOutputRepo.ResetToPending(ctx, outputID)
	if err != nil {
		return fmt.Errorf("failed to reset output: %w", err)
	}
	if !ok {
		return apperrors.ErrConflict
	}
	return nil
}

func (s *baseGenerationService) hasStoredFile(ctx context.Context, output *models.BaseOutput) (bool, error) {
	if output.OutputPath == nil || *output.OutputPath == "" {
		return false, nil
	}
	ok, err := s.blobs.Exists(ctx, *output.OutputPath)
	if err != nil {
		return false, fmt.Errorf("failed to check stored artifact: %w", err)
	}
	return ok, nil
}
