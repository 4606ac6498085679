package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/llm"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/logging"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/models"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/repositories"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/storage"
)

// GenerateClientsRequest selects clients of a tenant for customization of one document.
type GenerateClientsRequest struct {
	DocumentID uuid.UUID
	TenantID   uuid.UUID
	ClientIDs  []uuid.UUID
	SelectedBy string
}

// ClientResult is the outcome for one requested client.
type ClientResult struct {
	ClientID   uuid.UUID            `json:"client_id"`
	ClientName string               `json:"client_name,omitempty"`
	Output     *models.ClientOutput `json:"output,omitempty"`
	Error      string               `json:"error,omitempty"`
}

// ClientCustomizationService derives per-client artifacts from a completed base output.
type ClientCustomizationService interface {
	// GenerateClients customizes the base for each requested client, in parallel.
	// Results follow the order of req.ClientIDs. One client's failure never
	// affects the others. Returns apperrors.ErrBaseNotComplete until the base is done.
	GenerateClients(ctx context.Context, req GenerateClientsRequest) ([]ClientResult, error)

	// ListForDocument returns the tenant's client outputs for a document.
	ListForDocument(ctx context.Context, documentID, tenantID uuid.UUID) ([]*models.ClientOutput, error)
}

type clientCustomizationService struct {
	documentRepo     repositories.DocumentRepository
	tenantRepo       repositories.TenantRepository
	clientRepo       repositories.ClientRepository
	baseOutputRepo   repositories.BaseOutputRepository
	clientOutputRepo repositories.ClientOutputRepository
	generator        ContentGenerator
	blobs            storage.BlobStore
	pool             *llm.WorkerPool
	tenantCtx        TenantContextFunc
	logger           *zap.Logger
}

var _ ClientCustomizationService = (*clientCustomizationService)(nil)

// NewClientCustomizationService creates a ClientCustomizationService.
// Each worker acquires its own connection through tenantCtx.
func NewClientCustomizationService(
	documentRepo repositories.DocumentRepository,
	tenantRepo repositories.TenantRepository,
	clientRepo repositories.ClientRepository,
	baseOutputRepo repositories.BaseOutputRepository,
	clientOutputRepo repositories.ClientOutputRepository,
	generator ContentGenerator,
	blobs storage.BlobStore,
	pool *llm.WorkerPool,
	tenantCtx TenantContextFunc,
	logger *zap.Logger,
) ClientCustomizationService {
	return &clientCustomizationService{
		documentRepo:     documentRepo,
		tenantRepo:       tenantRepo,
		clientRepo:       clientRepo,
		baseOutputRepo:   baseOutputRepo,
		clientOutputRepo: clientOutputRepo,
		generator:        generator,
		blobs:            blobs,
		pool:             pool,
		tenantCtx:        tenantCtx,
		logger:           logger.Named("client-customization"),
	}
}

func (s *clientCustomizationService) GenerateClients(ctx context.Context, req GenerateClientsRequest) ([]ClientResult, error) {
	doc, err := s.documentRepo.GetByID(ctx, req.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("document %s: %w", req.DocumentID, apperrors.ErrNotFound)
	}
	tenant, err := s.tenantRepo.GetByID(ctx, req.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}
	if tenant == nil {
		return nil, fmt.Errorf("tenant %s: %w", req.TenantID, apperrors.ErrNotFound)
	}

	base, err := s.baseOutputRepo.GetByDocumentAndTenant(ctx, doc.ID, tenant.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load base output: %w", err)
	}
	if base == nil || base.Status != models.OutputStatusComplete || base.SourceText == nil || *base.SourceText == "" {
		return nil, apperrors.ErrBaseNotComplete
	}

	clients, err := s.clientRepo.ListActiveByIDs(ctx, tenant.ID, req.ClientIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load clients: %w", err)
	}
	if len(clients) == 0 {
		return nil, fmt.Errorf("no active clients among request: %w", apperrors.ErrNotFound)
	}
	byID := make(map[uuid.UUID]*models.Client, len(clients))
	for _, c := range clients {
		byID[c.ID] = c
	}

	logo := loadLogo(ctx, s.blobs, tenant, s.logger)

	results := make([]ClientResult, len(req.ClientIDs))
	var items []llm.WorkItem[*models.ClientOutput]
	var slots []int
	for i, id := range req.ClientIDs {
		results[i].ClientID = id
		client, ok := byID[id]
		if !ok {
			results[i].Error = "client not found or inactive"
			continue
		}
		results[i].ClientName = client.Name
		slots = append(slots, i)
		items = append(items, llm.WorkItem[*models.ClientOutput]{
			ID: client.ID.String(),
			Execute: func(ctx context.Context) (*models.ClientOutput, error) {
				return withTenantScope(ctx, s.tenantCtx, tenant.ID, func(ctx context.Context) (*models.ClientOutput, error) {
					return s.customize(ctx, base, doc, tenant, client, logo, req.SelectedBy)
				})
			},
		})
	}

	outcomes := llm.Process(ctx, s.pool, items, func(completed, total int) {
		s.logger.Debug("Client customization progress",
			zap.Int("completed", completed),
			zap.Int("total", total))
	})

	var failed int
	for j, outcome := range outcomes {
		r := &results[slots[j]]
		r.Output = outcome.Result
		switch {
		case outcome.Err != nil:
			r.Error = logging.FailureMessage(outcome.Err)
		case outcome.Result != nil && outcome.Result.Status == models.OutputStatusFailed && outcome.Result.ErrorMessage != nil:
			r.Error = *outcome.Result.ErrorMessage
		}
		if r.Error != "" {
			failed++
		}
	}

	s.logger.Info("Client customization finished",
		zap.String("document_id", doc.ID.String()),
		zap.String("tenant_id", tenant.ID.String()),
		zap.Int("requested", len(req.ClientIDs)),
		zap.Int("failed", failed))

	return results, nil
}

// customize brings one client output to complete or failed.
func (s *clientCustomizationService) customize(
	ctx context.Context,
	base *models.BaseOutput,
	doc *models.RegulatoryDocument,
	tenant *models.Tenant,
	client *models.Client,
	logo []byte,
	selectedBy string,
) (*models.ClientOutput, error) {
	output, err := s.clientOutputRepo.FindOrCreate(ctx, base.ID, client.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to find or create client output: %w", err)
	}

	switch output.Status {
	case models.OutputStatusProcessing:
		return output, apperrors.ErrConflict
	case models.OutputStatusSkipped:
		return output, apperrors.ErrInvalidTransition
	case models.OutputStatusComplete:
		if output.OutputPath != nil && *output.OutputPath != "" {
			ok, err := s.blobs.Exists(ctx, *output.OutputPath)
			if err != nil {
				return nil, fmt.Errorf("failed to check stored artifact: %w", err)
			}
			if ok {
				return output, nil
			}
		}
		if err := s.reset(ctx, output.ID); err != nil {
			return output, err
		}
	case models.OutputStatusFailed:
		if err := s.reset(ctx, output.ID); err != nil {
			return output, err
		}
	}

	if err := s.clientOutputRepo.Select(ctx, output.ID, selectedBy); err != nil {
		return nil, err
	}
	ok, err := s.clientOutputRepo.BeginProcessing(ctx, output.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to begin processing: %w", err)
	}
	if !ok {
		return output, apperrors.ErrConflict
	}

	log := s.logger.With(
		zap.String("client_output_id", output.ID.String()),
		zap.String("client", client.Name))
	bookCtx := context.WithoutCancel(ctx)

	done, err := s.produce(ctx, base, doc, tenant, client, logo)
	if err != nil {
		log.Error("Client customization failed", logging.ErrorField(err))
		if mErr := s.clientOutputRepo.MarkFailed(bookCtx, output.ID, logging.FailureMessage(err)); mErr != nil {
			return nil, fmt.Errorf("failed to mark client output failed: %w", mErr)
		}
	} else {
		if mErr := s.clientOutputRepo.MarkComplete(bookCtx, output.ID, done); mErr != nil {
			return nil, fmt.Errorf("failed to mark client output complete: %w", mErr)
		}
		log.Info("Client output complete", zap.String("path", done.OutputPath))
	}

	return s.clientOutputRepo.GetByID(bookCtx, output.ID)
}

func (s *clientCustomizationService) produce(
	ctx context.Context,
	base *models.BaseOutput,
	doc *models.RegulatoryDocument,
	tenant *models.Tenant,
	client *models.Client,
	logo []byte,
) (*models.OutputCompletion, error) {
	gen, err := s.generator.GenerateClientCustomization(ctx, base.OutputType, *base.SourceText, client, tenant)
	if err != nil {
		return nil, err
	}
	path, _, err := renderAndStore(ctx, s.blobs, base.OutputType, renderInput(gen, doc, tenant, logo, client.Name), func(ext string) string {
		return storage.ClientPath(tenant.ID, doc.ExternalID, client.ID, client.Name, ext)
	})
	if err != nil {
		return nil, err
	}
	return completion(path, gen), nil
}

func (s *clientCustomizationService) reset(ctx context.Context, id uuid.UUID) error {
	ok, err := s.clientOutputRepo.ResetToPending(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to reset client output: %w", err)
	}
	if !ok {
		return apperrors.ErrConflict
	}
	return nil
}

func (s *clientCustomizationService) ListForDocument(ctx context.Context, documentID, tenantID uuid.UUID) ([]*models.ClientOutput, error) {
	base, err := s.baseOutputRepo.GetByDocumentAndTenant(ctx, documentID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load base output: %w", err)
	}
	if base == nil {
		return []*models.ClientOutput{}, nil
	}
	return s.clientOutputRepo.ListByBaseOutput(ctx, base.ID)
}
