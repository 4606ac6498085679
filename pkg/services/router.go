package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/models"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/repositories"
)

// RouteResult summarizes the fan-out of one document.
type RouteResult struct {
	DocumentID         uuid.UUID `json:"document_id"`
	TenantsMatched     int       `json:"tenants_matched"`
	OutputsCreated     int       `json:"outputs_created"`
	OutputsExisting    int       `json:"outputs_existing"`
	ClientPlaceholders int64     `json:"client_placeholders"`
	Errors             int       `json:"errors"`
}

// RouterService fans a new document out to every subscribed tenant.
type RouterService interface {
	// RouteDocument creates at most one base output per subscribed tenant and,
	// for tenants with a client roster, one placeholder per active client.
	// Safe to call repeatedly for the same document.
	RouteDocument(ctx context.Context, doc *models.RegulatoryDocument) (*RouteResult, error)
}

type routerService struct {
	agencyRepo       repositories.AgencyRepository
	tenantRepo       repositories.TenantRepository
	baseOutputRepo   repositories.BaseOutputRepository
	clientOutputRepo repositories.ClientOutputRepository
	logger           *zap.Logger
}

var _ RouterService = (*routerService)(nil)

// NewRouterService creates a RouterService.
func NewRouterService(
	agencyRepo repositories.AgencyRepository,
	tenantRepo repositories.TenantRepository,
	baseOutputRepo repositories.BaseOutputRepository,
	clientOutputRepo repositories.ClientOutputRepository,
	logger *zap.Logger,
) RouterService {
	return &routerService{
		agencyRepo:       agencyRepo,
		tenantRepo:       tenantRepo,
		baseOutputRepo:   baseOutputRepo,
		clientOutputRepo: clientOutputRepo,
		logger:           logger.Named("router"),
	}
}

func (s *routerService) RouteDocument(ctx context.Context, doc *models.RegulatoryDocument) (*RouteResult, error) {
	subs, err := s.agencyRepo.ListSubscriptions(ctx, doc.AgencyID, doc.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	result := &RouteResult{DocumentID: doc.ID}
	for _, sub := range subs {
		if !sub.EnabledFor(doc.Source) {
			continue
		}
		result.TenantsMatched++

		created, placeholders, err := s.routeToTenant(ctx, doc, sub.TenantID)
		if err != nil {
			result.Errors++
			s.logger.Error("Failed to route document to tenant",
				zap.String("document_id", doc.ID.String()),
				zap.String("tenant_id", sub.TenantID.String()),
				zap.Error(err))
			continue
		}
		if created {
			result.OutputsCreated++
		} else {
			result.OutputsExisting++
		}
		result.ClientPlaceholders += placeholders
	}

	s.logger.Info("Routed document",
		zap.String("document_id", doc.ID.String()),
		zap.String("external_id", doc.ExternalID),
		zap.Int("tenants", result.TenantsMatched),
		zap.Int("created", result.OutputsCreated),
		zap.Int("errors", result.Errors))

	return result, nil
}

func (s *routerService) routeToTenant(ctx context.Context, doc *models.RegulatoryDocument, tenantID uuid.UUID) (bool, int64, error) {
	tenant, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return false, 0, fmt.Errorf("failed to load tenant: %w", err)
	}
	if tenant == nil {
		return false, 0, fmt.Errorf("tenant %s not found", tenantID)
	}

	output, created, err := s.baseOutputRepo.FindOrCreate(ctx, doc.ID, tenant.ID, tenant.OutputType, tenant.InitialOutputStatus())
	if err != nil {
		return false, 0, fmt.Errorf("failed to create base output: %w", err)
	}

	if !tenant.HasClientRoster {
		return created, 0, nil
	}

	placeholders, err := s.clientOutputRepo.CreatePlaceholders(ctx, output.ID, tenant.ID)
	if err != nil {
		return created, 0, fmt.Errorf("failed to create client placeholders: %w", err)
	}
	return created, placeholders, nil
}
