package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/models"
)

// TenantRepository provides read access to tenants plus an upsert for admin tooling.
type TenantRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	Upsert(ctx context.Context, tenant *models.Tenant) error
}

type tenantRepository struct{}

// NewTenantRepository creates a new TenantRepository.
func NewTenantRepository() TenantRepository {
	return &tenantRepository{}
}

var _ TenantRepository = (*tenantRepository)(nil)

func (r *tenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	c, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	var (
		t                      models.Tenant
		brandingJSON, modelCfg []byte
	)
	err = c.QueryRow(ctx, `
		SELECT id, name, output_type, has_client_roster, auto_process,
		       branding, model_config, description_doc, created_at, updated_at
		FROM tenants WHERE id = $1`, id).Scan(
		&t.ID, &t.Name, &t.OutputType, &t.HasClientRoster, &t.AutoProcess,
		&brandingJSON, &modelCfg, &t.DescriptionDoc, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}

	if len(brandingJSON) > 0 {
		if err := json.Unmarshal(brandingJSON, &t.Branding); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tenant branding: %w", err)
		}
	}
	if len(modelCfg) > 0 {
		if err := json.Unmarshal(modelCfg, &t.ModelConfig); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tenant model config: %w", err)
		}
	}
	return &t, nil
}

func (r *tenantRepository) Upsert(ctx context.Context, t *models.Tenant) error {
	c, err := conn(ctx)
	if err != nil {
		return err
	}

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	brandingJSON, err := json.Marshal(t.Branding)
	if err != nil {
		return fmt.Errorf("failed to marshal tenant branding: %w", err)
	}
	modelCfg, err := json.Marshal(t.ModelConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal tenant model config: %w", err)
	}

	now := time.Now()
	_, err = c.Exec(ctx, `
		INSERT INTO tenants (id, name, output_type, has_client_roster, auto_process,
		                     branding, model_config, description_doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			output_type = EXCLUDED.output_type,
			has_client_roster = EXCLUDED.has_client_roster,
			auto_process = EXCLUDED.auto_process,
			branding = EXCLUDED.branding,
			model_config = EXCLUDED.model_config,
			description_doc = EXCLUDED.description_doc,
			updated_at = EXCLUDED.updated_at`,
		t.ID, t.Name, t.OutputType, t.HasClientRoster, t.AutoProcess,
		brandingJSON, modelCfg, t.DescriptionDoc, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert tenant: %w", err)
	}
	return nil
}

// ============================================================================
// Clients
// ============================================================================

// ClientRepository provides read access to a tenant's client roster.
type ClientRepository interface {
	ListActiveByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.Client, error)
	// ListActiveByIDs returns the active clients of tenantID among ids, in name order.
	ListActiveByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*models.Client, error)
	Upsert(ctx context.Context, client *models.Client) error
}

type clientRepository struct{}

// NewClientRepository creates a new ClientRepository.
func NewClientRepository() ClientRepository {
	return &clientRepository{}
}

var _ ClientRepository = (*clientRepository)(nil)

const clientSelect = `
	SELECT id, tenant_id, name, industry, context, focus_areas, is_active, created_at
	FROM clients`

func (r *clientRepository) ListActiveByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.Client, error) {
	return r.list(ctx, clientSelect+` WHERE tenant_id = $1 AND is_active ORDER BY name`, tenantID)
}

func (r *clientRepository) ListActiveByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*models.Client, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.list(ctx, clientSelect+` WHERE tenant_id = $1 AND is_active AND id = ANY($2) ORDER BY name`, tenantID, ids)
}

func (r *clientRepository) list(ctx context.Context, query string, args ...any) ([]*models.Client, error) {
	c, err := conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := c.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []*models.Client
	for rows.Next() {
		var cl models.Client
		if err := rows.Scan(&cl.ID, &cl.TenantID, &cl.Name, &cl.Industry, &cl.Context, &cl.FocusAreas, &cl.IsActive, &cl.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, &cl)
	}
	return clients, rows.Err()
}

func (r *clientRepository) Upsert(ctx context.Context, cl *models.Client) error {
	c, err := conn(ctx)
	if err != nil {
		return err
	}
	if cl.ID == uuid.Nil {
		cl.ID = uuid.New()
	}
	if cl.FocusAreas == nil {
		cl.FocusAreas = []string{}
	}
	_, err = c.Exec(ctx, `
		INSERT INTO clients (id, tenant_id, name, industry, context, focus_areas, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			industry = EXCLUDED.industry,
			context = EXCLUDED.context,
			focus_areas = EXCLUDED.focus_areas,
			is_active = EXCLUDED.is_active`,
		cl.ID, cl.TenantID, cl.Name, cl.Industry, cl.Context, cl.FocusAreas, cl.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert client: %w", err)
	}
	return nil
}
