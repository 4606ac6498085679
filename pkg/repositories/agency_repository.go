package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/models"
)

// AgencyRepository provides data access for agencies and tenant subscriptions.
type AgencyRepository interface {
	GetByID(ctx context.Context, id string) (*models.Agency, error)
	GetByRegistrySlug(ctx context.Context, slug string) (*models.Agency, error)
	ListActive(ctx context.Context) ([]*models.Agency, error)
	// ListSubscriptions returns every subscription to agencyID enabled for source.
	ListSubscriptions(ctx context.Context, agencyID string, source models.DocumentSource) ([]*models.TenantAgencySubscription, error)
	// HasNewsroomSubscribers reports whether any tenant follows the agency's newsroom feed.
	HasNewsroomSubscribers(ctx context.Context, agencyID string) (bool, error)

	// Admin tooling
	Upsert(ctx context.Context, agency *models.Agency) error
	UpsertSubscription(ctx context.Context, sub *models.TenantAgencySubscription) error
}

type agencyRepository struct{}

// NewAgencyRepository creates a new AgencyRepository.
func NewAgencyRepository() AgencyRepository {
	return &agencyRepository{}
}

var _ AgencyRepository = (*agencyRepository)(nil)

const agencySelect = `
	SELECT id, name, registry_slug, document_types, COALESCE(newsroom_feed_url, ''), is_active, created_at
	FROM agencies`

func (r *agencyRepository) GetByID(ctx context.Context, id string) (*models.Agency, error) {
	return r.getOne(ctx, agencySelect+` WHERE id = $1`, id)
}

func (r *agencyRepository) GetByRegistrySlug(ctx context.Context, slug string) (*models.Agency, error) {
	return r.getOne(ctx, agencySelect+` WHERE registry_slug = $1`, slug)
}

func (r *agencyRepository) getOne(ctx context.Context, query string, arg any) (*models.Agency, error) {
	c, err := conn(ctx)
	if err != nil {
		return nil, err
	}
	a, err := scanAgency(c.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agency: %w", err)
	}
	return a, nil
}

func (r *agencyRepository) ListActive(ctx context.Context) ([]*models.Agency, error) {
	c, err := conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := c.Query(ctx, agencySelect+` WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list agencies: %w", err)
	}
	defer rows.Close()

	var agencies []*models.Agency
	for rows.Next() {
		a, err := scanAgency(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agency: %w", err)
		}
		agencies = append(agencies, a)
	}
	return agencies, rows.Err()
}

func (r *agencyRepository) ListSubscriptions(ctx context.Context, agencyID string, source models.DocumentSource) ([]*models.TenantAgencySubscription, error) {
	c, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	var flag string
	switch source {
	case models.DocumentSourceFederalRegister:
		flag = "registry_feed_enabled"
	case models.DocumentSourceAgencyNewsroom:
		flag = "newsroom_feed_enabled"
	default:
		return nil, fmt.Errorf("unknown document source %q", source)
	}

	rows, err := c.Query(ctx, `
		SELECT tenant_id, agency_id, registry_feed_enabled, newsroom_feed_enabled
		FROM tenant_agencies
		WHERE agency_id = $1 AND `+flag+`
		ORDER BY created_at, tenant_id`, agencyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*models.TenantAgencySubscription
	for rows.Next() {
		var s models.TenantAgencySubscription
		if err := rows.Scan(&s.TenantID, &s.AgencyID, &s.RegistryFeedEnabled, &s.NewsroomFeedEnabled); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, &s)
	}
	return subs, rows.Err()
}

func (r *agencyRepository) HasNewsroomSubscribers(ctx context.Context, agencyID string) (bool, error) {
	c, err := conn(ctx)
	if err != nil {
		return false, err
	}
	var exists bool
	err = c.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM tenant_agencies WHERE agency_id = $1 AND newsroom_feed_enabled)`,
		agencyID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check newsroom subscribers: %w", err)
	}
	return exists, nil
}

func (r *agencyRepository) Upsert(ctx context.Context, a *models.Agency) error {
	c, err := conn(ctx)
	if err != nil {
		return err
	}
	_, err = c.Exec(ctx, `
		INSERT INTO agencies (id, name, registry_slug, document_types, newsroom_feed_url, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			registry_slug = EXCLUDED.registry_slug,
			document_types = EXCLUDED.document_types,
			newsroom_feed_url = EXCLUDED.newsroom_feed_url,
			is_active = EXCLUDED.is_active`,
		a.ID, a.Name, a.RegistrySlug, a.DocumentTypes, nullIfEmpty(a.NewsroomFeedURL), a.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert agency: %w", err)
	}
	return nil
}

func (r *agencyRepository) UpsertSubscription(ctx context.Context, s *models.TenantAgencySubscription) error {
	c, err := conn(ctx)
	if err != nil {
		return err
	}
	_, err = c.Exec(ctx, `
		INSERT INTO tenant_agencies (tenant_id, agency_id, registry_feed_enabled, newsroom_feed_enabled)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, agency_id) DO UPDATE SET
			registry_feed_enabled = EXCLUDED.registry_feed_enabled,
			newsroom_feed_enabled = EXCLUDED.newsroom_feed_enabled`,
		s.TenantID, s.AgencyID, s.RegistryFeedEnabled, s.NewsroomFeedEnabled,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

func scanAgency(row pgx.Row) (*models.Agency, error) {
	var a models.Agency
	if err := row.Scan(&a.ID, &a.Name, &a.RegistrySlug, &a.DocumentTypes, &a.NewsroomFeedURL, &a.IsActive, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}
