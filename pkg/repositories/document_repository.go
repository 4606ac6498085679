package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/models"
)

// DocumentFilter narrows document listings. Zero values are ignored.
type DocumentFilter struct {
	Source   models.DocumentSource
	AgencyID string
	Since    *time.Time
	Limit    int
	Offset   int
}

// TenantDocumentFilter pages one tenant's document listing.
type TenantDocumentFilter struct {
	TenantID uuid.UUID
	// Status keeps only documents whose tenant output has this status.
	Status models.OutputStatus
	Limit  int
	Offset int
}

// DocumentRepository provides data access for regulatory documents.
type DocumentRepository interface {
	// InsertIfAbsent inserts doc unless (source, external_id) already exists.
	// Returns true when a new row was created; doc.ID is set either way.
	InsertIfAbsent(ctx context.Context, doc *models.RegulatoryDocument) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.RegulatoryDocument, error)
	GetBySourceAndExternalID(ctx context.Context, source models.DocumentSource, externalID string) (*models.RegulatoryDocument, error)
	// BackfillMissing fills empty columns from doc without touching populated ones.
	BackfillMissing(ctx context.Context, doc *models.RegulatoryDocument) error
	List(ctx context.Context, filter DocumentFilter) ([]*models.RegulatoryDocument, error)
	Count(ctx context.Context, since *time.Time) (int, error)
	// ListForTenant returns documents of the tenant's subscribed agencies,
	// newest publication first, and the total matching the filter.
	ListForTenant(ctx context.Context, filter TenantDocumentFilter) ([]*models.TenantDocument, int, error)
}

type documentRepository struct{}

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository() DocumentRepository {
	return &documentRepository{}
}

var _ DocumentRepository = (*documentRepository)(nil)

var documentColumns = []string{
	"id", "source", "external_id", "agency_id", "title", "abstract",
	"publication_date", "pdf_url", "html_url", "citation", "document_type",
	"is_significant", "detected_at", "created_at",
}

const documentSelect = `
	SELECT id, source, external_id, agency_id, title, abstract,
	       publication_date, pdf_url, html_url, citation, document_type,
	       is_significant, detected_at, created_at
	FROM regulatory_documents`

func (r *documentRepository) InsertIfAbsent(ctx context.Context, doc *models.RegulatoryDocument) (bool, error) {
	c, err := conn(ctx)
	if err != nil {
		return false, err
	}

	now := time.Now()
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.DetectedAt.IsZero() {
		doc.DetectedAt = now
	}
	doc.CreatedAt = now

	tag, err := c.Exec(ctx, `
		INSERT INTO regulatory_documents (
			id, source, external_id, agency_id, title, abstract,
			publication_date, pdf_url, html_url, citation, document_type,
			is_significant, detected_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (source, external_id) DO NOTHING`,
		doc.ID, doc.Source, doc.ExternalID, doc.AgencyID, doc.Title, doc.Abstract,
		doc.PublicationDate, doc.PDFURL, doc.HTMLURL, doc.Citation, doc.DocumentType,
		doc.IsSignificant, doc.DetectedAt, doc.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert regulatory document: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	existing, err := r.GetBySourceAndExternalID(ctx, doc.Source, doc.ExternalID)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, fmt.Errorf("regulatory document %s/%s vanished after conflict", doc.Source, doc.ExternalID)
	}
	*doc = *existing
	return false, nil
}

func (r *documentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.RegulatoryDocument, error) {
	c, err := conn(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := scanDocument(c.QueryRow(ctx, documentSelect+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get regulatory document: %w", err)
	}
	return doc, nil
}

func (r *documentRepository) GetBySourceAndExternalID(ctx context.Context, source models.DocumentSource, externalID string) (*models.RegulatoryDocument, error) {
	c, err := conn(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := scanDocument(c.QueryRow(ctx, documentSelect+` WHERE source = $1 AND external_id = $2`, source, externalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get regulatory document: %w", err)
	}
	return doc, nil
}

func (r *documentRepository) BackfillMissing(ctx context.Context, doc *models.RegulatoryDocument) error {
	c, err := conn(ctx)
	if err != nil {
		return err
	}
	_, err = c.Exec(ctx, `
		UPDATE regulatory_documents SET
			abstract = CASE WHEN abstract = '' THEN $2 ELSE abstract END,
			publication_date = COALESCE(publication_date, $3),
			pdf_url = CASE WHEN pdf_url = '' THEN $4 ELSE pdf_url END,
			html_url = CASE WHEN html_url = '' THEN $5 ELSE html_url END,
			citation = CASE WHEN citation = '' THEN $6 ELSE citation END,
			document_type = CASE WHEN document_type = '' THEN $7 ELSE document_type END
		WHERE id = $1`,
		doc.ID, doc.Abstract, doc.PublicationDate, doc.PDFURL, doc.HTMLURL, doc.Citation, doc.DocumentType,
	)
	if err != nil {
		return fmt.Errorf("failed to backfill regulatory document: %w", err)
	}
	return nil
}

func (r *documentRepository) List(ctx context.Context, filter DocumentFilter) ([]*models.RegulatoryDocument, error) {
	c, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	q := psql.Select(documentColumns...).From("regulatory_documents").OrderBy("detected_at DESC")
	if filter.Source != "" {
		q = q.Where(sq.Eq{"source": filter.Source})
	}
	if filter.AgencyID != "" {
		q = q.Where(sq.Eq{"agency_id": filter.AgencyID})
	}
	if filter.Since != nil {
		q = q.Where(sq.GtOrEq{"detected_at": *filter.Since})
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	q = q.Limit(uint64(limit))
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build document query: %w", err)
	}

	rows, err := c.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list regulatory documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.RegulatoryDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan regulatory document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (r *documentRepository) Count(ctx context.Context, since *time.Time) (int, error) {
	c, err := conn(ctx)
	if err != nil {
		return 0, err
	}

	q := psql.Select("COUNT(*)").From("regulatory_documents")
	if since != nil {
		q = q.Where(sq.GtOrEq{"detected_at": *since})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var n int
	if err := c.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count regulatory documents: %w", err)
	}
	return n, nil
}

func (r *documentRepository) ListForTenant(ctx context.Context, filter TenantDocumentFilter) ([]*models.TenantDocument, int, error) {
	c, err := conn(ctx)
	if err != nil {
		return nil, 0, err
	}

	base := psql.Select().
		From("regulatory_documents d").
		Join("tenant_agencies ta ON ta.agency_id = d.agency_id AND ta.tenant_id = ?", filter.TenantID).
		LeftJoin("document_outputs o ON o.regulatory_document_id = d.id AND o.tenant_id = ?", filter.TenantID)
	if filter.Status != "" {
		base = base.Where(sq.Eq{"o.status": filter.Status})
	}

	countQuery, countArgs, err := base.Columns("COUNT(*)").ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build tenant document count: %w", err)
	}
	var total int
	if err := c.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tenant documents: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	q := base.Columns(tenantDocumentColumns...).
		OrderBy("d.publication_date DESC NULLS LAST", "d.detected_at DESC").
		Limit(uint64(limit))
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build tenant document query: %w", err)
	}

	rows, err := c.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tenant documents: %w", err)
	}
	defer rows.Close()

	docs := []*models.TenantDocument{}
	for rows.Next() {
		td, err := scanTenantDocument(rows, filter.TenantID)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan tenant document: %w", err)
		}
		docs = append(docs, td)
	}
	return docs, total, rows.Err()
}

// tenantDocumentColumns is every document column followed by the tenant's
// output columns, which are NULL when nothing was routed.
var tenantDocumentColumns = append(prefixed("d", documentColumns),
	"o.id", "o.output_type", "o.status", "o.output_path", "o.model_used",
	"o.tokens_input", "o.tokens_output", "o.processing_started_at",
	"o.processing_completed_at", "o.error_message", "o.created_at", "o.updated_at",
)

func prefixed(alias string, columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = alias + "." + c
	}
	return out
}

func scanTenantDocument(row pgx.Row, tenantID uuid.UUID) (*models.TenantDocument, error) {
	var (
		d                    models.RegulatoryDocument
		outputID             *uuid.UUID
		outputType, status   *string
		tokensIn, tokensOut  *int
		createdAt, updatedAt *time.Time
		o                    models.BaseOutput
	)
	err := row.Scan(
		&d.ID, &d.Source, &d.ExternalID, &d.AgencyID, &d.Title, &d.Abstract,
		&d.PublicationDate, &d.PDFURL, &d.HTMLURL, &d.Citation, &d.DocumentType,
		&d.IsSignificant, &d.DetectedAt, &d.CreatedAt,
		&outputID, &outputType, &status, &o.OutputPath, &o.ModelUsed,
		&tokensIn, &tokensOut, &o.ProcessingStartedAt,
		&o.ProcessingCompletedAt, &o.ErrorMessage, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	td := &models.TenantDocument{Document: &d}
	if outputID == nil {
		return td, nil
	}
	o.ID = *outputID
	o.RegulatoryDocumentID = d.ID
	o.TenantID = tenantID
	o.OutputType = models.OutputType(deref(outputType))
	o.Status = models.OutputStatus(deref(status))
	if tokensIn != nil {
		o.TokensInput = *tokensIn
	}
	if tokensOut != nil {
		o.TokensOutput = *tokensOut
	}
	if createdAt != nil {
		o.CreatedAt = *createdAt
	}
	if updatedAt != nil {
		o.UpdatedAt = *updatedAt
	}
	td.Output = &o
	return td, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func scanDocument(row pgx.Row) (*models.RegulatoryDocument, error) {
	var d models.RegulatoryDocument
	err := row.Scan(
		&d.ID, &d.Source, &d.ExternalID, &d.AgencyID, &d.Title, &d.Abstract,
		&d.PublicationDate, &d.PDFURL, &d.HTMLURL, &d.Citation, &d.DocumentType,
		&d.IsSignificant, &d.DetectedAt, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
