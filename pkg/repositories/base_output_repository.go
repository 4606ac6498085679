package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/models"
)

// BaseOutputRepository provides data access for tenant-level artifacts.
// Status updates are conditional UPDATEs so they double as the processing soft lock.
type BaseOutputRepository interface {
	// FindOrCreate returns the row for (documentID, tenantID), creating it with
	// initialStatus if absent. created reports whether this call inserted it.
	FindOrCreate(ctx context.Context, documentID, tenantID uuid.UUID, outputType models.OutputType, initialStatus models.OutputStatus) (output *models.BaseOutput, created bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.BaseOutput, error)
	GetByDocumentAndTenant(ctx context.Context, documentID, tenantID uuid.UUID) (*models.BaseOutput, error)
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*models.BaseOutput, error)
	// ListPendingAutoProcess returns the oldest pending outputs whose tenant auto-processes.
	ListPendingAutoProcess(ctx context.Context, limit int) ([]*models.BaseOutput, error)

	// BeginProcessing moves pending/awaiting_approval to processing.
	// Returns false when the row was not in a startable state.
	BeginProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	MarkComplete(ctx context.Context, id uuid.UUID, completion *models.OutputCompletion) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
	// ResetToPending moves failed (or complete) back to pending and clears the error.
	ResetToPending(ctx context.Context, id uuid.UUID) (bool, error)
	// ResetForDocument resets every failed or complete output of a document.
	ResetForDocument(ctx context.Context, documentID uuid.UUID) (int64, error)
}

type baseOutputRepository struct{}

// NewBaseOutputRepository creates a new BaseOutputRepository.
func NewBaseOutputRepository() BaseOutputRepository {
	return &baseOutputRepository{}
}

var _ BaseOutputRepository = (*baseOutputRepository)(nil)

const baseOutputColumns = `
	id, regulatory_document_id, tenant_id, output_type, status, output_path,
	source_text, model_used, tokens_input, tokens_output,
	processing_started_at, processing_completed_at, error_message, created_at, updated_at`

// ============================================================================
// Create / Read
// ============================================================================

func (r *baseOutputRepository) FindOrCreate(ctx context.Context, documentID, tenantID uuid.UUID, outputType models.OutputType, initialStatus models.OutputStatus) (*models.BaseOutput, bool, error) {
	c, err := conn(ctx)
	if err != nil {
		return nil, false, err
	}

	now := time.Now()
	out, err := scanBaseOutput(c.QueryRow(ctx, `
		INSERT INTO document_outputs (id, regulatory_document_id, tenant_id, output_type, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (regulatory_document_id, tenant_id) DO NOTHING
		RETURNING`+baseOutputColumns,
		uuid.New(), documentID, tenantID, outputType, initialStatus, now,
	))
	if err == nil {
		return out, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to create base output: %w", err)
	}

	existing, err := r.GetByDocumentAndTenant(ctx, documentID, tenantID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("base output for document %s tenant %s vanished after conflict", documentID, tenantID)
	}
	return existing, false, nil
}

func (r *baseOutputRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.BaseOutput, error) {
	c, err := conn(ctx)
	if err != nil {
		return nil, err
	}
	out, err := scanBaseOutput(c.QueryRow(ctx, `SELECT`+baseOutputColumns+` FROM document_outputs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get base output: %w", err)
	}
	return out, nil
}

func (r *baseOutputRepository) GetByDocumentAndTenant(ctx context.Context, documentID, tenantID uuid.UUID) (*models.BaseOutput, error) {
	c, err := conn(ctx)
	if err != nil {
		return nil, err
	}
	out, err := scanBaseOutput(c.QueryRow(ctx, `SELECT`+baseOutputColumns+`
		FROM document_outputs WHERE regulatory_document_id = $1 AND tenant_id = $2`, documentID, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get base output: %w", err)
	}
	return out, nil
}

func (r *baseOutputRepository) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*models.BaseOutput, error) {
	return r.list(ctx, `SELECT`+baseOutputColumns+`
		FROM document_outputs WHERE regulatory_document_id = $1 ORDER BY created_at`, documentID)
}

func (r *baseOutputRepository) ListPendingAutoProcess(ctx context.Context, limit int) ([]*models.BaseOutput, error) {
	if limit <= 0 {
		limit = 1
	}
	return r.list(ctx, `SELECT`+prefixColumns("o", baseOutputColumns)+`
		FROM document_outputs o
		JOIN tenants t ON t.id = o.tenant_id
		WHERE o.status = 'pending' AND t.auto_process
		ORDER BY o.created_at
		LIMIT $1`, limit)
}

func (r *baseOutputRepository) list(ctx context.Context, query string, args ...any) ([]*models.BaseOutput, error) {
	c, err := conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := c.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list base outputs: %w", err)
	}
	defer rows.Close()

	var outputs []*models.BaseOutput
	for rows.Next() {
		out, err := scanBaseOutput(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan base output: %w", err)
		}
		outputs = append(outputs, out)
	}
	return outputs, rows.Err()
}

// ============================================================================
// State Updates
// ============================================================================

func (r *baseOutputRepository) BeginProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	c, err := conn(ctx)
	if err != nil {
		return false, err
	}
	now := time.Now()
	tag, err := c.Exec(ctx, `
		UPDATE document_outputs
		SET status = 'processing', processing_started_at = $2, processing_completed_at = NULL,
		    error_message = NULL, updated_at = $2
		WHERE id = $1 AND status IN ('pending', 'awaiting_approval')`, id, now)
	if err != nil {
		return false, fmt.Errorf("failed to begin processing base output: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *baseOutputRepository) MarkComplete(ctx context.Context, id uuid.UUID, completion *models.OutputCompletion) error {
	c, err := conn(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	tag, err := c.Exec(ctx, `
		UPDATE document_outputs
		SET status = 'complete', output_path = $2, source_text = $3, model_used = $4,
		    tokens_input = $5, tokens_output = $6, processing_completed_at = $7,
		    error_message = NULL, updated_at = $7
		WHERE id = $1 AND status = 'processing'`,
		id, completion.OutputPath, nullIfEmpty(completion.SourceText), nullIfEmpty(completion.ModelUsed),
		completion.TokensInput, completion.TokensOutput, now)
	if err != nil {
		return fmt.Errorf("failed to mark base output complete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark base output %s complete: %w", id, apperrors.ErrInvalidTransition)
	}
	return nil
}

func (r *baseOutputRepository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	c, err := conn(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	tag, err := c.Exec(ctx, `
		UPDATE document_outputs
		SET status = 'failed', error_message = $2, processing_completed_at = $3, updated_at = $3
		WHERE id = $1 AND status = 'processing'`,
		id, apperrors.TruncateMessage(message), now)
	if err != nil {
		return fmt.Errorf("failed to mark base output failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark base output %s failed: %w", id, apperrors.ErrInvalidTransition)
	}
	return nil
}

func (r *baseOutputRepository) ResetToPending(ctx context.Context, id uuid.UUID) (bool, error) {
	c, err := conn(ctx)
	if err != nil {
		return false, err
	}
	tag, err := c.Exec(ctx, `
		UPDATE document_outputs
		SET status = 'pending', error_message = NULL, output_path = NULL,
		    processing_started_at = NULL, processing_completed_at = NULL, updated_at = $2
		WHERE id = $1 AND status IN ('failed', 'complete')`, id, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to reset base output: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *baseOutputRepository) ResetForDocument(ctx context.Context, documentID uuid.UUID) (int64, error) {
	c, err := conn(ctx)
	if err != nil {
		return 0, err
	}
	tag, err := c.Exec(ctx, `
		UPDATE document_outputs
		SET status = 'pending', error_message = NULL, output_path = NULL,
		    processing_started_at = NULL, processing_completed_at = NULL, updated_at = $2
		WHERE regulatory_document_id = $1 AND status IN ('failed', 'complete')`, documentID, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to reset base outputs for document: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanBaseOutput(row pgx.Row) (*models.BaseOutput, error) {
	var o models.BaseOutput
	err := row.Scan(
		&o.ID, &o.RegulatoryDocumentID, &o.TenantID, &o.OutputType, &o.Status, &o.OutputPath,
		&o.SourceText, &o.ModelUsed, &o.TokensInput, &o.TokensOutput,
		&o.ProcessingStartedAt, &o.ProcessingCompletedAt, &o.ErrorMessage, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
