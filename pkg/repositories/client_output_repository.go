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

// ClientOutputRepository provides data access for per-client customizations.
type ClientOutputRepository interface {
	// CreatePlaceholders inserts an unselected pending row for every active
	// client of tenantID. Existing rows are left alone. Returns rows created.
	CreatePlaceholders(ctx context.Context, baseOutputID, tenantID uuid.UUID) (int64, error)
	FindOrCreate(ctx context.Context, baseOutputID, clientID uuid.UUID) (*models.ClientOutput, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.ClientOutput, error)
	ListByBaseOutput(ctx context.Context, baseOutputID uuid.UUID) ([]*models.ClientOutput, error)

	// Select flags the row for generation by selectedBy.
	Select(ctx context.Context, id uuid.UUID, selectedBy string) error
	// BeginProcessing moves a selected pending/awaiting_approval row to processing.
	BeginProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	MarkComplete(ctx context.Context, id uuid.UUID, completion *models.OutputCompletion) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
	ResetToPending(ctx context.Context, id uuid.UUID) (bool, error)
}

type clientOutputRepository struct{}

// NewClientOutputRepository creates a new ClientOutputRepository.
func NewClientOutputRepository() ClientOutputRepository {
	return &clientOutputRepository{}
}

var _ ClientOutputRepository = (*clientOutputRepository)(nil)

const clientOutputColumns = `
	id, document_output_id, client_id, status, selected_for_generation, selected_by, selected_at,
	output_path, source_text, model_used, tokens_input, tokens_output,
	processing_started_at, processing_completed_at, error_message, created_at, updated_at`

func (r *clientOutputRepository) CreatePlaceholders(ctx context.Context, baseOutputID, tenantID uuid.UUID) (int64, error) {
	c, err := conn(ctx)
	if err != nil {
		return 0, err
	}
	tag, err := c.Exec(ctx, `
		INSERT INTO client_outputs (id, document_output_id, client_id, status, selected_for_generation, created_at, updated_at)
		SELECT gen_random_uuid(), $1, cl.id, 'pending', FALSE, now(), now()
		FROM clients cl
		WHERE cl.tenant_id = $2 AND cl.is_active
		ON CONFLICT (document_output_id, client_id) DO NOTHING`, baseOutputID, tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to create client output placeholders: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *clientOutputRepository) FindOrCreate(ctx context.Context, baseOutputID, clientID uuid.UUID) (*models.ClientOutput, error) {
	c, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	out, err := scanClientOutput(c.QueryRow(ctx, `
		INSERT INTO client_outputs (id, document_output_id, client_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, 'pending', $4, $4)
		ON CONFLICT (document_output_id, client_id) DO NOTHING
		RETURNING`+clientOutputColumns, uuid.New(), baseOutputID, clientID, now))
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to create client output: %w", err)
	}

	out, err = scanClientOutput(c.QueryRow(ctx, `SELECT`+clientOutputColumns+`
		FROM client_outputs WHERE document_output_id = $1 AND client_id = $2`, baseOutputID, clientID))
	if err != nil {
		return nil, fmt.Errorf("failed to get client output: %w", err)
	}
	return out, nil
}

func (r *clientOutputRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ClientOutput, error) {
	c, err := conn(ctx)
	if err != nil {
		return nil, err
	}
	out, err := scanClientOutput(c.QueryRow(ctx, `SELECT`+clientOutputColumns+` FROM client_outputs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client output: %w", err)
	}
	return out, nil
}

func (r *clientOutputRepository) ListByBaseOutput(ctx context.Context, baseOutputID uuid.UUID) ([]*models.ClientOutput, error) {
	c, err := conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := c.Query(ctx, `SELECT`+clientOutputColumns+`
		FROM client_outputs WHERE document_output_id = $1 ORDER BY created_at, id`, baseOutputID)
	if err != nil {
		return nil, fmt.Errorf("failed to list client outputs: %w", err)
	}
	defer rows.Close()

	var outputs []*models.ClientOutput
	for rows.Next() {
		out, err := scanClientOutput(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client output: %w", err)
		}
		outputs = append(outputs, out)
	}
	return outputs, rows.Err()
}

func (r *clientOutputRepository) Select(ctx context.Context, id uuid.UUID, selectedBy string) error {
	c, err := conn(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	_, err = c.Exec(ctx, `
		UPDATE client_outputs
		SET selected_for_generation = TRUE, selected_by = $2, selected_at = $3, updated_at = $3
		WHERE id = $1`, id, nullIfEmpty(selectedBy), now)
	if err != nil {
		return fmt.Errorf("failed to select client output: %w", err)
	}
	return nil
}

func (r *clientOutputRepository) BeginProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	c, err := conn(ctx)
	if err != nil {
		return false, err
	}
	now := time.Now()
	tag, err := c.Exec(ctx, `
		UPDATE client_outputs
		SET status = 'processing', processing_started_at = $2, processing_completed_at = NULL,
		    error_message = NULL, updated_at = $2
		WHERE id = $1 AND selected_for_generation AND status IN ('pending', 'awaiting_approval')`, id, now)
	if err != nil {
		return false, fmt.Errorf("failed to begin processing client output: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *clientOutputRepository) MarkComplete(ctx context.Context, id uuid.UUID, completion *models.OutputCompletion) error {
	c, err := conn(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	tag, err := c.Exec(ctx, `
		UPDATE client_outputs
		SET status = 'complete', output_path = $2, source_text = $3, model_used = $4,
		    tokens_input = $5, tokens_output = $6, processing_completed_at = $7,
		    error_message = NULL, updated_at = $7
		WHERE id = $1 AND status = 'processing'`,
		id, completion.OutputPath, nullIfEmpty(completion.SourceText), nullIfEmpty(completion.ModelUsed),
		completion.TokensInput, completion.TokensOutput, now)
	if err != nil {
		return fmt.Errorf("failed to mark client output complete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark client output %s complete: %w", id, apperrors.ErrInvalidTransition)
	}
	return nil
}

func (r *clientOutputRepository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	c, err := conn(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	tag, err := c.Exec(ctx, `
		UPDATE client_outputs
		SET status = 'failed', error_message = $2, processing_completed_at = $3, updated_at = $3
		WHERE id = $1 AND status = 'processing'`,
		id, apperrors.TruncateMessage(message), now)
	if err != nil {
		return fmt.Errorf("failed to mark client output failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark client output %s failed: %w", id, apperrors.ErrInvalidTransition)
	}
	return nil
}

func (r *clientOutputRepository) ResetToPending(ctx context.Context, id uuid.UUID) (bool, error) {
	c, err := conn(ctx)
	if err != nil {
		return false, err
	}
	tag, err := c.Exec(ctx, `
		UPDATE client_outputs
		SET status = 'pending', error_message = NULL, output_path = NULL,
		    processing_started_at = NULL, processing_completed_at = NULL, updated_at = $2
		WHERE id = $1 AND status IN ('failed', 'complete')`, id, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to reset client output: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanClientOutput(row pgx.Row) (*models.ClientOutput, error) {
	var o models.ClientOutput
	err := row.Scan(
		&o.ID, &o.BaseOutputID, &o.ClientID, &o.Status, &o.SelectedForGeneration, &o.SelectedBy, &o.SelectedAt,
		&o.OutputPath, &o.SourceText, &o.ModelUsed, &o.TokensInput, &o.TokensOutput,
		&o.ProcessingStartedAt, &o.ProcessingCompletedAt, &o.ErrorMessage, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
