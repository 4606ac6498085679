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

// ConversionJobRepository provides data access for ad-hoc PDF conversion jobs.
type ConversionJobRepository interface {
	Create(ctx context.Context, job *models.ConversionJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ConversionJob, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.ConversionJob, error)
	// ClaimNextPending atomically moves the oldest pending job to processing.
	// Returns nil when the queue is empty.
	ClaimNextPending(ctx context.Context) (*models.ConversionJob, error)
	SetExtractedText(ctx context.Context, id uuid.UUID, text string) error
	MarkComplete(ctx context.Context, id uuid.UUID, outputFilename, outputPath string, sizeBytes int64) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
}

type conversionJobRepository struct{}

// NewConversionJobRepository creates a new ConversionJobRepository.
func NewConversionJobRepository() ConversionJobRepository {
	return &conversionJobRepository{}
}

var _ ConversionJobRepository = (*conversionJobRepository)(nil)

const conversionJobColumns = `
	id, user_id, tenant_id, status, input_filename, input_path, input_size_bytes,
	extracted_text, output_filename, output_path, output_size_bytes, error_message,
	processing_started_at, processing_completed_at, created_at, updated_at`

func (r *conversionJobRepository) Create(ctx context.Context, job *models.ConversionJob) error {
	c, err := conn(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	job.Status = models.OutputStatusPending
	job.CreatedAt = now
	job.UpdatedAt = now

	_, err = c.Exec(ctx, `
		INSERT INTO conversion_jobs (id, user_id, tenant_id, status, input_filename, input_path,
		                             input_size_bytes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		job.ID, job.UserID, job.TenantID, job.Status, job.InputFilename, job.InputPath,
		job.InputSizeBytes, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create conversion job: %w", err)
	}
	return nil
}

func (r *conversionJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ConversionJob, error) {
	c, err := conn(ctx)
	if err != nil {
		return nil, err
	}
	job, err := scanConversionJob(c.QueryRow(ctx, `SELECT`+conversionJobColumns+` FROM conversion_jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversion job: %w", err)
	}
	return job, nil
}

func (r *conversionJobRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.ConversionJob, error) {
	c, err := conn(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := c.Query(ctx, `SELECT`+conversionJobColumns+`
		FROM conversion_jobs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversion jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.ConversionJob
	for rows.Next() {
		job, err := scanConversionJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversion job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *conversionJobRepository) ClaimNextPending(ctx context.Context) (*models.ConversionJob, error) {
	c, err := conn(ctx)
	if err != nil {
		return nil, err
	}
	job, err := scanConversionJob(c.QueryRow(ctx, `
		UPDATE conversion_jobs
		SET status = 'processing', processing_started_at = $1, updated_at = $1
		WHERE id = (
			SELECT id FROM conversion_jobs
			WHERE status = 'pending'
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING`+conversionJobColumns, time.Now()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim conversion job: %w", err)
	}
	return job, nil
}

func (r *conversionJobRepository) SetExtractedText(ctx context.Context, id uuid.UUID, text string) error {
	c, err := conn(ctx)
	if err != nil {
		return err
	}
	_, err = c.Exec(ctx, `UPDATE conversion_jobs SET extracted_text = $2, updated_at = $3 WHERE id = $1`,
		id, text, time.Now())
	if err != nil {
		return fmt.Errorf("failed to store extracted text: %w", err)
	}
	return nil
}

func (r *conversionJobRepository) MarkComplete(ctx context.Context, id uuid.UUID, outputFilename, outputPath string, sizeBytes int64) error {
	c, err := conn(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	tag, err := c.Exec(ctx, `
		UPDATE conversion_jobs
		SET status = 'complete', output_filename = $2, output_path = $3, output_size_bytes = $4,
		    processing_completed_at = $5, updated_at = $5
		WHERE id = $1 AND status = 'processing'`, id, outputFilename, outputPath, sizeBytes, now)
	if err != nil {
		return fmt.Errorf("failed to mark conversion job complete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark conversion job %s complete: %w", id, apperrors.ErrInvalidTransition)
	}
	return nil
}

func (r *conversionJobRepository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	c, err := conn(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	_, err = c.Exec(ctx, `
		UPDATE conversion_jobs
		SET status = 'failed', error_message = $2, processing_completed_at = $3, updated_at = $3
		WHERE id = $1`, id, apperrors.TruncateMessage(message), now)
	if err != nil {
		return fmt.Errorf("failed to mark conversion job failed: %w", err)
	}
	return nil
}

func scanConversionJob(row pgx.Row) (*models.ConversionJob, error) {
	var j models.ConversionJob
	err := row.Scan(
		&j.ID, &j.UserID, &j.TenantID, &j.Status, &j.InputFilename, &j.InputPath, &j.InputSizeBytes,
		&j.ExtractedText, &j.OutputFilename, &j.OutputPath, &j.OutputSizeBytes, &j.ErrorMessage,
		&j.ProcessingStartedAt, &j.ProcessingCompletedAt, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}
