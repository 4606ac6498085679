package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/extract"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/logging"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/models"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/repositories"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/storage"
)

// Upload validation errors.
var (
	ErrEmptyUpload = errors.New("uploaded file is empty")
	ErrNotPDF      = errors.New("uploaded file is not a PDF")
)

var pdfMagic = []byte("%PDF-")

// SubmitJobRequest is one uploaded PDF.
type SubmitJobRequest struct {
	UserID   string
	TenantID *uuid.UUID
	Filename string
	Data     []byte
}

// ConversionJobService converts uploaded PDFs into slide decks.
type ConversionJobService interface {
	// Submit stores the upload and queues a pending job.
	Submit(ctx context.Context, req SubmitJobRequest) (*models.ConversionJob, error)

	// ProcessNext claims and runs the oldest pending job.
	// Returns nil, nil when the queue is empty.
	ProcessNext(ctx context.Context) (*models.ConversionJob, error)

	// Get returns a job owned by userID.
	Get(ctx context.Context, userID string, jobID uuid.UUID) (*models.ConversionJob, error)

	// ListForUser returns the user's most recent jobs.
	ListForUser(ctx context.Context, userID string, limit int) ([]*models.ConversionJob, error)
}

type conversionJobService struct {
	jobRepo    repositories.ConversionJobRepository
	tenantRepo repositories.TenantRepository
	generator  ContentGenerator
	blobs      storage.BlobStore
	logger     *zap.Logger
	now        func() time.Time
}

var _ ConversionJobService = (*conversionJobService)(nil)

// NewConversionJobService creates a ConversionJobService.
func NewConversionJobService(
	jobRepo repositories.ConversionJobRepository,
	tenantRepo repositories.TenantRepository,
	generator ContentGenerator,
	blobs storage.BlobStore,
	logger *zap.Logger,
) ConversionJobService {
	return &conversionJobService{
		jobRepo:    jobRepo,
		tenantRepo: tenantRepo,
		generator:  generator,
		blobs:      blobs,
		logger:     logger.Named("conversion-jobs"),
		now:        time.Now,
	}
}

func (s *conversionJobService) Submit(ctx context.Context, req SubmitJobRequest) (*models.ConversionJob, error) {
	if len(req.Data) == 0 {
		return nil, ErrEmptyUpload
	}
	if !bytes.HasPrefix(req.Data, pdfMagic) {
		return nil, ErrNotPDF
	}

	inputPath := storage.UploadPath(req.UserID, req.Filename, s.now())
	if err := s.blobs.Put(ctx, inputPath, req.Data); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	job := &models.ConversionJob{
		UserID:         req.UserID,
		TenantID:       req.TenantID,
		InputFilename:  req.Filename,
		InputPath:      inputPath,
		InputSizeBytes: int64(len(req.Data)),
	}
	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, err
	}

	s.logger.Info("Queued conversion job",
		zap.String("job_id", job.ID.String()),
		zap.String("user_id", req.UserID),
		zap.Int64("size_bytes", job.InputSizeBytes))
	return job, nil
}

func (s *conversionJobService) ProcessNext(ctx context.Context) (*models.ConversionJob, error) {
	job, err := s.jobRepo.ClaimNextPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to claim conversion job: %w", err)
	}
	if job == nil {
		return nil, nil
	}

	log := s.logger.With(zap.String("job_id", job.ID.String()))
	bookCtx := context.WithoutCancel(ctx)

	if err := s.run(ctx, job); err != nil {
		log.Error("Conversion job failed", logging.ErrorField(err))
		if mErr := s.jobRepo.MarkFailed(bookCtx, job.ID, logging.FailureMessage(err)); mErr != nil {
			return nil, fmt.Errorf("failed to mark job failed: %w", mErr)
		}
	} else {
		log.Info("Conversion job complete")
	}

	return s.jobRepo.GetByID(bookCtx, job.ID)
}

func (s *conversionJobService) run(ctx context.Context, job *models.ConversionJob) error {
	data, err := s.blobs.Get(ctx, job.InputPath)
	if err != nil {
		return apperrors.StorageError("failed to read upload", err)
	}
	text, err := extract.ExtractClean(data)
	if err != nil {
		return err
	}
	if err := s.jobRepo.SetExtractedText(ctx, job.ID, text); err != nil {
		return err
	}

	tenant := &models.Tenant{}
	if job.TenantID != nil {
		t, err := s.tenantRepo.GetByID(ctx, *job.TenantID)
		if err != nil {
			return fmt.Errorf("failed to load tenant: %w", err)
		}
		if t != nil {
			tenant = t
		}
	}

	gen, err := s.generator.GenerateSlides(ctx, tenant.DescriptionDoc, text, tenant.ModelConfig.BaseModel)
	if err != nil {
		return err
	}

	blobPath, filename := storage.OutputPath(job.UserID, job.InputFilename, s.now())
	logo := loadLogo(ctx, s.blobs, tenant, s.logger)
	path, size, err := renderAndStore(ctx, s.blobs, models.OutputTypeSlideDeck, renderInput(gen, nil, tenant, logo, ""), func(string) string {
		return blobPath
	})
	if err != nil {
		return err
	}

	return s.jobRepo.MarkComplete(context.WithoutCancel(ctx), job.ID, filename, path, size)
}

func (s *conversionJobService) Get(ctx context.Context, userID string, jobID uuid.UUID) (*models.ConversionJob, error) {
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil || job.UserID != userID {
		return nil, fmt.Errorf("job %s: %w", jobID, apperrors.ErrNotFound)
	}
	return job, nil
}

func (s *conversionJobService) ListForUser(ctx context.Context, userID string, limit int) ([]*models.ConversionJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.jobRepo.ListByUser(ctx, userID, limit)
}
