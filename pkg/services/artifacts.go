package services

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/models"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/render"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/repositories"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/storage"
)

// DocumentStatus is a document with one tenant's outputs for it.
type DocumentStatus struct {
	Document      *models.RegulatoryDocument `json:"document"`
	Output        *models.BaseOutput         `json:"output,omitempty"`
	ClientOutputs []*models.ClientOutput     `json:"client_outputs"`
}

// ListDocumentsRequest pages a tenant's document listing.
type ListDocumentsRequest struct {
	TenantID uuid.UUID
	Status   models.OutputStatus
	Limit    int
	Offset   int
}

// DocumentPage is one page of a tenant's documents.
type DocumentPage struct {
	Documents  []*models.TenantDocument `json:"documents"`
	Pagination Pagination               `json:"pagination"`
}

// Pagination describes where a page sits in the full listing.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

const (
	DefaultDocumentPageSize = 50
	MaxDocumentPageSize     = 200
)

// Artifact is a stored file ready to send.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ArtifactService is the read path for statuses and stored files.
type ArtifactService interface {
	// ListDocuments pages the documents of the tenant's subscribed agencies.
	ListDocuments(ctx context.Context, req ListDocumentsRequest) (*DocumentPage, error)
	DocumentStatus(ctx context.Context, tenantID, documentID uuid.UUID) (*DocumentStatus, error)
	// DownloadBase returns apperrors.ErrNotAvailable unless the output is complete and stored.
	DownloadBase(ctx context.Context, tenantID, outputID uuid.UUID) (*Artifact, error)
	DownloadClient(ctx context.Context, tenantID, clientOutputID uuid.UUID) (*Artifact, error)
	DownloadJob(ctx context.Context, userID string, jobID uuid.UUID) (*Artifact, error)
}

type artifactService struct {
	documentRepo     repositories.DocumentRepository
	baseOutputRepo   repositories.BaseOutputRepository
	clientOutputRepo repositories.ClientOutputRepository
	jobRepo          repositories.ConversionJobRepository
	blobs            storage.BlobStore
	logger           *zap.Logger
}

var _ ArtifactService = (*artifactService)(nil)

// NewArtifactService creates an ArtifactService.
func NewArtifactService(
	documentRepo repositories.DocumentRepository,
	baseOutputRepo repositories.BaseOutputRepository,
	clientOutputRepo repositories.ClientOutputRepository,
	jobRepo repositories.ConversionJobRepository,
	blobs storage.BlobStore,
	logger *zap.Logger,
) ArtifactService {
	return &artifactService{
		documentRepo:     documentRepo,
		baseOutputRepo:   baseOutputRepo,
		clientOutputRepo: clientOutputRepo,
		jobRepo:          jobRepo,
		blobs:            blobs,
		logger:           logger.Named("artifacts"),
	}
}

func (s *artifactService) ListDocuments(ctx context.Context, req ListDocumentsRequest) (*DocumentPage, error) {
	if req.Status != "" && !models.IsValidOutputStatus(req.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", apperrors.ErrInvalidInput, req.Status)
	}
	if req.Offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", apperrors.ErrInvalidInput)
	}
	limit := req.Limit
	switch {
	case limit <= 0:
		limit = DefaultDocumentPageSize
	case limit > MaxDocumentPageSize:
		limit = MaxDocumentPageSize
	}

	docs, total, err := s.documentRepo.ListForTenant(ctx, repositories.TenantDocumentFilter{
		TenantID: req.TenantID,
		Status:   req.Status,
		Limit:    limit,
		Offset:   req.Offset,
	})
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []*models.TenantDocument{}
	}
	return &DocumentPage{
		Documents: docs,
		Pagination: Pagination{
			Total:   total,
			Limit:   limit,
			Offset:  req.Offset,
			HasMore: req.Offset+limit < total,
		},
	}, nil
}

func (s *artifactService) DocumentStatus(ctx context.Context, tenantID, documentID uuid.UUID) (*DocumentStatus, error) {
	doc, err := s.documentRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("document %s: %w", documentID, apperrors.ErrNotFound)
	}

	status := &DocumentStatus{Document: doc, ClientOutputs: []*models.ClientOutput{}}
	output, err := s.baseOutputRepo.GetByDocumentAndTenant(ctx, documentID, tenantID)
	if err != nil {
		return nil, err
	}
	if output == nil {
		return status, nil
	}
	status.Output = output

	clients, err := s.clientOutputRepo.ListByBaseOutput(ctx, output.ID)
	if err != nil {
		return nil, err
	}
	if clients != nil {
		status.ClientOutputs = clients
	}
	return status, nil
}

func (s *artifactService) DownloadBase(ctx context.Context, tenantID, outputID uuid.UUID) (*Artifact, error) {
	output, err := s.baseOutputRepo.GetByID(ctx, outputID)
	if err != nil {
		return nil, err
	}
	if output == nil || output.TenantID != tenantID {
		return nil, fmt.Errorf("output %s: %w", outputID, apperrors.ErrNotFound)
	}
	if output.Status != models.OutputStatusComplete {
		return nil, apperrors.ErrNotAvailable
	}
	return s.fetch(ctx, output.OutputPath, output.OutputType)
}

func (s *artifactService) DownloadClient(ctx context.Context, tenantID, clientOutputID uuid.UUID) (*Artifact, error) {
	co, err := s.clientOutputRepo.GetByID(ctx, clientOutputID)
	if err != nil {
		return nil, err
	}
	if co == nil {
		return nil, fmt.Errorf("client output %s: %w", clientOutputID, apperrors.ErrNotFound)
	}
	base, err := s.baseOutputRepo.GetByID(ctx, co.BaseOutputID)
	if err != nil {
		return nil, err
	}
	if base == nil || base.TenantID != tenantID {
		return nil, fmt.Errorf("client output %s: %w", clientOutputID, apperrors.ErrNotFound)
	}
	if co.Status != models.OutputStatusComplete {
		return nil, apperrors.ErrNotAvailable
	}
	return s.fetch(ctx, co.OutputPath, base.OutputType)
}

func (s *artifactService) DownloadJob(ctx context.Context, userID string, jobID uuid.UUID) (*Artifact, error) {
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil || job.UserID != userID {
		return nil, fmt.Errorf("job %s: %w", jobID, apperrors.ErrNotFound)
	}
	if job.Status != models.OutputStatusComplete {
		return nil, apperrors.ErrNotAvailable
	}
	a, err := s.fetch(ctx, job.OutputPath, models.OutputTypeSlideDeck)
	if err != nil {
		return nil, err
	}
	if job.OutputFilename != nil && *job.OutputFilename != "" {
		a.Filename = *job.OutputFilename
	}
	return a, nil
}

// fetch reads a completed artifact. A missing file means it is not available.
func (s *artifactService) fetch(ctx context.Context, blobPath *string, outputType models.OutputType) (*Artifact, error) {
	if blobPath == nil || *blobPath == "" {
		return nil, apperrors.ErrNotAvailable
	}
	data, err := s.blobs.Get(ctx, *blobPath)
	if errors.Is(err, apperrors.ErrNotFound) {
		s.logger.Warn("Complete artifact missing from blob store", zap.String("path", *blobPath))
		return nil, apperrors.ErrNotAvailable
	}
	if err != nil {
		return nil, err
	}

	contentType := "application/octet-stream"
	if r, err := render.ForOutputType(outputType); err == nil {
		contentType = r.ContentType()
	}
	return &Artifact{
		Filename:    path.Base(*blobPath),
		ContentType: contentType,
		Data:        data,
	}, nil
}
