package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/models"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/repositories"
)

// Bounds accepted by UpdateSettings.
const (
	minPollIntervalMinutes = 1
	maxPollIntervalMinutes = 24 * 60
	maxDocumentCount       = 100
)

// MonitorStatus is the admin view of the poller.
type MonitorStatus struct {
	Settings        *models.MonitorSettings      `json:"settings"`
	TotalDocuments  int                          `json:"total_documents"`
	DocumentsLast24 int                          `json:"documents_last_24h"`
	RecentDocuments []*models.RegulatoryDocument `json:"recent_documents"`
}

// MonitorService administers the poller.
type MonitorService interface {
	Status(ctx context.Context) (*MonitorStatus, error)
	// UpdateSettings applies a partial update. Out-of-range values are apperrors.ErrInvalidInput.
	UpdateSettings(ctx context.Context, update *models.MonitorSettingsUpdate) (*models.MonitorSettings, error)
	// CheckNow runs one poll cycle immediately.
	CheckNow(ctx context.Context) (*PollResult, error)
	// Reprocess resets every failed or complete base output of a document to pending.
	Reprocess(ctx context.Context, documentID uuid.UUID) (int64, error)
}

type monitorService struct {
	settingsRepo   repositories.MonitorSettingsRepository
	documentRepo   repositories.DocumentRepository
	baseOutputRepo repositories.BaseOutputRepository
	poller         PollerService
	logger         *zap.Logger
	now            func() time.Time
}

var _ MonitorService = (*monitorService)(nil)

// NewMonitorService creates a MonitorService.
func NewMonitorService(
	settingsRepo repositories.MonitorSettingsRepository,
	documentRepo repositories.DocumentRepository,
	baseOutputRepo repositories.BaseOutputRepository,
	poller PollerService,
	logger *zap.Logger,
) MonitorService {
	return &monitorService{
		settingsRepo:   settingsRepo,
		documentRepo:   documentRepo,
		baseOutputRepo: baseOutputRepo,
		poller:         poller,
		logger:         logger.Named("monitor"),
		now:            time.Now,
	}
}

func (s *monitorService) Status(ctx context.Context) (*MonitorStatus, error) {
	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load monitor settings: %w", err)
	}

	total, err := s.documentRepo.Count(ctx, nil)
	if err != nil {
		return nil, err
	}
	since := s.now().Add(-24 * time.Hour)
	recentCount, err := s.documentRepo.Count(ctx, &since)
	if err != nil {
		return nil, err
	}
	recent, err := s.documentRepo.List(ctx, repositories.DocumentFilter{Limit: 10})
	if err != nil {
		return nil, err
	}

	return &MonitorStatus{
		Settings:        settings,
		TotalDocuments:  total,
		DocumentsLast24: recentCount,
		RecentDocuments: recent,
	}, nil
}

func (s *monitorService) UpdateSettings(ctx context.Context, update *models.MonitorSettingsUpdate) (*models.MonitorSettings, error) {
	if update == nil || update.IsEmpty() {
		return nil, fmt.Errorf("%w: no settings to update", apperrors.ErrInvalidInput)
	}
	if v := update.PollIntervalMinutes; v != nil && (*v < minPollIntervalMinutes || *v > maxPollIntervalMinutes) {
		return nil, fmt.Errorf("%w: poll_interval_minutes must be between %d and %d",
			apperrors.ErrInvalidInput, minPollIntervalMinutes, maxPollIntervalMinutes)
	}
	for name, v := range map[string]*int{
		"initial_document_count": update.InitialDocumentCount,
		"poll_document_count":    update.PollDocumentCount,
	} {
		if v != nil && (*v < 1 || *v > maxDocumentCount) {
			return nil, fmt.Errorf("%w: %s must be between 1 and %d", apperrors.ErrInvalidInput, name, maxDocumentCount)
		}
	}
	if update.AgencySlugs != nil {
		for _, slug := range *update.AgencySlugs {
			if slug == "" {
				return nil, fmt.Errorf("%w: agency_slugs must not contain empty values", apperrors.ErrInvalidInput)
			}
		}
	}

	settings, err := s.settingsRepo.Update(ctx, update)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Monitor settings updated",
		zap.Bool("enabled", settings.IsEnabled),
		zap.Strings("agency_slugs", settings.AgencySlugs))
	return settings, nil
}

func (s *monitorService) CheckNow(ctx context.Context) (*PollResult, error) {
	return s.poller.Poll(ctx)
}

func (s *monitorService) Reprocess(ctx context.Context, documentID uuid.UUID) (int64, error) {
	doc, err := s.documentRepo.GetByID(ctx, documentID)
	if err != nil {
		return 0, err
	}
	if doc == nil {
		return 0, fmt.Errorf("document %s: %w", documentID, apperrors.ErrNotFound)
	}

	n, err := s.baseOutputRepo.ResetForDocument(ctx, documentID)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Reset document outputs for reprocessing",
		zap.String("document_id", documentID.String()),
		zap.String("external_id", doc.ExternalID),
		zap.Int64("reset", n))
	return n, nil
}
