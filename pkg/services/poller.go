package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/models"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/registry"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/repositories"
)

// NewsroomDocumentType is the document type recorded for newsroom feed items.
const NewsroomDocumentType = "Newsroom Release"

// PollResult summarizes one poll cycle.
type PollResult struct {
	// Skipped is set when another poll held the lease.
	Skipped bool `json:"skipped,omitempty"`
	// Disabled is set when monitoring is turned off.
	Disabled         bool     `json:"disabled,omitempty"`
	DocumentsChecked int      `json:"documents_checked"`
	NewDocuments     int      `json:"new_documents"`
	SkippedExisting  int      `json:"skipped_existing"`
	OutputsCreated   int      `json:"outputs_created"`
	Errors           []string `json:"errors,omitempty"`
	Status           string   `json:"status,omitempty"`
}

// PollerService detects new documents and hands them to the router.
type PollerService interface {
	// Poll runs one cycle. Repeated calls with no upstream change create nothing.
	Poll(ctx context.Context) (*PollResult, error)
}

type pollerService struct {
	settingsRepo repositories.MonitorSettingsRepository
	agencyRepo   repositories.AgencyRepository
	documentRepo repositories.DocumentRepository
	registry     registry.Registry
	feeds        registry.FeedFetcher
	router       RouterService
	lock         PollLock
	logger       *zap.Logger
	now          func() time.Time
}

var _ PollerService = (*pollerService)(nil)

// NewPollerService creates a PollerService. feeds may be nil to skip newsroom feeds.
func NewPollerService(
	settingsRepo repositories.MonitorSettingsRepository,
	agencyRepo repositories.AgencyRepository,
	documentRepo repositories.DocumentRepository,
	reg registry.Registry,
	feeds registry.FeedFetcher,
	router RouterService,
	lock PollLock,
	logger *zap.Logger,
) PollerService {
	if lock == nil {
		lock = noopPollLock{}
	}
	return &pollerService{
		settingsRepo: settingsRepo,
		agencyRepo:   agencyRepo,
		documentRepo: documentRepo,
		registry:     reg,
		feeds:        feeds,
		router:       router,
		lock:         lock,
		logger:       logger.Named("poller"),
		now:          time.Now,
	}
}

// candidate is one document seen upstream, before dedup.
type candidate struct {
	doc *models.RegulatoryDocument
	// agencySlugs are registry slugs attached to the candidate, used to resolve AgencyID.
	agencySlugs []string
}

func (s *pollerService) Poll(ctx context.Context) (*PollResult, error) {
	release, acquired, err := s.lock.Acquire(ctx)
	if err != nil {
		// Storage dedup still holds without the lease.
		s.logger.Warn("Poll lease unavailable, continuing without it", zap.Error(err))
		release, acquired = func() {}, true
	}
	if !acquired {
		s.logger.Info("Poll already in progress, skipping")
		return &PollResult{Skipped: true}, nil
	}
	defer release()

	result, err := s.poll(ctx)
	if err != nil {
		s.logger.Error("Poll failed", zap.Error(err))
		if recErr := s.settingsRepo.RecordPollError(ctx, s.now(), models.PollFailure(err)); recErr != nil {
			s.logger.Error("Failed to record poll error", zap.Error(recErr))
		}
		return nil, err
	}
	return result, nil
}

func (s *pollerService) poll(ctx context.Context) (*PollResult, error) {
	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load monitor settings: %w", err)
	}
	if settings == nil {
		return nil, fmt.Errorf("monitor settings not initialized")
	}
	if !settings.IsEnabled {
		s.logger.Info("Monitoring disabled")
		return &PollResult{Disabled: true}, nil
	}

	agencies, err := s.agencyRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list agencies: %w", err)
	}
	bySlug := make(map[string]*models.Agency, len(agencies))
	slugs := make([]string, 0, len(agencies))
	for _, a := range agencies {
		if a.RegistrySlug == "" {
			continue
		}
		bySlug[a.RegistrySlug] = a
		slugs = append(slugs, a.RegistrySlug)
	}
	if len(settings.AgencySlugs) > 0 {
		slugs = settings.AgencySlugs
	}

	pageSize := settings.PageSize()
	s.logger.Info("Poll started",
		zap.Int("page_size", pageSize),
		zap.Bool("initialized", settings.Initialized),
		zap.Strings("agencies", slugs))

	resp, err := s.registry.FetchDocuments(ctx, registry.FetchOptions{
		AgencySlugs:     slugs,
		DocumentTypes:   settings.DocumentTypes,
		OnlySignificant: settings.OnlySignificant,
		PerPage:         pageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch registry documents: %w", err)
	}

	candidates := make([]candidate, 0, len(resp.Results))
	for i := range resp.Results {
		candidates = append(candidates, registryCandidate(&resp.Results[i]))
	}

	result := &PollResult{}
	candidates = append(candidates, s.newsroomCandidates(ctx, agencies, result)...)
	result.DocumentsChecked = len(candidates)

	fallback := fallbackAgency(slugs, bySlug)
	for _, c := range candidates {
		if err := s.processCandidate(ctx, c, bySlug, fallback, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", c.doc.ExternalID, err))
			s.logger.Error("Failed to process candidate",
				zap.String("source", string(c.doc.Source)),
				zap.String("external_id", c.doc.ExternalID),
				zap.Error(err))
		}
	}

	result.Status = models.PollOutcome(len(result.Errors))
	if err := s.settingsRepo.RecordPoll(ctx, s.now(), result.Status, result.DocumentsChecked); err != nil {
		return nil, fmt.Errorf("failed to record poll: %w", err)
	}

	s.logger.Info("Poll complete",
		zap.Int("checked", result.DocumentsChecked),
		zap.Int("new", result.NewDocuments),
		zap.Int("skipped", result.SkippedExisting),
		zap.Int("errors", len(result.Errors)))

	return result, nil
}

// newsroomCandidates fetches the feed of every agency someone follows on the newsroom side.
// Feed failures are recorded on result and never abort the poll.
func (s *pollerService) newsroomCandidates(ctx context.Context, agencies []*models.Agency, result *PollResult) []candidate {
	if s.feeds == nil {
		return nil
	}

	var out []candidate
	for _, agency := range agencies {
		if agency.NewsroomFeedURL == "" {
			continue
		}
		followed, err := s.agencyRepo.HasNewsroomSubscribers(ctx, agency.ID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("newsroom %s: %v", agency.ID, err))
			continue
		}
		if !followed {
			continue
		}

		feed, err := s.feeds.FetchFeed(ctx, agency.NewsroomFeedURL)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("newsroom %s: %v", agency.ID, err))
			s.logger.Warn("Failed to fetch newsroom feed",
				zap.String("agency_id", agency.ID),
				zap.String("url", agency.NewsroomFeedURL),
				zap.Error(err))
			continue
		}

		for _, item := range feed.Items {
			if item.ExternalID() == "" {
				continue
			}
			out = append(out, candidate{doc: &models.RegulatoryDocument{
				Source:          models.DocumentSourceAgencyNewsroom,
				ExternalID:      item.ExternalID(),
				AgencyID:        agency.ID,
				Title:           item.Title,
				Abstract:        registry.SummaryText(item),
				PublicationDate: item.Published,
				PDFURL:          registry.ExtractPDFURL(item),
				HTMLURL:         item.Link,
				DocumentType:    NewsroomDocumentType,
			}})
		}
	}
	return out
}

func registryCandidate(d *registry.Document) candidate {
	return candidate{
		doc: &models.RegulatoryDocument{
			Source:          models.DocumentSourceFederalRegister,
			ExternalID:      d.DocumentNumber,
			Title:           strings.TrimSpace(d.Title),
			Abstract:        d.Abstract,
			PublicationDate: d.PublicationTime(),
			PDFURL:          d.PDFURL,
			HTMLURL:         d.HTMLURL,
			Citation:        d.Citation,
			DocumentType:    d.Type,
			IsSignificant:   d.Significant,
		},
		agencySlugs: d.AgencySlugs(),
	}
}

func fallbackAgency(slugs []string, bySlug map[string]*models.Agency) *models.Agency {
	for _, slug := range slugs {
		if a, ok := bySlug[slug]; ok {
			return a
		}
	}
	return nil
}

// processCandidate dedups one candidate and routes it when new.
// A panic is converted into an error so one bad item never stops the cycle.
func (s *pollerService) processCandidate(ctx context.Context, c candidate, bySlug map[string]*models.Agency, fallback *models.Agency, result *PollResult) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if c.doc.ExternalID == "" {
		return fmt.Errorf("candidate has no external id")
	}

	if c.doc.AgencyID == "" {
		for _, slug := range c.agencySlugs {
			if a, ok := bySlug[slug]; ok {
				c.doc.AgencyID = a.ID
				break
			}
		}
		if c.doc.AgencyID == "" && fallback != nil {
			c.doc.AgencyID = fallback.ID
		}
		if c.doc.AgencyID == "" {
			return fmt.Errorf("no monitored agency matches %v", c.agencySlugs)
		}
	}

	inserted, err := s.documentRepo.InsertIfAbsent(ctx, c.doc)
	if err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}

	if !inserted {
		result.SkippedExisting++
		if err := s.documentRepo.BackfillMissing(ctx, c.doc); err != nil {
			s.logger.Warn("Failed to backfill document fields",
				zap.String("external_id", c.doc.ExternalID),
				zap.Error(err))
		}
		return nil
	}

	result.NewDocuments++
	s.logger.Info("New document detected",
		zap.String("source", string(c.doc.Source)),
		zap.String("external_id", c.doc.ExternalID),
		zap.String("agency_id", c.doc.AgencyID))

	routed, err := s.router.RouteDocument(ctx, c.doc)
	if err != nil {
		return fmt.Errorf("failed to route document: %w", err)
	}
	result.OutputsCreated += routed.OutputsCreated
	return nil
}
