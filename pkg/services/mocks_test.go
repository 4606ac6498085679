package services

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/llm"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/models"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/registry"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/repositories"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/retry"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/storage"
)

// ============================================================================
// In-memory store backing every repository mock
// ============================================================================

// memStore mimics the conditional-update semantics of the Postgres repositories.
type memStore struct {
	mu            sync.Mutex
	agencies      map[string]*models.Agency
	subs          []*models.TenantAgencySubscription
	tenants       map[uuid.UUID]*models.Tenant
	clients       []*models.Client
	docs          []*models.RegulatoryDocument
	baseOutputs   []*models.BaseOutput
	clientOutputs []*models.ClientOutput
	jobs          []*models.ConversionJob
	settings      *models.MonitorSettings
	pollErrors    []string
}

func newMemStore() *memStore {
	return &memStore{
		agencies: map[string]*models.Agency{},
		tenants:  map[uuid.UUID]*models.Tenant{},
	}
}

func (s *memStore) addAgency(a *models.Agency) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agencies[a.ID] = a
}

func (s *memStore) addTenant(t *models.Tenant, agencyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[t.ID] = t
	if agencyID != "" {
		s.subs = append(s.subs, &models.TenantAgencySubscription{
			TenantID: t.ID, AgencyID: agencyID, RegistryFeedEnabled: true, NewsroomFeedEnabled: true,
		})
	}
}

func (s *memStore) addClient(c *models.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients = append(s.clients, c)
}

func (s *memStore) baseFor(docID, tenantID uuid.UUID) *models.BaseOutput {
	for _, o := range s.baseOutputs {
		if o.RegulatoryDocumentID == docID && o.TenantID == tenantID {
			return o
		}
	}
	return nil
}

func (s *memStore) base(id uuid.UUID) *models.BaseOutput {
	for _, o := range s.baseOutputs {
		if o.ID == id {
			return o
		}
	}
	return nil
}

func (s *memStore) clientOutput(id uuid.UUID) *models.ClientOutput {
	for _, o := range s.clientOutputs {
		if o.ID == id {
			return o
		}
	}
	return nil
}

func (s *memStore) countBaseOutputs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.baseOutputs)
}

func copyBase(o *models.BaseOutput) *models.BaseOutput {
	if o == nil {
		return nil
	}
	cp := *o
	return &cp
}

func copyClientOutput(o *models.ClientOutput) *models.ClientOutput {
	if o == nil {
		return nil
	}
	cp := *o
	return &cp
}

func strPtr(s string) *string { return &s }

// ----------------------------------------------------------------------------

type memAgencyRepo struct{ s *memStore }

var _ repositories.AgencyRepository = (*memAgencyRepo)(nil)

func (r *memAgencyRepo) GetByID(_ context.Context, id string) (*models.Agency, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.agencies[id], nil
}

func (r *memAgencyRepo) GetByRegistrySlug(_ context.Context, slug string) (*models.Agency, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.agencies {
		if a.RegistrySlug == slug {
			return a, nil
		}
	}
	return nil, nil
}

func (r *memAgencyRepo) ListActive(_ context.Context) ([]*models.Agency, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Agency
	for _, a := range r.s.agencies {
		if a.IsActive {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b *models.Agency) int {
		if a.ID < b.ID {
			return -1
		}
		return 1
	})
	return out, nil
}

func (r *memAgencyRepo) ListSubscriptions(_ context.Context, agencyID string, source models.DocumentSource) ([]*models.TenantAgencySubscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.TenantAgencySubscription
	for _, sub := range r.s.subs {
		if sub.AgencyID == agencyID && sub.EnabledFor(source) {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (r *memAgencyRepo) HasNewsroomSubscribers(_ context.Context, agencyID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sub := range r.s.subs {
		if sub.AgencyID == agencyID && sub.NewsroomFeedEnabled {
			return true, nil
		}
	}
	return false, nil
}

func (r *memAgencyRepo) Upsert(_ context.Context, agency *models.Agency) error {
	r.s.addAgency(agency)
	return nil
}

func (r *memAgencyRepo) UpsertSubscription(_ context.Context, sub *models.TenantAgencySubscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.subs = append(r.s.subs, sub)
	return nil
}

// ----------------------------------------------------------------------------

type memTenantRepo struct{ s *memStore }

var _ repositories.TenantRepository = (*memTenantRepo)(nil)

func (r *memTenantRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.tenants[id], nil
}

func (r *memTenantRepo) Upsert(_ context.Context, tenant *models.Tenant) error {
	r.s.addTenant(tenant, "")
	return nil
}

type memClientRepo struct{ s *memStore }

var _ repositories.ClientRepository = (*memClientRepo)(nil)

func (r *memClientRepo) ListActiveByTenant(_ context.Context, tenantID uuid.UUID) ([]*models.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Client
	for _, c := range r.s.clients {
		if c.TenantID == tenantID && c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memClientRepo) ListActiveByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*models.Client, error) {
	all, _ := r.ListActiveByTenant(ctx, tenantID)
	var out []*models.Client
	for _, c := range all {
		if slices.Contains(ids, c.ID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memClientRepo) Upsert(_ context.Context, client *models.Client) error {
	r.s.addClient(client)
	return nil
}

// ----------------------------------------------------------------------------

type memDocumentRepo struct {
	s         *memStore
	insertErr error
}

var _ repositories.DocumentRepository = (*memDocumentRepo)(nil)

func (r *memDocumentRepo) InsertIfAbsent(_ context.Context, doc *models.RegulatoryDocument) (bool, error) {
	if r.insertErr != nil {
		return false, r.insertErr
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.docs {
		if d.Source == doc.Source && d.ExternalID == doc.ExternalID {
			doc.ID = d.ID
			return false, nil
		}
	}
	doc.ID = uuid.New()
	doc.DetectedAt = time.Now()
	doc.CreatedAt = doc.DetectedAt
	cp := *doc
	r.s.docs = append(r.s.docs, &cp)
	return true, nil
}

func (r *memDocumentRepo) GetByID(_ context.Context, id uuid.UUID) (*models.RegulatoryDocument, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.docs {
		if d.ID == id {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memDocumentRepo) GetBySourceAndExternalID(_ context.Context, source models.DocumentSource, externalID string) (*models.RegulatoryDocument, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.docs {
		if d.Source == source && d.ExternalID == externalID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memDocumentRepo) BackfillMissing(_ context.Context, doc *models.RegulatoryDocument) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.docs {
		if d.ID == doc.ID {
			if d.PDFURL == "" {
				d.PDFURL = doc.PDFURL
			}
			if d.Abstract == "" {
				d.Abstract = doc.Abstract
			}
		}
	}
	return nil
}

func (r *memDocumentRepo) List(_ context.Context, filter repositories.DocumentFilter) ([]*models.RegulatoryDocument, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.RegulatoryDocument
	for i := len(r.s.docs) - 1; i >= 0; i-- {
		d := r.s.docs[i]
		if filter.Source != "" && d.Source != filter.Source {
			continue
		}
		out = append(out, d)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (r *memDocumentRepo) Count(_ context.Context, since *time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, d := range r.s.docs {
		if since == nil || d.DetectedAt.After(*since) {
			n++
		}
	}
	return n, nil
}

// ListForTenant orders by insertion, newest first.
func (r *memDocumentRepo) ListForTenant(_ context.Context, filter repositories.TenantDocumentFilter) ([]*models.TenantDocument, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	subscribed := map[string]bool{}
	for _, sub := range r.s.subs {
		if sub.TenantID == filter.TenantID {
			subscribed[sub.AgencyID] = true
		}
	}

	var matched []*models.TenantDocument
	for i := len(r.s.docs) - 1; i >= 0; i-- {
		d := r.s.docs[i]
		if !subscribed[d.AgencyID] {
			continue
		}
		o := r.s.baseFor(d.ID, filter.TenantID)
		if filter.Status != "" && (o == nil || o.Status != filter.Status) {
			continue
		}
		cp := *d
		matched = append(matched, &models.TenantDocument{Document: &cp, Output: copyBase(o)})
	}

	total := len(matched)
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	start := min(filter.Offset, total)
	end := min(start+limit, total)
	return matched[start:end], total, nil
}

// ----------------------------------------------------------------------------

type memBaseOutputRepo struct{ s *memStore }

var _ repositories.BaseOutputRepository = (*memBaseOutputRepo)(nil)

func (r *memBaseOutputRepo) FindOrCreate(_ context.Context, documentID, tenantID uuid.UUID, outputType models.OutputType, initialStatus models.OutputStatus) (*models.BaseOutput, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if o := r.s.baseFor(documentID, tenantID); o != nil {
		return copyBase(o), false, nil
	}
	now := time.Now()
	o := &models.BaseOutput{
		ID:                   uuid.New(),
		RegulatoryDocumentID: documentID,
		TenantID:             tenantID,
		OutputType:           outputType,
		Status:               initialStatus,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	r.s.baseOutputs = append(r.s.baseOutputs, o)
	return copyBase(o), true, nil
}

func (r *memBaseOutputRepo) GetByID(_ context.Context, id uuid.UUID) (*models.BaseOutput, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return copyBase(r.s.base(id)), nil
}

func (r *memBaseOutputRepo) GetByDocumentAndTenant(_ context.Context, documentID, tenantID uuid.UUID) (*models.BaseOutput, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return copyBase(r.s.baseFor(documentID, tenantID)), nil
}

func (r *memBaseOutputRepo) ListByDocument(_ context.Context, documentID uuid.UUID) ([]*models.BaseOutput, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.BaseOutput
	for _, o := range r.s.baseOutputs {
		if o.RegulatoryDocumentID == documentID {
			out = append(out, copyBase(o))
		}
	}
	return out, nil
}

func (r *memBaseOutputRepo) ListPendingAutoProcess(_ context.Context, limit int) ([]*models.BaseOutput, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.BaseOutput
	for _, o := range r.s.baseOutputs {
		t := r.s.tenants[o.TenantID]
		if o.Status == models.OutputStatusPending && t != nil && t.AutoProcess {
			out = append(out, copyBase(o))
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *memBaseOutputRepo) BeginProcessing(_ context.Context, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o := r.s.base(id)
	if o == nil || !o.Status.CanBeginProcessing() {
		return false, nil
	}
	now := time.Now()
	o.Status = models.OutputStatusProcessing
	o.ProcessingStartedAt = &now
	return true, nil
}

func (r *memBaseOutputRepo) MarkComplete(_ context.Context, id uuid.UUID, c *models.OutputCompletion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o := r.s.base(id)
	now := time.Now()
	o.Status = models.OutputStatusComplete
	o.OutputPath = strPtr(c.OutputPath)
	o.SourceText = strPtr(c.SourceText)
	o.ModelUsed = strPtr(c.ModelUsed)
	o.TokensInput = c.TokensInput
	o.TokensOutput = c.TokensOutput
	o.ProcessingCompletedAt = &now
	o.ErrorMessage = nil
	return nil
}

func (r *memBaseOutputRepo) MarkFailed(_ context.Context, id uuid.UUID, message string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o := r.s.base(id)
	o.Status = models.OutputStatusFailed
	o.ErrorMessage = strPtr(message)
	return nil
}

func (r *memBaseOutputRepo) ResetToPending(_ context.Context, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o := r.s.base(id)
	if o == nil || (o.Status != models.OutputStatusFailed && o.Status != models.OutputStatusComplete) {
		return false, nil
	}
	o.Status = models.OutputStatusPending
	o.ErrorMessage = nil
	o.OutputPath = nil
	return true, nil
}

func (r *memBaseOutputRepo) ResetForDocument(ctx context.Context, documentID uuid.UUID) (int64, error) {
	outputs, _ := r.ListByDocument(ctx, documentID)
	var n int64
	for _, o := range outputs {
		if ok, _ := r.ResetToPending(ctx, o.ID); ok {
			n++
		}
	}
	return n, nil
}

// ----------------------------------------------------------------------------

type memClientOutputRepo struct{ s *memStore }

var _ repositories.ClientOutputRepository = (*memClientOutputRepo)(nil)

func (r *memClientOutputRepo) findLocked(baseOutputID, clientID uuid.UUID) *models.ClientOutput {
	for _, o := range r.s.clientOutputs {
		if o.BaseOutputID == baseOutputID && o.ClientID == clientID {
			return o
		}
	}
	return nil
}

func (r *memClientOutputRepo) createLocked(baseOutputID, clientID uuid.UUID) *models.ClientOutput {
	now := time.Now()
	o := &models.ClientOutput{
		ID:           uuid.New(),
		BaseOutputID: baseOutputID,
		ClientID:     clientID,
		Status:       models.OutputStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.s.clientOutputs = append(r.s.clientOutputs, o)
	return o
}

func (r *memClientOutputRepo) CreatePlaceholders(_ context.Context, baseOutputID, tenantID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, c := range r.s.clients {
		if c.TenantID != tenantID || !c.IsActive {
			continue
		}
		if r.findLocked(baseOutputID, c.ID) == nil {
			r.createLocked(baseOutputID, c.ID)
			n++
		}
	}
	return n, nil
}

func (r *memClientOutputRepo) FindOrCreate(_ context.Context, baseOutputID, clientID uuid.UUID) (*models.ClientOutput, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if o := r.findLocked(baseOutputID, clientID); o != nil {
		return copyClientOutput(o), nil
	}
	return copyClientOutput(r.createLocked(baseOutputID, clientID)), nil
}

func (r *memClientOutputRepo) GetByID(_ context.Context, id uuid.UUID) (*models.ClientOutput, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return copyClientOutput(r.s.clientOutput(id)), nil
}

func (r *memClientOutputRepo) ListByBaseOutput(_ context.Context, baseOutputID uuid.UUID) ([]*models.ClientOutput, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.ClientOutput
	for _, o := range r.s.clientOutputs {
		if o.BaseOutputID == baseOutputID {
			out = append(out, copyClientOutput(o))
		}
	}
	return out, nil
}

func (r *memClientOutputRepo) Select(_ context.Context, id uuid.UUID, selectedBy string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o := r.s.clientOutput(id)
	now := time.Now()
	o.SelectedForGeneration = true
	o.SelectedBy = strPtr(selectedBy)
	o.SelectedAt = &now
	return nil
}

func (r *memClientOutputRepo) BeginProcessing(_ context.Context, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o := r.s.clientOutput(id)
	if o == nil || !o.SelectedForGeneration || !o.Status.CanBeginProcessing() {
		return false, nil
	}
	o.Status = models.OutputStatusProcessing
	return true, nil
}

func (r *memClientOutputRepo) MarkComplete(_ context.Context, id uuid.UUID, c *models.OutputCompletion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o := r.s.clientOutput(id)
	o.Status = models.OutputStatusComplete
	o.OutputPath = strPtr(c.OutputPath)
	o.SourceText = strPtr(c.SourceText)
	o.ModelUsed = strPtr(c.ModelUsed)
	o.TokensInput = c.TokensInput
	o.TokensOutput = c.TokensOutput
	return nil
}

func (r *memClientOutputRepo) MarkFailed(_ context.Context, id uuid.UUID, message string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o := r.s.clientOutput(id)
	o.Status = models.OutputStatusFailed
	o.ErrorMessage = strPtr(message)
	return nil
}

func (r *memClientOutputRepo) ResetToPending(_ context.Context, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o := r.s.clientOutput(id)
	if o == nil || (o.Status != models.OutputStatusFailed && o.Status != models.OutputStatusComplete) {
		return false, nil
	}
	o.Status = models.OutputStatusPending
	o.ErrorMessage = nil
	o.OutputPath = nil
	return true, nil
}

// ----------------------------------------------------------------------------

type memJobRepo struct{ s *memStore }

var _ repositories.ConversionJobRepository = (*memJobRepo)(nil)

func (r *memJobRepo) job(id uuid.UUID) *models.ConversionJob {
	for _, j := range r.s.jobs {
		if j.ID == id {
			return j
		}
	}
	return nil
}

func (r *memJobRepo) Create(_ context.Context, job *models.ConversionJob) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	job.ID = uuid.New()
	job.Status = models.OutputStatusPending
	job.CreatedAt = time.Now()
	cp := *job
	r.s.jobs = append(r.s.jobs, &cp)
	return nil
}

func (r *memJobRepo) GetByID(_ context.Context, id uuid.UUID) (*models.ConversionJob, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	j := r.job(id)
	if j == nil {
		return nil, nil
	}
	cp := *j
	return &cp, nil
}

func (r *memJobRepo) ListByUser(_ context.Context, userID string, limit int) ([]*models.ConversionJob, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.ConversionJob
	for i := len(r.s.jobs) - 1; i >= 0 && len(out) < limit; i-- {
		if r.s.jobs[i].UserID == userID {
			cp := *r.s.jobs[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memJobRepo) ClaimNextPending(_ context.Context) (*models.ConversionJob, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, j := range r.s.jobs {
		if j.Status == models.OutputStatusPending {
			j.Status = models.OutputStatusProcessing
			cp := *j
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memJobRepo) SetExtractedText(_ context.Context, id uuid.UUID, text string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.job(id).ExtractedText = strPtr(text)
	return nil
}

func (r *memJobRepo) MarkComplete(_ context.Context, id uuid.UUID, filename, path string, size int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	j := r.job(id)
	j.Status = models.OutputStatusComplete
	j.OutputFilename = strPtr(filename)
	j.OutputPath = strPtr(path)
	j.OutputSizeBytes = &size
	return nil
}

func (r *memJobRepo) MarkFailed(_ context.Context, id uuid.UUID, message string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	j := r.job(id)
	j.Status = models.OutputStatusFailed
	j.ErrorMessage = strPtr(message)
	return nil
}

// ----------------------------------------------------------------------------

type memSettingsRepo struct {
	s      *memStore
	getErr error
}

var _ repositories.MonitorSettingsRepository = (*memSettingsRepo)(nil)

func (r *memSettingsRepo) Get(_ context.Context) (*models.MonitorSettings, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.settings == nil {
		return nil, nil
	}
	cp := *r.s.settings
	return &cp, nil
}

func (r *memSettingsRepo) Update(ctx context.Context, u *models.MonitorSettingsUpdate) (*models.MonitorSettings, error) {
	r.s.mu.Lock()
	st := r.s.settings
	if u.IsEnabled != nil {
		st.IsEnabled = *u.IsEnabled
	}
	if u.PollIntervalMinutes != nil {
		st.PollIntervalMinutes = *u.PollIntervalMinutes
	}
	if u.AgencySlugs != nil {
		st.AgencySlugs = *u.AgencySlugs
	}
	if u.AutoProcessNew != nil {
		st.AutoProcessNew = *u.AutoProcessNew
	}
	if u.InitialDocumentCount != nil {
		st.InitialDocumentCount = *u.InitialDocumentCount
	}
	if u.PollDocumentCount != nil {
		st.PollDocumentCount = *u.PollDocumentCount
	}
	r.s.mu.Unlock()
	return r.Get(ctx)
}

func (r *memSettingsRepo) RecordPoll(_ context.Context, at time.Time, status string, found int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.settings.LastPollAt = &at
	r.s.settings.LastPollStatus = strPtr(status)
	r.s.settings.LastPollDocumentsFound = &found
	r.s.settings.Initialized = true
	return nil
}

func (r *memSettingsRepo) RecordPollError(_ context.Context, at time.Time, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.pollErrors = append(r.s.pollErrors, status)
	if r.s.settings != nil {
		r.s.settings.LastPollAt = &at
		r.s.settings.LastPollStatus = strPtr(status)
	}
	return nil
}

// ============================================================================
// Upstream mocks
// ============================================================================

type mockRegistry struct {
	mu           sync.Mutex
	FetchFunc    func(ctx context.Context, opts registry.FetchOptions) (*registry.DocumentsResponse, error)
	DownloadFunc func(ctx context.Context, pdfURL string) ([]byte, error)
	fetches      []registry.FetchOptions
	downloads    []string
}

var _ registry.Registry = (*mockRegistry)(nil)

func (m *mockRegistry) FetchDocuments(ctx context.Context, opts registry.FetchOptions) (*registry.DocumentsResponse, error) {
	m.mu.Lock()
	m.fetches = append(m.fetches, opts)
	m.mu.Unlock()
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, opts)
	}
	return &registry.DocumentsResponse{}, nil
}

func (m *mockRegistry) DownloadPDF(ctx context.Context, pdfURL string) ([]byte, error) {
	m.mu.Lock()
	m.downloads = append(m.downloads, pdfURL)
	m.mu.Unlock()
	if m.DownloadFunc != nil {
		return m.DownloadFunc(ctx, pdfURL)
	}
	return nil, nil
}

type mockFeeds struct {
	FetchFeedFunc func(ctx context.Context, feedURL string) (*registry.Feed, error)
}

func (m *mockFeeds) FetchFeed(ctx context.Context, feedURL string) (*registry.Feed, error) {
	return m.FetchFeedFunc(ctx, feedURL)
}

type mockPollLock struct {
	acquired bool
	err      error
	released int
}

func (m *mockPollLock) Acquire(context.Context) (func(), bool, error) {
	if m.err != nil || !m.acquired {
		return nil, false, m.err
	}
	return func() { m.released++ }, true, nil
}

// ============================================================================
// Fixtures
// ============================================================================

const cmsAgencyID = "cms"

// testEnv wires every service over one memStore.
type testEnv struct {
	store     *memStore
	docs      *memDocumentRepo
	settings  *memSettingsRepo
	registry  *mockRegistry
	llm       *llm.MockTextGenerator
	blobs     storage.BlobStore
	generator ContentGenerator

	router  RouterService
	poller  PollerService
	base    BaseGenerationService
	clients ClientCustomizationService
	jobs    ConversionJobService
	reads   ArtifactService
	monitor MonitorService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	store := newMemStore()
	store.addAgency(&models.Agency{
		ID:           cmsAgencyID,
		Name:         "Centers for Medicare & Medicaid Services",
		RegistrySlug: "centers-for-medicare-medicaid-services",
		IsActive:     true,
	})
	store.settings = &models.MonitorSettings{
		ID:                   1,
		IsEnabled:            true,
		PollIntervalMinutes:  15,
		AgencySlugs:          []string{"centers-for-medicare-medicaid-services"},
		AutoProcessNew:       true,
		InitialDocumentCount: 5,
		PollDocumentCount:    20,
	}

	blobs, err := storage.NewLocalStore(t.TempDir(), logger)
	require.NoError(t, err)

	env := &testEnv{
		store:    store,
		docs:     &memDocumentRepo{s: store},
		settings: &memSettingsRepo{s: store},
		registry: &mockRegistry{DownloadFunc: func(context.Context, string) ([]byte, error) {
			return testPDF(t, "Medicare Program payment update for calendar year 2025"), nil
		}},
		llm:   llm.NewMockTextGenerator(),
		blobs: blobs,
	}
	env.llm.GenerateFunc = memoResponder
	env.generator = NewContentGenerator(env.llm, GeneratorConfig{
		BaseMemoModel:      "memo-model",
		BaseSlideModel:     "slide-model",
		CustomizationModel: "custom-model",
		Retry:              &retry.Config{MaxRetries: 0},
	}, logger)

	agencies := &memAgencyRepo{s: store}
	tenants := &memTenantRepo{s: store}
	baseRepo := &memBaseOutputRepo{s: store}
	clientRepo := &memClientOutputRepo{s: store}
	jobRepo := &memJobRepo{s: store}

	env.router = NewRouterService(agencies, tenants, baseRepo, clientRepo, logger)
	env.poller = NewPollerService(env.settings, agencies, env.docs, env.registry, nil, env.router, nil, logger)
	env.base = NewBaseGenerationService(env.docs, tenants, baseRepo, env.settings, env.registry, env.generator, blobs, logger)
	pool := llm.NewWorkerPool(llm.WorkerPoolConfig{MaxConcurrent: 2}, logger)
	env.clients = NewClientCustomizationService(env.docs, tenants, &memClientRepo{s: store}, baseRepo, clientRepo, env.generator, blobs, pool, nil, logger)
	env.jobs = NewConversionJobService(jobRepo, tenants, env.generator, blobs, logger)
	env.reads = NewArtifactService(env.docs, baseRepo, clientRepo, jobRepo, blobs, logger)
	env.monitor = NewMonitorService(env.settings, env.docs, baseRepo, env.poller, logger)
	return env
}

func (e *testEnv) addMemoTenant(name string, autoProcess bool) *models.Tenant {
	t := &models.Tenant{
		ID:          uuid.New(),
		Name:        name,
		OutputType:  models.OutputTypeMemoPDF,
		AutoProcess: autoProcess,
		Branding:    models.Branding{CompanyName: name + " Health"},
	}
	e.store.addTenant(t, cmsAgencyID)
	return t
}

func (e *testEnv) addClients(tenant *models.Tenant, names ...string) []*models.Client {
	tenant.HasClientRoster = true
	var out []*models.Client
	for _, n := range names {
		c := &models.Client{ID: uuid.New(), TenantID: tenant.ID, Name: n, Industry: "Hospital", IsActive: true}
		e.store.addClient(c)
		out = append(out, c)
	}
	return out
}

// storeDocument inserts a registry document and routes it.
func (e *testEnv) storeDocument(t *testing.T, externalID string) *models.RegulatoryDocument {
	t.Helper()
	doc := &models.RegulatoryDocument{
		Source:       models.DocumentSourceFederalRegister,
		ExternalID:   externalID,
		AgencyID:     cmsAgencyID,
		Title:        "Medicare Program; CY 2025 Payment Policies",
		PDFURL:       "https://www.govinfo.gov/content/pkg/FR-2024-01-18/pdf/" + externalID + ".pdf",
		Citation:     "89 FR 1234",
		DocumentType: "Rule",
	}
	inserted, err := e.docs.InsertIfAbsent(context.Background(), doc)
	require.NoError(t, err)
	require.True(t, inserted)
	_, err = e.router.RouteDocument(context.Background(), doc)
	require.NoError(t, err)
	return doc
}

func registryDoc(number string) registry.Document {
	return registry.Document{
		DocumentNumber:  number,
		Title:           "Medicare Program; Payment Update " + number,
		Type:            "Rule",
		PublicationDate: "2024-01-18",
		PDFURL:          "https://www.govinfo.gov/content/pkg/FR-2024-01-18/pdf/" + number + ".pdf",
		Agencies: []registry.DocumentAgency{
			{Name: "Centers for Medicare & Medicaid Services", Slug: "centers-for-medicare-medicaid-services"},
		},
	}
}

var errModelDown = errors.New("model unavailable")

// memoResponder answers every model call with sampleMemo.
func memoResponder(_ context.Context, req *llm.Request) (*llm.Response, error) {
	return &llm.Response{Content: sampleMemo, Model: req.Model, InputTokens: 1200, OutputTokens: 300}, nil
}

const sampleMemo = `# Medicare Payment Update

## Executive Summary
CMS finalized payment updates for calendar year 2025.

## Key Provisions
- Conversion factor increases by 2.9 percent
- New telehealth codes take effect January 1

## Recommended Actions
1. Review fee schedule impacts
2. Update billing systems`

// testPDF renders a one-page PDF containing text.
func testPDF(t *testing.T, text string) []byte {
	t.Helper()
	doc := fpdf.New("P", "mm", "Letter", "")
	doc.AddPage()
	doc.SetFont("Helvetica", "", 12)
	doc.MultiCell(0, 6, text, "", "L", false)
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}
