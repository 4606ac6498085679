package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/auth"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/models"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/services"
)

// passthrough stands in for the database scope middleware.
func passthrough(next http.HandlerFunc) http.HandlerFunc { return next }

// mockAuthService accepts any request carrying "Bearer <token>" and returns claims.
type mockAuthService struct {
	claims *auth.Claims
}

func (m *mockAuthService) ValidateRequest(r *http.Request) (*auth.Claims, string, error) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" || m.claims == nil {
		return nil, "", errors.New("missing token")
	}
	return m.claims, token, nil
}

func (m *mockAuthService) RequireTenantID(claims *auth.Claims) error {
	if claims.TenantID == "" {
		return errors.New("missing tenant")
	}
	return nil
}

func (m *mockAuthService) ValidateTenantIDMatch(claims *auth.Claims, urlTenantID string) error {
	if urlTenantID != "" && urlTenantID != claims.TenantID {
		return errors.New("tenant mismatch")
	}
	return nil
}

type mockPoller struct {
	result *services.PollResult
	err    error
	calls  int
}

func (m *mockPoller) Poll(context.Context) (*services.PollResult, error) {
	m.calls++
	return m.result, m.err
}

type mockBaseGeneration struct {
	GenerateFunc   func(ctx context.Context, req services.GenerateBaseRequest) (*services.GenerateBaseResult, error)
	ApproveFunc    func(ctx context.Context, tenantID, outputID uuid.UUID) (*services.GenerateBaseResult, error)
	RetryFunc      func(ctx context.Context, tenantID, outputID uuid.UUID) (*services.GenerateBaseResult, error)
	RunPendingFunc func(ctx context.Context, limit int) (*services.RunPendingResult, error)
}

func (m *mockBaseGeneration) Generate(ctx context.Context, req services.GenerateBaseRequest) (*services.GenerateBaseResult, error) {
	return m.GenerateFunc(ctx, req)
}

func (m *mockBaseGeneration) Approve(ctx context.Context, tenantID, outputID uuid.UUID) (*services.GenerateBaseResult, error) {
	return m.ApproveFunc(ctx, tenantID, outputID)
}

func (m *mockBaseGeneration) Retry(ctx context.Context, tenantID, outputID uuid.UUID) (*services.GenerateBaseResult, error) {
	return m.RetryFunc(ctx, tenantID, outputID)
}

func (m *mockBaseGeneration) RunPending(ctx context.Context, limit int) (*services.RunPendingResult, error) {
	return m.RunPendingFunc(ctx, limit)
}

type mockClientCustomization struct {
	GenerateClientsFunc func(ctx context.Context, req services.GenerateClientsRequest) ([]services.ClientResult, error)
}

func (m *mockClientCustomization) GenerateClients(ctx context.Context, req services.GenerateClientsRequest) ([]services.ClientResult, error) {
	return m.GenerateClientsFunc(ctx, req)
}

func (m *mockClientCustomization) ListForDocument(context.Context, uuid.UUID, uuid.UUID) ([]*models.ClientOutput, error) {
	return nil, nil
}

type mockArtifacts struct {
	status   *services.DocumentStatus
	artifact *services.Artifact
	page     *services.DocumentPage
	listReq  services.ListDocumentsRequest
	err      error
}

func (m *mockArtifacts) ListDocuments(_ context.Context, req services.ListDocumentsRequest) (*services.DocumentPage, error) {
	m.listReq = req
	return m.page, m.err
}

func (m *mockArtifacts) DocumentStatus(context.Context, uuid.UUID, uuid.UUID) (*services.DocumentStatus, error) {
	return m.status, m.err
}

func (m *mockArtifacts) DownloadBase(context.Context, uuid.UUID, uuid.UUID) (*services.Artifact, error) {
	return m.artifact, m.err
}

func (m *mockArtifacts) DownloadClient(context.Context, uuid.UUID, uuid.UUID) (*services.Artifact, error) {
	return m.artifact, m.err
}

func (m *mockArtifacts) DownloadJob(context.Context, string, uuid.UUID) (*services.Artifact, error) {
	return m.artifact, m.err
}

type mockJobs struct {
	SubmitFunc  func(ctx context.Context, req services.SubmitJobRequest) (*models.ConversionJob, error)
	next        *models.ConversionJob
	jobs        []*models.ConversionJob
	err         error
	listedLimit int
}

func (m *mockJobs) Submit(ctx context.Context, req services.SubmitJobRequest) (*models.ConversionJob, error) {
	return m.SubmitFunc(ctx, req)
}

func (m *mockJobs) ProcessNext(context.Context) (*models.ConversionJob, error) {
	return m.next, m.err
}

func (m *mockJobs) Get(_ context.Context, _ string, jobID uuid.UUID) (*models.ConversionJob, error) {
	for _, j := range m.jobs {
		if j.ID == jobID {
			return j, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockJobs) ListForUser(_ context.Context, _ string, limit int) ([]*models.ConversionJob, error) {
	m.listedLimit = limit
	return m.jobs, m.err
}

type mockMonitor struct {
	status    *services.MonitorStatus
	settings  *models.MonitorSettings
	poll      *services.PollResult
	reset     int64
	err       error
	lastPatch *models.MonitorSettingsUpdate
}

func (m *mockMonitor) Status(context.Context) (*services.MonitorStatus, error) {
	return m.status, m.err
}

func (m *mockMonitor) UpdateSettings(_ context.Context, u *models.MonitorSettingsUpdate) (*models.MonitorSettings, error) {
	m.lastPatch = u
	return m.settings, m.err
}

func (m *mockMonitor) CheckNow(context.Context) (*services.PollResult, error) {
	return m.poll, m.err
}

func (m *mockMonitor) Reprocess(context.Context, uuid.UUID) (int64, error) {
	return m.reset, m.err
}

var (
	_ auth.AuthService                    = (*mockAuthService)(nil)
	_ services.PollerService              = (*mockPoller)(nil)
	_ services.BaseGenerationService      = (*mockBaseGeneration)(nil)
	_ services.ClientCustomizationService = (*mockClientCustomization)(nil)
	_ services.ArtifactService            = (*mockArtifacts)(nil)
	_ services.ConversionJobService       = (*mockJobs)(nil)
	_ services.MonitorService             = (*mockMonitor)(nil)
)
