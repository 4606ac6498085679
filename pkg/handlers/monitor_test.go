package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/auth"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/models"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/services"
)

func setupMonitor(t *testing.T, monitor *mockMonitor, roles ...string) *http.ServeMux {
	t.Helper()
	claims := &auth.Claims{Roles: roles}
	claims.Subject = "admin-1"
	mux := http.NewServeMux()
	authMiddleware := auth.NewMiddleware(&mockAuthService{claims: claims}, zap.NewNop())
	NewMonitorHandler(monitor, zap.NewNop()).RegisterRoutes(mux, authMiddleware, passthrough)
	return mux
}

func adminRequest(method, path string, body []byte) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer token")
	return req
}

func TestMonitor_RequiresAdminRole(t *testing.T) {
	mux := setupMonitor(t, &mockMonitor{status: &services.MonitorStatus{}}, "analyst")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, adminRequest(http.MethodGet, "/api/admin/monitor/status", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMonitor_Status(t *testing.T) {
	monitor := &mockMonitor{status: &services.MonitorStatus{
		Settings:        &models.MonitorSettings{IsEnabled: true, PollIntervalMinutes: 15},
		TotalDocuments:  42,
		DocumentsLast24: 3,
	}}
	mux := setupMonitor(t, monitor, auth.RoleAdmin)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, adminRequest(http.MethodGet, "/api/admin/monitor/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp services.MonitorStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 42, resp.TotalDocuments)
	assert.Equal(t, 3, resp.DocumentsLast24)
}

func TestMonitor_UpdateSettings(t *testing.T) {
	monitor := &mockMonitor{settings: &models.MonitorSettings{PollIntervalMinutes: 30}}
	mux := setupMonitor(t, monitor, auth.RoleAdmin)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, adminRequest(http.MethodPatch, "/api/admin/monitor/settings", []byte(`{"poll_interval_minutes": 30}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, monitor.lastPatch)
	require.NotNil(t, monitor.lastPatch.PollIntervalMinutes)
	assert.Equal(t, 30, *monitor.lastPatch.PollIntervalMinutes)
	assert.Nil(t, monitor.lastPatch.IsEnabled)
}

func TestMonitor_UpdateSettingsInvalid(t *testing.T) {
	monitor := &mockMonitor{err: fmt.Errorf("%w: poll_interval_minutes must be between 1 and 1440", apperrors.ErrInvalidInput)}
	mux := setupMonitor(t, monitor, auth.RoleAdmin)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, adminRequest(http.MethodPatch, "/api/admin/monitor/settings", []byte(`{"poll_interval_minutes": 0}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "invalid_parameters", body["error"])
	assert.Contains(t, body["message"], "poll_interval_minutes")
}

func TestMonitor_CheckNowAndReprocess(t *testing.T) {
	monitor := &mockMonitor{poll: &services.PollResult{NewDocuments: 2}, reset: 3}
	mux := setupMonitor(t, monitor, auth.RoleAdmin)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, adminRequest(http.MethodPost, "/api/admin/monitor/check-now", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	docID := uuid.New()
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, adminRequest(http.MethodPost, "/api/admin/documents/"+docID.String()+"/reprocess", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp reprocessResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, docID.String(), resp.DocumentID)
	assert.Equal(t, int64(3), resp.OutputsReset)
}
