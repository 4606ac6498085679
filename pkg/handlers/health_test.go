package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/config"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/database"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthHandler_Health(t *testing.T) {
	tests := []struct {
		name         string
		db           Pinger
		wantStatus   int
		wantBody     string
		wantDatabase string
	}{
		{name: "no database", db: nil, wantStatus: http.StatusOK, wantBody: "ok"},
		{name: "database up", db: stubPinger{}, wantStatus: http.StatusOK, wantBody: "ok", wantDatabase: "ok"},
		{name: "database down", db: stubPinger{err: errors.New("dial tcp: refused")}, wantStatus: http.StatusServiceUnavailable, wantBody: "degraded", wantDatabase: "unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(&config.Config{}, tt.db, zap.NewNop())
			rec := httptest.NewRecorder()

			handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var resp HealthResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.wantBody, resp.Status)
			assert.Equal(t, tt.wantDatabase, resp.Database)
		})
	}
}

type statsPinger struct{ stubPinger }

func (statsPinger) PoolStats() database.PoolStats {
	return database.PoolStats{Total: 4, Idle: 3, InUse: 1, Max: 25}
}

func TestHealthHandler_ReportsPoolStats(t *testing.T) {
	handler := NewHealthHandler(&config.Config{}, statsPinger{}, zap.NewNop())
	rec := httptest.NewRecorder()

	handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Pool)
	assert.Equal(t, int32(1), resp.Pool.InUse)
	assert.Equal(t, int32(25), resp.Pool.Max)
}

func TestHealthHandler_Ping(t *testing.T) {
	cfg := &config.Config{Version: "1.2.3", Env: "test"}
	mux := http.NewServeMux()
	NewHealthHandler(cfg, nil, zap.NewNop()).RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp PingResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, "ekaya-regwatch", resp.Service)
	assert.Equal(t, "test", resp.Environment)
	assert.NotEmpty(t, resp.GoVersion)
}
