package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-signing-secret"

func signToken(t *testing.T, claims *Claims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func newTestMiddleware() *Middleware {
	svc := NewAuthService(ServiceConfig{EnableVerification: true, Secret: testSecret}, zap.NewNop())
	return NewMiddleware(svc, zap.NewNop())
}

func validClaims(tenantID string, roles ...string) *Claims {
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		TenantID: tenantID,
		Roles:    roles,
	}
}

func TestRequireAuthWithPathValidation(t *testing.T) {
	m := newTestMiddleware()
	tenantID := "11111111-1111-1111-1111-111111111111"

	var gotClaims *Claims
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tenants/{tid}/ping", m.RequireAuthWithPathValidation("tid")(func(w http.ResponseWriter, r *http.Request) {
		gotClaims, _ = GetClaims(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/tenants/"+tenantID+"/ping", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, validClaims(tenantID), testSecret))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, gotClaims)
		assert.Equal(t, "user-1", gotClaims.Subject)
	})

	t.Run("tenant mismatch", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/tenants/"+tenantID+"/ping", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, validClaims("22222222-2222-2222-2222-222222222222"), testSecret))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("wrong signature", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/tenants/"+tenantID+"/ping", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, validClaims(tenantID), "other-secret"))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/tenants/"+tenantID+"/ping", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireRole(t *testing.T) {
	m := newTestMiddleware()
	handler := m.RequireRole(RoleAdmin)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/monitor/status", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, validClaims("", RoleAdmin), testSecret))
	rec := httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/monitor/status", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, validClaims(""), testSecret))
	rec = httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireCronSecret(t *testing.T) {
	m := newTestMiddleware()
	called := false
	handler := m.RequireCronSecret("s3cret")(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/cron/check-sources", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called, "handler must not run without the secret")

	req = httptest.NewRequest(http.MethodPost, "/api/cron/check-sources", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestValidateToken_VerificationDisabled(t *testing.T) {
	svc := NewAuthService(ServiceConfig{EnableVerification: false}, zap.NewNop()).(*authService)
	token := signToken(t, validClaims("33333333-3333-3333-3333-333333333333"), "anything")

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "33333333-3333-3333-3333-333333333333", claims.TenantID)
}
