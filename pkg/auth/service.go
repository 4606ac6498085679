package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Common authentication errors.
var (
	ErrMissingAuthorization = errors.New("missing authorization")
	ErrInvalidAuthFormat    = errors.New("invalid authorization header format")
	ErrMissingTenantID      = errors.New("missing tenant ID in token")
	ErrTenantIDMismatch     = errors.New("tenant ID mismatch between token and URL")
)

// AuthService defines the interface for authentication operations.
type AuthService interface {
	// ValidateRequest extracts the bearer token from the Authorization header and validates it.
	// Returns the validated claims, the raw token string, or an error.
	ValidateRequest(r *http.Request) (*Claims, string, error)

	// RequireTenantID validates that the claims contain a tenant ID.
	RequireTenantID(claims *Claims) error

	// ValidateTenantIDMatch ensures the URL tenant ID matches the token tenant ID.
	// If urlTenantID is empty, validation is skipped.
	ValidateTenantIDMatch(claims *Claims, urlTenantID string) error
}

// ServiceConfig configures token verification.
type ServiceConfig struct {
	EnableVerification bool
	Secret             string
	Issuer             string
}

type authService struct {
	cfg    ServiceConfig
	parser *jwt.Parser
	logger *zap.Logger
}

// NewAuthService creates a new AuthService.
// With verification disabled, token signatures are not checked (local development only).
func NewAuthService(cfg ServiceConfig, logger *zap.Logger) AuthService {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &authService{
		cfg:    cfg,
		parser: jwt.NewParser(opts...),
		logger: logger,
	}
}

// Ensure authService implements AuthService at compile time.
var _ AuthService = (*authService)(nil)

// ValidateRequest extracts and validates a JWT from the request.
func (s *authService) ValidateRequest(r *http.Request) (*Claims, string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		s.logger.Debug("No JWT found in request",
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method))
		return nil, "", ErrMissingAuthorization
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		s.logger.Debug("Invalid Authorization header format", zap.String("path", r.URL.Path))
		return nil, "", ErrInvalidAuthFormat
	}
	tokenString := parts[1]

	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		s.logger.Debug("JWT validation failed",
			zap.Error(err),
			zap.String("path", r.URL.Path))
		return nil, "", err
	}

	return claims, tokenString, nil
}

// ValidateToken parses tokenString and returns its claims.
func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if !s.cfg.EnableVerification {
		if _, _, err := s.parser.ParseUnverified(tokenString, claims); err != nil {
			return nil, fmt.Errorf("parse token: %w", err)
		}
		return claims, nil
	}

	_, err := s.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return []byte(s.cfg.Secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("validate token: %w", err)
	}
	return claims, nil
}

// RequireTenantID validates that the claims contain a tenant ID.
func (s *authService) RequireTenantID(claims *Claims) error {
	if claims.TenantID == "" {
		return ErrMissingTenantID
	}
	return nil
}

// ValidateTenantIDMatch ensures the URL tenant ID matches the token tenant ID.
func (s *authService) ValidateTenantIDMatch(claims *Claims, urlTenantID string) error {
	if urlTenantID != "" && claims.TenantID != urlTenantID {
		s.logger.Warn("Tenant ID mismatch",
			zap.String("url_tenant_id", urlTenantID),
			zap.String("token_tenant_id", claims.TenantID))
		return ErrTenantIDMismatch
	}
	return nil
}
