package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNoPrincipal is returned when a request context carries no usable claims.
var ErrNoPrincipal = errors.New("no authenticated principal in context")

// Principal is the caller behind a verified token. Conversion jobs belong to
// UserID; TenantID is uuid.Nil for users outside any tenant.
type Principal struct {
	UserID   string
	TenantID uuid.UUID
	Email    string
	Admin    bool
}

// InTenant reports whether p belongs to a tenant.
func (p Principal) InTenant() bool {
	return p.TenantID != uuid.Nil
}

// PrincipalFromContext resolves the caller from the claims set by the middleware.
// A token without a subject, or with a tenant claim that is not a UUID, is rejected.
func PrincipalFromContext(ctx context.Context) (Principal, error) {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return Principal{}, ErrNoPrincipal
	}
	if claims.Subject == "" {
		return Principal{}, fmt.Errorf("%w: token has no subject", ErrNoPrincipal)
	}

	p := Principal{
		UserID: claims.Subject,
		Email:  claims.Email,
		Admin:  claims.HasRole(RoleAdmin),
	}
	if claims.TenantID != "" {
		tenantID, err := uuid.Parse(claims.TenantID)
		if err != nil {
			return Principal{}, fmt.Errorf("%w: tenant claim %q: %v", ErrNoPrincipal, claims.TenantID, err)
		}
		p.TenantID = tenantID
	}
	return p, nil
}

// UserIDFromContext is the caller's subject, or "" when unauthenticated.
// Used for attribution in logs and selection records.
func UserIDFromContext(ctx context.Context) string {
	if claims, ok := GetClaims(ctx); ok && claims != nil {
		return claims.Subject
	}
	return ""
}
