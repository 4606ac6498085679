package database

import (
	"context"

	"github.com/google/uuid"
)

type scopeKey struct{}

// GetTenantScope returns the connection scope stored in ctx, if any.
func GetTenantScope(ctx context.Context) (*TenantScope, bool) {
	scope, ok := ctx.Value(scopeKey{}).(*TenantScope)
	return scope, ok && scope != nil
}

// SetTenantScope returns a child of ctx that carries scope.
func SetTenantScope(ctx context.Context, scope *TenantScope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// ScopeProvider hands out scoped contexts to background work that has no request
// middleware, such as the parallel client customization workers.
type ScopeProvider struct {
	db *DB
}

// NewScopeProvider creates a ScopeProvider for the given database.
func NewScopeProvider(db *DB) *ScopeProvider {
	return &ScopeProvider{db: db}
}

// WithTenantScope returns a context carrying its own connection for tenantID.
// uuid.Nil yields an untagged cross-tenant connection.
// The cleanup function must be called when the scope is no longer needed.
func (p *ScopeProvider) WithTenantScope(ctx context.Context, tenantID uuid.UUID) (context.Context, func(), error) {
	acquire := p.db.WithTenant
	if tenantID == uuid.Nil {
		acquire = func(ctx context.Context, _ uuid.UUID) (*TenantScope, error) { return p.db.WithoutTenant(ctx) }
	}
	scope, err := acquire(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	return SetTenantScope(ctx, scope), scope.Close, nil
}
