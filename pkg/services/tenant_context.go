package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/database"
)

// TenantContextFunc acquires a tenant-scoped database connection.
// Returns the scoped context, a cleanup function (MUST be called), and any error.
type TenantContextFunc func(ctx context.Context, tenantID uuid.UUID) (context.Context, func(), error)

// NewTenantContextFunc acquires scopes through a database.ScopeProvider.
func NewTenantContextFunc(db *database.DB) TenantContextFunc {
	return database.NewScopeProvider(db).WithTenantScope
}

// withTenantScope runs fn on its own scoped connection and releases it afterwards.
// A nil acquire runs fn on ctx unchanged.
func withTenantScope[T any](ctx context.Context, acquire TenantContextFunc, tenantID uuid.UUID, fn func(ctx context.Context) (T, error)) (T, error) {
	if acquire == nil {
		return fn(ctx)
	}
	scoped, cleanup, err := acquire(ctx, tenantID)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("failed to acquire tenant connection: %w", err)
	}
	defer cleanup()
	return fn(scoped)
}
