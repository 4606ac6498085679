package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// tenantSetting tags a session with the tenant it serves. Read it back with
// current_setting('regwatch.tenant_id', true).
const tenantSetting = "regwatch.tenant_id"

// TenantScope is one pooled connection held for a unit of work.
// A connection is not safe for concurrent use; parallel workers acquire their own scope.
type TenantScope struct {
	Conn     *pgxpool.Conn
	TenantID uuid.UUID // uuid.Nil for cross-tenant pipeline work
}

// Close clears the tenant tag and returns the connection to the pool.
// It MUST be called, or the tag leaks to the next borrower.
func (s *TenantScope) Close() {
	if s.Conn == nil {
		return
	}
	if s.TenantID != uuid.Nil {
		_, _ = s.Conn.Exec(context.Background(), "SELECT set_config($1, '', false)", tenantSetting)
	}
	s.Conn.Release()
	s.Conn = nil
}

// WithTenant acquires a connection tagged with tenantID.
func (db *DB) WithTenant(ctx context.Context, tenantID uuid.UUID) (*TenantScope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT set_config($1, $2, false)", tenantSetting, tenantID.String()); err != nil {
		conn.Release()
		return nil, fmt.Errorf("tag connection with tenant %s: %w", tenantID, err)
	}

	return &TenantScope{Conn: conn, TenantID: tenantID}, nil
}

// WithoutTenant acquires an untagged connection for work that spans tenants:
// the poller, the router and the cron triggers.
func (db *DB) WithoutTenant(ctx context.Context) (*TenantScope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return &TenantScope{Conn: conn}, nil
}
