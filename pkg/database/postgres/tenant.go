package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/gatehouse-auth/gatehouse/pkg/audit"
	"github.com/gatehouse-auth/gatehouse/pkg/database"
)

// orgSetting is the session variable the row-security policies key on.
const orgSetting = "gatehouse.current_org_id"

// Conn is a tenant handle over the Postgres backend. It implements
// database.TenantDB. The physical connection is acquired lazily: a handle
// scoped to an organization checks a connection out of the restricted pool
// and binds the session variable before its first statement runs; an
// unrestricted handle checks out of the root pool and binds nothing.
type Conn struct {
	pools   *PoolManager
	auditor *audit.Recorder
	orgID   string

	mu     sync.Mutex
	conn   *sql.Conn
	closed bool
}

// Provider constructs Postgres tenant handles. It implements
// database.Provider.
type Provider struct {
	pools   *PoolManager
	auditor *audit.Recorder
}

// NewProvider creates a provider over the given pools. auditor may be nil
// when escalation auditing is handled elsewhere.
func NewProvider(pools *PoolManager, auditor *audit.Recorder) *Provider {
	return &Provider{pools: pools, auditor: auditor}
}

// Open returns a handle scoped to orgID, or an unrestricted handle when
// orgID is empty. No connection is acquired yet.
func (p *Provider) Open(orgID string) database.TenantDB {
	return &Conn{pools: p.pools, auditor: p.auditor, orgID: orgID}
}

// Close closes the underlying pools.
func (p *Provider) Close() error {
	return p.pools.Close()
}

// acquire checks out the handle's connection on first use and binds the
// tenant session variable for scoped handles.
func (c *Conn) acquire(ctx context.Context) (*sql.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, database.ErrClosed
	}
	if c.conn != nil {
		return c.conn, nil
	}

	var pool *sql.DB
	var err error
	if c.orgID == "" {
		pool, err = c.pools.Root(ctx)
	} else {
		pool, err = c.pools.App(ctx)
	}
	if err != nil {
		return nil, err
	}

	conn, err := pool.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	if c.orgID != "" {
		if _, err := conn.ExecContext(ctx, `SELECT set_config($1, $2, false)`, orgSetting, c.orgID); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to bind tenant session variable: %w", err)
		}
	}

	c.conn = conn
	return conn, nil
}

// QueryContext runs a query returning rows.
func (c *Conn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	conn, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	return conn.QueryContext(ctx, query, args...)
}

// ExecContext runs a statement returning no rows.
func (c *Conn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	conn, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	return conn.ExecContext(ctx, query, args...)
}

// Tx runs fn inside a transaction on the handle's pinned connection, so the
// tenant session variable applies to every statement in the transaction.
func (c *Conn) Tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	conn, err := c.acquire(ctx)
	if err != nil {
		return err
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// OrgID returns the organization this handle is scoped to, or empty.
func (c *Conn) OrgID() string {
	return c.orgID
}

// IsRoot reports whether the handle is unrestricted.
func (c *Conn) IsRoot() bool {
	return c.orgID == ""
}

// UpgradeToRoot returns a new unrestricted handle backed by the root
// principal. The receiver keeps its tenant scope and its connection; an
// in-flight transaction on it is untouched.
func (c *Conn) UpgradeToRoot(ctx context.Context, reason string) (database.TenantDB, error) {
	if reason == "" {
		return nil, database.ErrEmptyReason
	}

	if c.auditor != nil {
		c.auditor.Record(ctx, audit.EscalationEvent{
			OrgID:   c.orgID,
			Backend: "postgres",
			Reason:  reason,
		})
	}

	return &Conn{pools: c.pools, auditor: c.auditor}, nil
}

// Ping verifies the backend is reachable for this handle's principal.
func (c *Conn) Ping(ctx context.Context) error {
	var pool *sql.DB
	var err error
	if c.orgID == "" {
		pool, err = c.pools.Root(ctx)
	} else {
		pool, err = c.pools.App(ctx)
	}
	if err != nil {
		return err
	}
	return pool.PingContext(ctx)
}

// Close releases the pinned connection back to its pool. The session
// variable is reset first so a reused connection cannot leak the previous
// tenant's scope.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.conn == nil {
		return nil
	}

	if c.orgID != "" {
		_, _ = c.conn.ExecContext(context.Background(), `SELECT set_config($1, '', false)`, orgSetting)
	}

	err := c.conn.Close()
	c.conn = nil
	return err
}
