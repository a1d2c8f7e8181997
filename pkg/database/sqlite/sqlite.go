package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/gatehouse-auth/gatehouse/pkg/audit"
	"github.com/gatehouse-auth/gatehouse/pkg/database"
)

// Provider constructs SQLite tenant handles over one shared database file.
// It implements database.Provider.
type Provider struct {
	db      *sql.DB
	auditor *audit.Recorder
}

// Open opens (or creates) the database at path and returns a provider.
// ":memory:" opens an in-memory database. Foreign keys are switched on so
// the schema's ON DELETE CASCADE clauses take effect.
func Open(path string, auditor *audit.Recorder) (*Provider, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := path + "?_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// An in-memory database exists per connection; pin the pool to one
	// connection so every handle sees the same data. File databases keep
	// a single writer as well, which sidesteps SQLITE_BUSY under
	// concurrent writes.
	if strings.Contains(path, ":memory:") {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	return &Provider{db: db, auditor: auditor}, nil
}

// DB exposes the underlying pool for migrations and the audit store.
func (p *Provider) DB() *sql.DB {
	return p.db
}

// SetAuditor installs the escalation recorder after migrations have created
// its table. Handles opened earlier keep a nil auditor.
func (p *Provider) SetAuditor(auditor *audit.Recorder) {
	p.auditor = auditor
}

// Open returns a handle scoped to orgID, or an unrestricted handle when
// orgID is empty.
func (p *Provider) Open(orgID string) database.TenantDB {
	return &Conn{db: p.db, auditor: p.auditor, orgID: orgID}
}

// Close closes the database.
func (p *Provider) Close() error {
	return p.db.Close()
}

// Conn is a tenant handle over the embedded backend. It implements
// database.TenantDB. All statements share the provider's pool; the orgID is
// carried for the repositories, which filter explicitly.
type Conn struct {
	db      *sql.DB
	auditor *audit.Recorder
	orgID   string
}

// QueryContext runs a query returning rows.
func (c *Conn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, query, args...)
}

// ExecContext runs a statement returning no rows.
func (c *Conn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.db.ExecContext(ctx, query, args...)
}

// Tx runs fn inside a transaction.
func (c *Conn) Tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
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

// UpgradeToRoot returns a new unrestricted handle. The receiver is
// unchanged.
func (c *Conn) UpgradeToRoot(ctx context.Context, reason string) (database.TenantDB, error) {
	if reason == "" {
		return nil, database.ErrEmptyReason
	}

	if c.auditor != nil {
		c.auditor.Record(ctx, audit.EscalationEvent{
			OrgID:   c.orgID,
			Backend: "sqlite",
			Reason:  reason,
		})
	}

	return &Conn{db: c.db, auditor: c.auditor}, nil
}

// Ping verifies the database is reachable.
func (c *Conn) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to the provider.
func (c *Conn) Close() error {
	return nil
}
