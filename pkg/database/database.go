package database

import (
	"context"
	"database/sql"
	"errors"
)

// Common contract errors.
var (
	// ErrEmptyReason is returned when UpgradeToRoot is called without an
	// audit reason. Escalation without a recorded reason is a programming
	// error and fails loudly.
	ErrEmptyReason = errors.New("escalation reason must not be empty")

	// ErrClosed is returned when a statement is issued on a closed handle.
	ErrClosed = errors.New("database handle is closed")
)

// TenantDB is the uniform statement surface used by every repository. A
// handle is constructed either scoped to one organization or unrestricted.
//
// Implementations acquire a physical connection lazily on first use and hold
// it until Close, so that session state (the tenant session variable on the
// Postgres backend) survives across statements and transactions.
type TenantDB interface {
	// QueryContext runs a query returning rows. Single-row reads go
	// through QueryContext as well so that lazy connection acquisition
	// failures surface as ordinary errors.
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)

	// ExecContext runs a statement returning no rows.
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)

	// Tx runs fn inside a transaction on the handle's single connection.
	// fn returning an error rolls the whole transaction back.
	Tx(ctx context.Context, fn func(tx *sql.Tx) error) error

	// OrgID returns the organization this handle is scoped to, or the
	// empty string for an unrestricted handle.
	OrgID() string

	// IsRoot reports whether the handle is unrestricted.
	IsRoot() bool

	// UpgradeToRoot returns a new unrestricted handle. The receiver keeps
	// its original tenant scope; an in-flight transaction on it is
	// unaffected. The reason is recorded for audit and must not be empty.
	UpgradeToRoot(ctx context.Context, reason string) (TenantDB, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the handle's connection back to its pool.
	Close() error
}

// Provider constructs tenant handles. orgID present yields a tenant-scoped
// handle, absent (empty string) an unrestricted one. This is the
// context-construction entry point handed to the API layer.
type Provider interface {
	Open(orgID string) TenantDB
	Close() error
}
