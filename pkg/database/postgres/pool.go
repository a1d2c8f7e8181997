package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// PoolConfig holds connection configuration for both principals.
type PoolConfig struct {
	// RootURL is the DSN of the unrestricted principal. Used by root
	// handles, migrations, and the escalation audit store.
	RootURL string

	// AppURL is the DSN of the restricted principal subject to the
	// row-security policies. Used by every tenant-scoped handle.
	AppURL string

	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// PoolManager owns the per-principal connection pools. Pools are opened
// lazily on first use and live for the whole process, so every request
// reusing a principal shares one bounded pool instead of opening its own
// connections.
type PoolManager struct {
	config PoolConfig

	rootOnce sync.Once
	root     *sql.DB
	rootErr  error

	appOnce sync.Once
	app     *sql.DB
	appErr  error
}

// NewPoolManager creates a pool manager. No connections are opened until a
// principal's pool is first requested.
func NewPoolManager(config PoolConfig) *PoolManager {
	if config.MaxConns <= 0 {
		config.MaxConns = 20
	}
	if config.MinConns <= 0 {
		config.MinConns = 2
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &PoolManager{config: config}
}

// Root returns the unrestricted principal's pool, opening it on first use.
func (pm *PoolManager) Root(ctx context.Context) (*sql.DB, error) {
	pm.rootOnce.Do(func() {
		pm.root, pm.rootErr = pm.open(ctx, pm.config.RootURL, "root")
	})
	return pm.root, pm.rootErr
}

// App returns the restricted principal's pool, opening it on first use.
func (pm *PoolManager) App(ctx context.Context) (*sql.DB, error) {
	pm.appOnce.Do(func() {
		pm.app, pm.appErr = pm.open(ctx, pm.config.AppURL, "app")
	})
	return pm.app, pm.appErr
}

// open opens and verifies a pool for one principal.
func (pm *PoolManager) open(ctx context.Context, url, principal string) (*sql.DB, error) {
	if url == "" {
		return nil, fmt.Errorf("no DSN configured for %s principal", principal)
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s pool: %w", principal, err)
	}

	db.SetMaxOpenConns(pm.config.MaxConns)
	db.SetMaxIdleConns(pm.config.MinConns)
	db.SetConnMaxLifetime(pm.config.MaxLifetime)
	db.SetConnMaxIdleTime(pm.config.MaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, pm.config.Timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s pool: %w", principal, err)
	}

	return db, nil
}

// HealthCheck pings every pool that has been opened.
func (pm *PoolManager) HealthCheck(ctx context.Context) error {
	if pm.root != nil && pm.rootErr == nil {
		if err := pm.root.PingContext(ctx); err != nil {
			return fmt.Errorf("root pool unhealthy: %w", err)
		}
	}
	if pm.app != nil && pm.appErr == nil {
		if err := pm.app.PingContext(ctx); err != nil {
			return fmt.Errorf("app pool unhealthy: %w", err)
		}
	}
	return nil
}

// Stats returns pool statistics for pools that have been opened.
func (pm *PoolManager) Stats() map[string]sql.DBStats {
	stats := make(map[string]sql.DBStats)
	if pm.root != nil && pm.rootErr == nil {
		stats["root"] = pm.root.Stats()
	}
	if pm.app != nil && pm.appErr == nil {
		stats["app"] = pm.app.Stats()
	}
	return stats
}

// Close closes every opened pool.
func (pm *PoolManager) Close() error {
	var errs []error
	if pm.root != nil {
		if err := pm.root.Close(); err != nil {
			errs = append(errs, fmt.Errorf("root pool close error: %w", err))
		}
	}
	if pm.app != nil {
		if err := pm.app.Close(); err != nil {
			errs = append(errs, fmt.Errorf("app pool close error: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("pool close errors: %v", errs)
	}
	return nil
}
