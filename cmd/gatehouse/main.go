package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/gatehouse-auth/gatehouse/pkg/audit"
	"github.com/gatehouse-auth/gatehouse/pkg/config"
	"github.com/gatehouse-auth/gatehouse/pkg/database"
	dbpostgres "github.com/gatehouse-auth/gatehouse/pkg/database/postgres"
	dbsqlite "github.com/gatehouse-auth/gatehouse/pkg/database/sqlite"
	"github.com/gatehouse-auth/gatehouse/pkg/httputil"
	"github.com/gatehouse-auth/gatehouse/pkg/observability"
	"github.com/gatehouse-auth/gatehouse/pkg/permissions"
	"github.com/gatehouse-auth/gatehouse/pkg/repository"
	repopostgres "github.com/gatehouse-auth/gatehouse/pkg/repository/postgres"
	reposqlite "github.com/gatehouse-auth/gatehouse/pkg/repository/sqlite"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.LogLevel(), os.Stdout)
	logger.WithField("backend", cfg.Storage.Backend).Info("starting gatehouse")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	auditLog := logrus.New()
	auditLog.SetFormatter(&logrus.JSONFormatter{})

	provider, pools, err := openBackend(ctx, cfg, auditLog)
	if err != nil {
		log.Fatalf("Failed to open storage backend: %v", err)
	}
	defer provider.Close()

	// Root handle for health checks and engine wiring examples; request
	// handling in the API layer opens per-tenant handles.
	rootHandle := provider.Open("")
	defer rootHandle.Close()

	repos := buildRepositories(cfg.Storage.Backend, rootHandle)
	_ = permissions.NewEngine(repos)
	logger.Info("repositories and permission engine ready")

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	checker := observability.NewHealthChecker(cfg.Storage.Backend, rootHandle)

	router := mux.NewRouter()
	router.HandleFunc("/health", checker.Readiness).Methods(http.MethodGet)
	router.HandleFunc("/health/live", checker.Liveness).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", checker.Readiness).Methods(http.MethodGet)
	if metrics != nil {
		router.Handle("/metrics", observability.MetricsHandler(registry)).Methods(http.MethodGet)
	}

	handler := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware(logger),
		httputil.LoggingMiddleware(logger),
	)(router)

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithField("addr", server.Addr).Info("health/metrics listener started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if metrics != nil && pools != nil {
		g.Go(func() error {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					for principal, stats := range pools.Stats() {
						metrics.ObservePoolStats(principal, stats)
					}
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	logger.Info("stopped")
}

// openBackend constructs the configured storage backend, runs its
// migrations, and returns the tenant provider. The pool manager is non-nil
// only for postgres.
func openBackend(ctx context.Context, cfg *config.Config, auditLog *logrus.Logger) (database.Provider, *dbpostgres.PoolManager, error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		pools := dbpostgres.NewPoolManager(dbpostgres.PoolConfig{
			RootURL:     cfg.Storage.PostgresRootURL,
			AppURL:      cfg.Storage.PostgresAppURL,
			MaxConns:    cfg.Storage.PostgresMaxConns,
			MinConns:    cfg.Storage.PostgresMinConns,
			Timeout:     cfg.Storage.PostgresTimeout,
			MaxLifetime: cfg.Storage.PostgresMaxLifetime,
			MaxIdleTime: cfg.Storage.PostgresMaxIdleTime,
		})

		rootPool, err := pools.Root(ctx)
		if err != nil {
			return nil, nil, err
		}
		if err := dbpostgres.RunMigrations(ctx, rootPool, cfg.Storage.PostgresAppRole); err != nil {
			return nil, nil, err
		}

		auditor, err := audit.NewDBRecorder(auditLog, rootPool, "postgres")
		if err != nil {
			return nil, nil, err
		}
		return dbpostgres.NewProvider(pools, auditor), pools, nil

	case config.BackendSQLite:
		provider, err := dbsqlite.Open(cfg.Storage.SQLitePath, nil)
		if err != nil {
			return nil, nil, err
		}
		if err := dbsqlite.RunMigrations(ctx, provider.DB()); err != nil {
			provider.Close()
			return nil, nil, err
		}

		auditor, err := audit.NewDBRecorder(auditLog, provider.DB(), "sqlite")
		if err != nil {
			provider.Close()
			return nil, nil, err
		}
		provider.SetAuditor(auditor)
		return provider, nil, nil
	}

	return nil, nil, errors.New("unknown storage backend")
}

func buildRepositories(backend string, db database.TenantDB) *repository.Repositories {
	if backend == config.BackendPostgres {
		return repopostgres.New(db)
	}
	return reposqlite.New(db)
}
