// Package observability provides structured logging, Prometheus metrics,
// and health checks for the authorization core.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("org_id", orgID).Info("tenant context opened")
//
// # Prometheus Metrics
//
// Initialize metrics:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.QueriesTotal.WithLabelValues("postgres", "query", "ok").Inc()
//
// # Health Checks
//
// Configure health checker:
//
//	checker := observability.NewHealthChecker(db)
//	status := checker.Check(ctx)
//
// # Related Packages
//
//   - pkg/config: Runtime configuration
//   - pkg/database: Backends whose handles the health checker pings
package observability
