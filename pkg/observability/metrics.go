package observability

import (
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Repository metrics
	QueriesTotal   *prometheus.CounterVec
	QueryDuration  *prometheus.HistogramVec
	QueryErrorsTotal *prometheus.CounterVec

	// Tenant context metrics
	TenantContextsOpen  *prometheus.GaugeVec
	EscalationsTotal    *prometheus.CounterVec

	// Permission engine metrics
	ResolutionsTotal    *prometheus.CounterVec
	ResolutionDuration  prometheus.Histogram

	// Connection pool metrics
	DBConnectionsActive       *prometheus.GaugeVec
	DBConnectionsIdle         *prometheus.GaugeVec
	DBConnectionsWaitCount    *prometheus.GaugeVec
	DBConnectionsWaitDuration *prometheus.GaugeVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_queries_total",
				Help: "Total number of repository queries",
			},
			[]string{"backend", "operation", "status"},
		),
		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gatehouse_query_duration_seconds",
				Help:    "Repository query duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend", "operation"},
		),
		QueryErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_query_errors_total",
				Help: "Total number of repository query errors",
			},
			[]string{"backend", "operation", "error_kind"},
		),

		TenantContextsOpen: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gatehouse_tenant_contexts_open",
				Help: "Number of open tenant database contexts",
			},
			[]string{"backend", "principal"},
		),
		EscalationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_escalations_total",
				Help: "Total number of root escalations",
			},
			[]string{"backend"},
		),

		ResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_permission_resolutions_total",
				Help: "Total number of effective-permission resolutions",
			},
			[]string{"result"},
		),
		ResolutionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gatehouse_permission_resolution_duration_seconds",
				Help:    "Effective-permission resolution duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),

		DBConnectionsActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gatehouse_db_connections_active",
				Help: "Number of active database connections",
			},
			[]string{"principal"},
		),
		DBConnectionsIdle: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gatehouse_db_connections_idle",
				Help: "Number of idle database connections",
			},
			[]string{"principal"},
		),
		DBConnectionsWaitCount: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gatehouse_db_connections_wait_count",
				Help: "Total number of connections waited for",
			},
			[]string{"principal"},
		),
		DBConnectionsWaitDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gatehouse_db_connections_wait_duration_seconds",
				Help: "Total time spent waiting for connections",
			},
			[]string{"principal"},
		),
	}

	registry.MustRegister(
		m.QueriesTotal,
		m.QueryDuration,
		m.QueryErrorsTotal,
		m.TenantContextsOpen,
		m.EscalationsTotal,
		m.ResolutionsTotal,
		m.ResolutionDuration,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.DBConnectionsWaitCount,
		m.DBConnectionsWaitDuration,
	)

	return m
}

// ObservePoolStats pushes one principal's sql.DBStats snapshot into the pool
// gauges.
func (m *Metrics) ObservePoolStats(principal string, stats sql.DBStats) {
	m.DBConnectionsActive.WithLabelValues(principal).Set(float64(stats.InUse))
	m.DBConnectionsIdle.WithLabelValues(principal).Set(float64(stats.Idle))
	m.DBConnectionsWaitCount.WithLabelValues(principal).Set(float64(stats.WaitCount))
	m.DBConnectionsWaitDuration.WithLabelValues(principal).Set(stats.WaitDuration.Seconds())
}

// MetricsHandler returns the /metrics handler for the registry.
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
