package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Storage metrics
	StorageOperationsTotal   *prometheus.CounterVec
	StorageOperationDuration *prometheus.HistogramVec

	// Audit writer metrics
	AuditWritesTotal   *prometheus.CounterVec
	AuditWriteFailures *prometheus.CounterVec
	AuditWriteDuration prometheus.Histogram
	AuditBreakerOpen   prometheus.Gauge
	AuditEventsTotal   prometheus.Gauge
	AuditEventsToday   prometheus.Gauge

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsIdle  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "softwarehub_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "softwarehub_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "softwarehub_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "route"},
		),

		StorageOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "softwarehub_storage_operations_total",
				Help: "Total number of storage operations",
			},
			[]string{"store", "operation", "status"},
		),
		StorageOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "softwarehub_storage_operation_duration_seconds",
				Help:    "Storage operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"store", "operation"},
		),

		AuditWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "softwarehub_audit_writes_total",
				Help: "Audit events persisted, by event type",
			},
			[]string{"type"},
		),
		AuditWriteFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "softwarehub_audit_write_failures_total",
				Help: "Audit writes that were swallowed, by reason",
			},
			[]string{"reason"},
		),
		AuditWriteDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "softwarehub_audit_write_duration_seconds",
				Help:    "Audit store append duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
			},
		),
		AuditBreakerOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "softwarehub_audit_breaker_open",
				Help: "1 when the audit write circuit breaker is open",
			},
		),
		AuditEventsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "softwarehub_audit_events_total",
				Help: "Number of audit events in the log",
			},
		),
		AuditEventsToday: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "softwarehub_audit_events_today",
				Help: "Number of audit events since local midnight",
			},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "softwarehub_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "softwarehub_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache"},
		),

		DBConnectionsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "softwarehub_db_connections_open",
				Help: "Number of open database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "softwarehub_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		DBConnectionsInUse: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "softwarehub_db_connections_in_use",
				Help: "Number of database connections in use",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.StorageOperationsTotal,
		m.StorageOperationDuration,
		m.AuditWritesTotal,
		m.AuditWriteFailures,
		m.AuditWriteDuration,
		m.AuditBreakerOpen,
		m.AuditEventsTotal,
		m.AuditEventsToday,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DBConnectionsOpen,
		m.DBConnectionsIdle,
		m.DBConnectionsInUse,
	)

	return m
}

// ObserveStorage records one storage operation
func (m *Metrics) ObserveStorage(store, operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.StorageOperationsTotal.WithLabelValues(store, operation, status).Inc()
	m.StorageOperationDuration.WithLabelValues(store, operation).Observe(time.Since(start).Seconds())
}

// RecordDBStats copies the pool statistics into the database gauges
func (m *Metrics) RecordDBStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
	m.DBConnectionsInUse.Set(float64(stats.InUse))
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeLabel returns the mux route template so IDs do not explode label cardinality
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			route := routeLabel(r)
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, route).Observe(float64(rw.bytesWritten))
		})
	}
}

// MetricsHandler returns the scrape handler for registry
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(router *mux.Router, registry *prometheus.Registry) {
	router.Handle("/metrics", MetricsHandler(registry)).Methods(http.MethodGet)
}
