package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Authorization metrics
	ChecksTotal   *prometheus.CounterVec
	CheckDuration *prometheus.HistogramVec

	// Cache metrics
	CacheHitsTotal     *prometheus.CounterVec
	CacheMissesTotal   *prometheus.CounterVec
	CacheErrorsTotal   *prometheus.CounterVec
	InvalidationsTotal prometheus.Counter

	// Group service metrics
	GroupMutationsTotal *prometheus.CounterVec
	GrantsPrunedTotal   prometheus.Counter

	// Database metrics
	DBConnectionsActive       prometheus.Gauge
	DBConnectionsIdle         prometheus.Gauge
	DBConnectionsWaitCount    prometheus.Gauge
	DBConnectionsWaitDuration prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gatehouse_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gatehouse_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		// Authorization metrics
		ChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_checks_total",
				Help: "Total number of permission checks",
			},
			[]string{"decision", "source"},
		),
		CheckDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gatehouse_check_duration_seconds",
				Help:    "Permission check duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5},
			},
			[]string{"source"},
		),

		// Cache metrics
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type"},
		),
		CacheErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_cache_errors_total",
				Help: "Total number of cache backend errors",
			},
			[]string{"cache_type", "operation"},
		),
		InvalidationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gatehouse_cache_invalidations_total",
				Help: "Total number of permission cache invalidations",
			},
		),

		// Group service metrics
		GroupMutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_group_mutations_total",
				Help: "Total number of group mutations",
			},
			[]string{"operation", "status"},
		),
		GrantsPrunedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gatehouse_grants_pruned_total",
				Help: "Total number of unknown permission grants pruned",
			},
		),

		// Database metrics
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gatehouse_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gatehouse_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		DBConnectionsWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gatehouse_db_connections_wait_count",
				Help: "Total number of connections waited for",
			},
		),
		DBConnectionsWaitDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gatehouse_db_connections_wait_duration_seconds",
				Help: "Total time spent waiting for connections",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.ChecksTotal,
		m.CheckDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheErrorsTotal,
		m.InvalidationsTotal,
		m.GroupMutationsTotal,
		m.GrantsPrunedTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.DBConnectionsWaitCount,
		m.DBConnectionsWaitDuration,
	)

	return m
}

// RecordCheck records the outcome of a permission check. Safe to call on a
// nil receiver so callers without metrics wired can skip the nil check.
func (m *Metrics) RecordCheck(decision bool, source string, duration time.Duration) {
	if m == nil {
		return
	}
	d := "deny"
	if decision {
		d = "allow"
	}
	m.ChecksTotal.WithLabelValues(d, source).Inc()
	m.CheckDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordCacheHit records a cache hit. Safe on a nil receiver.
func (m *Metrics) RecordCacheHit(cacheType string) {
	if m == nil {
		return
	}
	m.CacheHitsTotal.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss. Safe on a nil receiver.
func (m *Metrics) RecordCacheMiss(cacheType string) {
	if m == nil {
		return
	}
	m.CacheMissesTotal.WithLabelValues(cacheType).Inc()
}

// RecordCacheError records a cache backend error. Safe on a nil receiver.
func (m *Metrics) RecordCacheError(cacheType, operation string) {
	if m == nil {
		return
	}
	m.CacheErrorsTotal.WithLabelValues(cacheType, operation).Inc()
}

// RecordInvalidation records permission cache invalidations. Safe on a nil
// receiver.
func (m *Metrics) RecordInvalidation(n int) {
	if m == nil {
		return
	}
	m.InvalidationsTotal.Add(float64(n))
}

// RecordGroupMutation records a group service mutation. Safe on a nil receiver.
func (m *Metrics) RecordGroupMutation(operation string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.GroupMutationsTotal.WithLabelValues(operation, status).Inc()
}

// UpdateDBStats publishes connection pool statistics. Safe on a nil
// receiver.
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
	m.DBConnectionsWaitCount.Set(float64(stats.WaitCount))
	m.DBConnectionsWaitDuration.Set(stats.WaitDuration.Seconds())
}

// RecordGrantsPruned records grants removed by the janitor. Safe on a nil
// receiver.
func (m *Metrics) RecordGrantsPruned(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.GrantsPrunedTotal.Add(float64(n))
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

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// A nil metrics value yields a pass-through middleware.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	if metrics == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
