package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP layer,
// the key/value substrate and the background rules.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	kvDuration      *prometheus.HistogramVec
	kvErrors        *prometheus.CounterVec
	kvDecodeFailure *prometheus.CounterVec
	migrations      *prometheus.CounterVec
	graduations     prometheus.Counter
	backups         *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	kvDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kv_operation_duration_seconds",
		Help:    "Latency of entity store backend operations",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"backend", "op"})

	kvErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kv_operation_errors_total",
		Help: "Backend operations that returned an error",
	}, []string{"backend", "op"})

	kvDecodeFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kv_decode_failures_total",
		Help: "Stored documents discarded because they did not decode",
	}, []string{"backend", "key"})

	migrations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "store_migrations_applied_total",
		Help: "Migration steps applied by version",
	}, []string{"version", "name"})

	graduations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "graduation_status_flips_total",
		Help: "Students moved to Graduated by the recompute rule",
	})

	backups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backup_jobs_total",
		Help: "Backup jobs by final outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, kvDuration, kvErrors, kvDecodeFailure, migrations, graduations, backups, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		kvDuration:      kvDuration,
		kvErrors:        kvErrors,
		kvDecodeFailure: kvDecodeFailure,
		migrations:      migrations,
		graduations:     graduations,
		backups:         backups,
	}
}

// Registry exposes the underlying registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry { return m.registry }

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveKV implements kv.Observer.
func (m *MetricsService) ObserveKV(backend, op string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.kvDuration.WithLabelValues(backend, op).Observe(duration.Seconds())
	if err != nil {
		m.kvErrors.WithLabelValues(backend, op).Inc()
	}
}

// KVDecodeFailure implements kv.Observer.
func (m *MetricsService) KVDecodeFailure(backend, key string) {
	if m == nil {
		return
	}
	m.kvDecodeFailure.WithLabelValues(backend, key).Inc()
}

// MigrationApplied counts a completed migration step.
func (m *MetricsService) MigrationApplied(version int, name string) {
	if m == nil {
		return
	}
	m.migrations.WithLabelValues(strconv.Itoa(version), name).Inc()
}

// StudentsGraduated counts status flips made by one recompute.
func (m *MetricsService) StudentsGraduated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.graduations.Add(float64(n))
}

// BackupFinished counts a backup job by outcome ("succeeded" or "failed").
func (m *MetricsService) BackupFinished(outcome string) {
	if m == nil {
		return
	}
	m.backups.WithLabelValues(outcome).Inc()
}
