package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/hr-admin-api/internal/models"
)

// Import outcomes used as metric labels.
const (
	ImportOutcomeAccepted = "accepted"
	ImportOutcomeRejected = "rejected"
	ImportOutcomeFailed   = "failed"
	ImportOutcomeDryRun   = "dry_run"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	importBatches   *prometheus.CounterVec
	importRows      prometheus.Histogram
	importDuration  prometheus.Histogram
	importedTotal   prometheus.Counter
	mailTotal       *prometheus.CounterVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	importAccepted       uint64
	importRejected       uint64
	importedEmployees    uint64
	mailSent             uint64
	mailFailed           uint64
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	importBatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "employee_import_batches_total",
		Help: "Employee import batches by outcome",
	}, []string{"outcome"})

	importRows := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "employee_import_rows",
		Help:    "Rows per employee import batch",
		Buckets: prometheus.ExponentialBuckets(1, 4, 7),
	})

	importDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "employee_import_duration_seconds",
		Help:    "Time spent validating and storing an import batch",
		Buckets: prometheus.DefBuckets,
	})

	importedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "employees_imported_total",
		Help: "Employees created through bulk import",
	})

	mailTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mail_deliveries_total",
		Help: "Outbound notification emails by template and result",
	}, []string{"template", "result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		importBatches, importRows, importDuration, importedTotal, mailTotal, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		importBatches:   importBatches,
		importRows:      importRows,
		importDuration:  importDuration,
		importedTotal:   importedTotal,
		mailTotal:       mailTotal,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks cache write latency.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordImport tracks one import batch. inserted is only counted for accepted batches.
func (m *MetricsService) RecordImport(outcome string, rows, inserted int, duration time.Duration) {
	if m == nil {
		return
	}
	m.importBatches.WithLabelValues(outcome).Inc()
	m.importRows.Observe(float64(rows))
	m.importDuration.Observe(duration.Seconds())
	switch outcome {
	case ImportOutcomeAccepted:
		atomic.AddUint64(&m.importAccepted, 1)
		atomic.AddUint64(&m.importedEmployees, uint64(inserted))
		m.importedTotal.Add(float64(inserted))
	case ImportOutcomeRejected:
		atomic.AddUint64(&m.importRejected, 1)
	}
}

// RecordMail tracks one email delivery attempt.
func (m *MetricsService) RecordMail(template string, err error) {
	if m == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
		atomic.AddUint64(&m.mailFailed, 1)
	} else {
		atomic.AddUint64(&m.mailSent, 1)
	}
	m.mailTotal.WithLabelValues(template, result).Inc()
}

// Snapshot returns the in-memory aggregates.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{GeneratedAt: time.Now().UTC(), Goroutines: runtime.NumGoroutine()}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if total := hits + misses; total > 0 {
		cacheRatio = float64(hits) / float64(total)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		ImportsAccepted:          atomic.LoadUint64(&m.importAccepted),
		ImportsRejected:          atomic.LoadUint64(&m.importRejected),
		ImportedEmployees:        atomic.LoadUint64(&m.importedEmployees),
		MailsSent:                atomic.LoadUint64(&m.mailSent),
		MailsFailed:              atomic.LoadUint64(&m.mailFailed),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
