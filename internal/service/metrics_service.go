package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/score-analytics-api/internal/models"
)

const metricsNamespace = "score_analytics"

// MetricsService owns the Prometheus registry of the service and keeps running
// totals for the /analytics/system snapshot.
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
	dbQueryDuration *prometheus.HistogramVec
	computeDuration *prometheus.HistogramVec
	importedRows    *prometheus.CounterVec
	warmupJobs      *prometheus.CounterVec

	cacheHitCount  atomic.Uint64
	cacheMissCount atomic.Uint64
	requests       timing
	dbQueries      timing
	reports        timing
}

// timing accumulates a count and total duration for snapshot averages.
type timing struct {
	count atomic.Uint64
	nanos atomic.Uint64
}

func (t *timing) add(d time.Duration) {
	t.count.Add(1)
	t.nanos.Add(uint64(d.Nanoseconds()))
}

func (t *timing) load() (uint64, float64) {
	count := t.count.Load()
	if count == 0 {
		return 0, 0
	}
	return count, float64(t.nanos.Load()) / float64(count) / float64(time.Millisecond)
}

// NewMetricsService registers every collector on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "http_request_duration_seconds",
		Help:      "API request latency by route template",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "http_requests_total",
		Help:      "API requests by route template and status",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "report_cache_read_seconds",
		Help:      "Report cache read latency",
		Buckets:   prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "report_cache_write_seconds",
		Help:      "Report cache write latency",
		Buckets:   prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "report_cache_hit_ratio",
		Help:      "Report cache hits over lookups since start",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "report_cache_hits_total",
		Help:      "Report cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "report_cache_misses_total",
		Help:      "Report cache misses, including backend failures",
	})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "store_query_seconds",
		Help:      "Record store query latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"query"})

	computeDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "report_compute_seconds",
		Help:      "Duration of analytics report computation including the score fetch",
		Buckets:   prometheus.DefBuckets,
	}, []string{"report"})

	importedRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "import_rows_total",
		Help:      "Imported score rows by outcome",
	}, []string{"outcome"})

	warmupJobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "warmup_jobs_total",
		Help:      "Report cache warmup jobs by outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "goroutines",
		Help:      "Goroutines currently running",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		dbQueryDuration, computeDuration, importedRows, warmupJobs, goroutines)

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
		dbQueryDuration: dbQueryDuration,
		computeDuration: computeDuration,
		importedRows:    importedRows,
		warmupJobs:      warmupJobs,
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

// Registry exposes the underlying registry for tests and custom collectors.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
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
	m.requests.add(duration)
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		m.cacheHitCount.Add(1)
	} else {
		m.cacheMisses.Inc()
		m.cacheMissCount.Add(1)
	}
	m.cacheHitRatio.Set(m.hitRatio())
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
	m.dbQueries.add(duration)
}

// ObserveComputation records one computed report of the given kind.
func (m *MetricsService) ObserveComputation(report string, duration time.Duration) {
	if m == nil {
		return
	}
	m.computeDuration.WithLabelValues(report).Observe(duration.Seconds())
	m.reports.add(duration)
}

// RecordImport counts imported rows by outcome.
func (m *MetricsService) RecordImport(success, failed int) {
	if m == nil {
		return
	}
	m.importedRows.WithLabelValues("success").Add(float64(success))
	m.importedRows.WithLabelValues("failed").Add(float64(failed))
}

// RecordWarmup counts a finished warmup job.
func (m *MetricsService) RecordWarmup(err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failed"
	}
	m.warmupJobs.WithLabelValues(outcome).Inc()
}

// Snapshot returns the running totals served by /analytics/system.
func (m *MetricsService) Snapshot() models.AnalyticsSystemMetrics {
	if m == nil {
		return models.AnalyticsSystemMetrics{}
	}
	requests, requestMs := m.requests.load()
	queries, queryMs := m.dbQueries.load()
	reports, reportMs := m.reports.load()

	return models.AnalyticsSystemMetrics{
		CacheHitRatio:            m.hitRatio(),
		CacheHits:                m.cacheHitCount.Load(),
		CacheMisses:              m.cacheMissCount.Load(),
		RequestsTotal:            requests,
		AverageRequestDurationMs: requestMs,
		DBQueryCount:             queries,
		AverageDBQueryDurationMs: queryMs,
		ReportsComputed:          reports,
		AverageComputeDurationMs: reportMs,
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}

func (m *MetricsService) hitRatio() float64 {
	hits := m.cacheHitCount.Load()
	total := hits + m.cacheMissCount.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
