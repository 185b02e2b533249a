package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsSnapshot is a JSON-friendly summary of the in-process counters.
type MetricsSnapshot struct {
	RequestsTotal            uint64           `json:"requests_total"`
	AverageRequestDurationMs float64          `json:"average_request_duration_ms"`
	CacheHits                uint64           `json:"cache_hits"`
	CacheMisses              uint64           `json:"cache_misses"`
	CacheHitRatio            float64          `json:"cache_hit_ratio"`
	ImportBatches            uint64           `json:"import_batches"`
	ImportRows               map[string]int64 `json:"import_rows"`
	Goroutines               int              `json:"goroutines"`
	GeneratedAt              time.Time        `json:"generated_at"`
}

// MetricsService encapsulates Prometheus instrumentation and keeps a few atomic totals for snapshots.
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
	importRows      *prometheus.CounterVec
	importBatch     *prometheus.HistogramVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	importBatchCount     uint64
	importRowCounts      [len(rowOutcomes)]int64
}

var rowOutcomes = [...]RowStatus{RowSucceeded, RowFailed, RowDuplicate, RowValidated, RowSkipped}

// NewMetricsService registers the collectors on a private registry.
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
		Help:    "Latency for cache lookups",
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

	importRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "student_import_rows_total",
		Help: "Student import rows by outcome",
	}, []string{"outcome"})

	importBatch := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "student_import_batch_duration_seconds",
		Help:    "Wall time of student import batches",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"workers"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses, importRows, importBatch, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		importRows:      importRows,
		importBatch:     importBatch,
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	statusLabel := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, statusLabel).Inc()
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

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordImportBatch adds one batch worth of row outcomes.
func (m *MetricsService) RecordImportBatch(outcomes map[RowStatus]int, workers int, duration time.Duration) {
	if m == nil {
		return
	}
	for i, status := range rowOutcomes {
		n := outcomes[status]
		if n == 0 {
			continue
		}
		m.importRows.WithLabelValues(string(status)).Add(float64(n))
		atomic.AddInt64(&m.importRowCounts[i], int64(n))
	}
	m.importBatch.WithLabelValues(strconv.Itoa(workers)).Observe(duration.Seconds())
	atomic.AddUint64(&m.importBatchCount, 1)
}

// Snapshot returns the aggregated totals.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	snapshot := MetricsSnapshot{
		RequestsTotal: requests,
		CacheHits:     hits,
		CacheMisses:   misses,
		ImportBatches: atomic.LoadUint64(&m.importBatchCount),
		ImportRows:    make(map[string]int64, len(rowOutcomes)),
		Goroutines:    runtime.NumGoroutine(),
		GeneratedAt:   time.Now().UTC(),
	}
	if total := hits + misses; total > 0 {
		snapshot.CacheHitRatio = float64(hits) / float64(total)
	}
	if requests > 0 {
		snapshot.AverageRequestDurationMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}
	for i, status := range rowOutcomes {
		snapshot.ImportRows[string(status)] = atomic.LoadInt64(&m.importRowCounts[i])
	}
	return snapshot
}
