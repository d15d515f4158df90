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

// MetricsSnapshot is a point-in-time view of the counters kept alongside the
// Prometheus collectors.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	RunsTotal                uint64    `json:"runsTotal"`
	RunsSucceeded            uint64    `json:"runsSucceeded"`
	CacheHitRatio            float64   `json:"cacheHitRatio"`
	JobsInFlight             int64     `json:"jobsInFlight"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}

// MetricsService owns the Prometheus registry for HTTP, cache and scheduler metrics.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram
	cacheWrite      prometheus.Histogram
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	dbQueryDuration *prometheus.HistogramVec
	runTotal        *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	stageDuration   *prometheus.HistogramVec
	unplaced        prometheus.Histogram
	forced          prometheus.Counter
	jobsInFlight    prometheus.Gauge
	jobsTotal       *prometheus.CounterVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	runCount             uint64
	runSuccessCount      uint64
	inFlight             int64
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache lookups",
			Buckets: prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_write_seconds",
			Help:    "Latency for cache writes",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cache_hit_ratio",
			Help: "Ratio of cache hits to total cache lookups",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total cache misses",
		}),
		dbQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of run store queries",
			Buckets: prometheus.DefBuckets,
		}, []string{"query"}),
		runTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timetable_runs_total",
			Help: "Scheduling runs by strategy and outcome",
		}, []string{"strategy", "success"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "timetable_run_duration_seconds",
			Help:    "Wall time of scheduling runs",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"strategy"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "timetable_stage_duration_seconds",
			Help:    "Wall time of individual pipeline stages",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"strategy"}),
		unplaced: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "timetable_unplaced_sessions",
			Help:    "Sessions left unplaced per run",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
		forced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timetable_forced_bookings_total",
			Help: "Bookings committed through forced placement",
		}),
		jobsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "timetable_jobs_in_flight",
			Help: "Asynchronous runs queued or running",
		}),
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timetable_jobs_total",
			Help: "Asynchronous runs by final status",
		}, []string{"status"}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal,
		m.cacheLatency, m.cacheWrite,
		m.cacheHitRatio, m.cacheHits, m.cacheMisses, m.dbQueryDuration,
		m.runTotal, m.runDuration, m.stageDuration, m.unplaced, m.forced,
		m.jobsInFlight, m.jobsTotal, goroutines,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
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

// Registry returns the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
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

// RecordCacheOperation records a cache lookup and refreshes the hit ratio.
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
	if ratio, ok := m.hitRatio(); ok {
		m.cacheHitRatio.Set(ratio)
	}
}

// ObserveCacheWrite tracks cache write latency.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records run store query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// ObserveRun records the outcome of one scheduling run.
func (m *MetricsService) ObserveRun(strategy string, success bool, duration time.Duration, unplaced, forced int) {
	if m == nil {
		return
	}
	m.runTotal.WithLabelValues(strategy, strconv.FormatBool(success)).Inc()
	m.runDuration.WithLabelValues(strategy).Observe(duration.Seconds())
	m.unplaced.Observe(float64(unplaced))
	if forced > 0 {
		m.forced.Add(float64(forced))
	}
	atomic.AddUint64(&m.runCount, 1)
	if success {
		atomic.AddUint64(&m.runSuccessCount, 1)
	}
}

// ObserveStage records the wall time of one pipeline stage.
func (m *MetricsService) ObserveStage(strategy string, duration time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// JobQueued marks an asynchronous run as in flight.
func (m *MetricsService) JobQueued() {
	if m == nil {
		return
	}
	atomic.AddInt64(&m.inFlight, 1)
	m.jobsInFlight.Inc()
}

// JobFinished records the terminal status of an asynchronous run.
func (m *MetricsService) JobFinished(status string) {
	if m == nil {
		return
	}
	atomic.AddInt64(&m.inFlight, -1)
	m.jobsInFlight.Dec()
	m.jobsTotal.WithLabelValues(status).Inc()
}

// Snapshot returns aggregated counters for the metrics summary endpoint.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}
	ratio, _ := m.hitRatio()

	return MetricsSnapshot{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		RunsTotal:                atomic.LoadUint64(&m.runCount),
		RunsSucceeded:            atomic.LoadUint64(&m.runSuccessCount),
		CacheHitRatio:            ratio,
		JobsInFlight:             atomic.LoadInt64(&m.inFlight),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}

func (m *MetricsService) hitRatio() (float64, bool) {
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total == 0 {
		return 0, false
	}
	return float64(hits) / float64(total), true
}
