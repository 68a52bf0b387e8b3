package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Planning run outcomes used as metric labels.
const (
	PlanOutcomeSuccess      = "success"
	PlanOutcomePrecondition = "precondition_failed"
	PlanOutcomeBusy         = "busy"
	PlanOutcomeError        = "error"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic,
// the listing cache and planning runs.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheLookups    *prometheus.CounterVec

	planRuns        *prometheus.CounterVec
	planDuration    prometheus.Observer
	defensesPlaced  prometheus.Counter
	defensesRepair  prometheus.Counter
	batchesPlaced   prometheus.Counter
	batchesUnplaced prometheus.Counter
}

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

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups partitioned by result",
	}, []string{"result"})

	planRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "defense_planning_runs_total",
		Help: "Auto-planning runs partitioned by outcome",
	}, []string{"outcome"})

	planDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "defense_planning_duration_seconds",
		Help:    "Wall time of auto-planning runs",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	defensesPlaced := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "defenses_scheduled_total",
		Help: "Defense sessions created by the planner",
	})

	defensesRepair := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "defenses_repaired_total",
		Help: "Incomplete defense sessions completed by the planner",
	})

	batchesPlaced := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "defense_batches_placed_total",
		Help: "Supervisor batches placed into a room and shift",
	})

	batchesUnplaced := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "defense_batches_unplaced_total",
		Help: "Supervisor batches for which no placement was found within the horizon",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheLookups,
		planRuns, planDuration, defensesPlaced, defensesRepair, batchesPlaced, batchesUnplaced, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheLookups:    cacheLookups,
		planRuns:        planRuns,
		planDuration:    planDuration,
		defensesPlaced:  defensesPlaced,
		defensesRepair:  defensesRepair,
		batchesPlaced:   batchesPlaced,
		batchesUnplaced: batchesUnplaced,
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
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObservePlanningRun records the outcome of one auto-planning run.
func (m *MetricsService) ObservePlanningRun(outcome string, scheduled, fixed int, duration time.Duration) {
	if m == nil {
		return
	}
	m.planRuns.WithLabelValues(outcome).Inc()
	m.planDuration.Observe(duration.Seconds())
	m.defensesPlaced.Add(float64(scheduled))
	m.defensesRepair.Add(float64(fixed))
}

// RecordBatchPlacement counts a placed or exhausted supervisor batch.
func (m *MetricsService) RecordBatchPlacement(placed bool) {
	if m == nil {
		return
	}
	if placed {
		m.batchesPlaced.Inc()
		return
	}
	m.batchesUnplaced.Inc()
}
