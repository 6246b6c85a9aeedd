package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/psy-schedule-api/internal/models"
)

// Confirmation outcomes recorded by RecordConfirmation.
const (
	ConfirmationStaged    = "staged"
	ConfirmationCommitted = "committed"
	ConfirmationFailed    = "failed"
	ConfirmationCancelled = "cancelled"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
	gatewayTotal    *prometheus.CounterVec
	confirmations   *prometheus.CounterVec
	staleDiscarded  prometheus.Counter
	activeSessions  prometheus.Gauge
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	dbQueryDuration *prometheus.HistogramVec

	requestCount         uint64
	requestDurationTotal uint64
	gatewayCount         uint64
	gatewayFailures      uint64
	gatewayDurationTotal uint64
	cacheHitCount        uint64
	cacheMissCount       uint64
	staleCount           uint64
	sessionCount         int64
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

	gatewayDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scheduling_gateway_duration_seconds",
		Help:    "Duration of calls to the scheduling backend",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	gatewayTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduling_gateway_calls_total",
		Help: "Calls to the scheduling backend by operation and status",
	}, []string{"operation", "status"})

	confirmations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduling_confirmations_total",
		Help: "Status-change confirmations by outcome",
	}, []string{"outcome"})

	staleDiscarded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduling_stale_responses_total",
		Help: "Appointment fetches discarded because a newer range was requested",
	})

	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scheduling_active_sessions",
		Help: "Scheduling sessions currently held in memory",
	})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for view-state cache reads",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for view-state cache writes",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of audit database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, gatewayDuration, gatewayTotal, confirmations,
		staleDiscarded, activeSessions, cacheLatency, cacheWrite, cacheHits, cacheMisses, dbQueryDuration, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		gatewayDuration: gatewayDuration,
		gatewayTotal:    gatewayTotal,
		confirmations:   confirmations,
		staleDiscarded:  staleDiscarded,
		activeSessions:  activeSessions,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		dbQueryDuration: dbQueryDuration,
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

// ObserveHTTPRequest records inbound request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveGatewayCall records one call to the scheduling backend.
func (m *MetricsService) ObserveGatewayCall(operation string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.gatewayDuration.WithLabelValues(operation).Observe(duration.Seconds())
	m.gatewayTotal.WithLabelValues(operation, fmt.Sprintf("%d", status)).Inc()
	atomic.AddUint64(&m.gatewayCount, 1)
	atomic.AddUint64(&m.gatewayDurationTotal, uint64(duration.Nanoseconds()))
	if status >= http.StatusInternalServerError {
		atomic.AddUint64(&m.gatewayFailures, 1)
	}
}

// RecordConfirmation counts one step of the stage/confirm/cancel lifecycle.
func (m *MetricsService) RecordConfirmation(outcome string) {
	if m == nil {
		return
	}
	m.confirmations.WithLabelValues(outcome).Inc()
}

// RecordStaleDiscard counts a fetch dropped by the staleness guard.
func (m *MetricsService) RecordStaleDiscard() {
	if m == nil {
		return
	}
	m.staleDiscarded.Inc()
	atomic.AddUint64(&m.staleCount, 1)
}

// SessionOpened and SessionClosed track live sessions.
func (m *MetricsService) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
	atomic.AddInt64(&m.sessionCount, 1)
}

// SessionClosed is the inverse of SessionOpened.
func (m *MetricsService) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
	atomic.AddInt64(&m.sessionCount, -1)
}

// RecordCacheOperation records cache hit/miss metrics.
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
}

// Snapshot returns aggregated metrics for the JSON summary endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	gwCount := atomic.LoadUint64(&m.gatewayCount)
	gwDuration := atomic.LoadUint64(&m.gatewayDurationTotal)
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)

	snapshot := models.SystemMetrics{
		RequestsTotal:           requests,
		GatewayCallsTotal:       gwCount,
		GatewayFailuresTotal:    atomic.LoadUint64(&m.gatewayFailures),
		StaleResponsesDiscarded: atomic.LoadUint64(&m.staleCount),
		ActiveSessions:          atomic.LoadInt64(&m.sessionCount),
		Goroutines:              runtime.NumGoroutine(),
		GeneratedAt:             time.Now().UTC(),
	}
	if requests > 0 {
		snapshot.AverageRequestDurationMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}
	if gwCount > 0 {
		snapshot.AverageGatewayDurationMs = float64(gwDuration) / float64(gwCount) / float64(time.Millisecond)
	}
	if total := hits + misses; total > 0 {
		snapshot.CacheHitRatio = float64(hits) / float64(total)
	}
	return snapshot
}
