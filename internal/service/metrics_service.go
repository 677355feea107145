package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/contribmint/contribmint-api/internal/models"
)

// Ingestion outcome labels.
const (
	IngestImported = "imported"
	IngestSkipped  = "skipped"
	IngestRejected = "rejected"
	IngestFailed   = "failed"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram
	cacheWrite      prometheus.Histogram
	cacheLookups    *prometheus.CounterVec
	votesCast       prometheus.Counter
	transitions     *prometheus.CounterVec
	vouchersIssued  prometheus.Counter
	ingestion       *prometheus.CounterVec
	recomputes      prometheus.Counter
}

// NewMetricsService registers HTTP, cache and contribution lifecycle collectors.
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
			Help:    "Latency for cache set operations",
			Buckets: prometheus.DefBuckets,
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups by result",
		}, []string{"result"}),
		votesCast: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "votes_cast_total",
			Help: "Votes recorded, including overwrites",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mint_status_transitions_total",
			Help: "Contribution mint status transitions",
		}, []string{"from", "to"}),
		vouchersIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vouchers_issued_total",
			Help: "Signed mint vouchers handed out",
		}),
		ingestion: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingestion_outcomes_total",
			Help: "Ingested activities by outcome",
		}, []string{"result"}),
		recomputes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reputation_recomputes_total",
			Help: "Completed reputation snapshot swaps",
		}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(m.requestDuration, m.requestTotal, m.cacheLatency, m.cacheWrite,
		m.cacheLookups, m.votesCast, m.transitions, m.vouchersIssued, m.ingestion, m.recomputes, goroutines)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
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

// RecordVote counts a recorded vote and the transition it caused, if any.
func (m *MetricsService) RecordVote(from, to models.MintStatus) {
	if m == nil {
		return
	}
	m.votesCast.Inc()
	m.RecordTransition(from, to)
}

// RecordTransition counts a mint status change. Equal states are ignored.
func (m *MetricsService) RecordTransition(from, to models.MintStatus) {
	if m == nil || from == to {
		return
	}
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
}

// RecordVoucher counts an issued voucher.
func (m *MetricsService) RecordVoucher() {
	if m == nil {
		return
	}
	m.vouchersIssued.Inc()
}

// RecordIngestion counts an ingestion outcome.
func (m *MetricsService) RecordIngestion(result string) {
	if m == nil {
		return
	}
	m.ingestion.WithLabelValues(result).Inc()
}

// RecordRecompute counts a reputation swap.
func (m *MetricsService) RecordRecompute() {
	if m == nil {
		return
	}
	m.recomputes.Inc()
}
