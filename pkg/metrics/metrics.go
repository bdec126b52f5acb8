// Package metrics defines the Prometheus metric collectors used across the
// platform and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	PostingsIngestedTotal   prometheus.Counter
	DuplicatesSkippedTotal  prometheus.Counter
	CandidatesRejectedTotal *prometheus.CounterVec
	VectorsUpsertedTotal    prometheus.Counter
	PostingsEvictedTotal    prometheus.Counter
	VectorsDeletedTotal     prometheus.Counter
	CycleDuration           *prometheus.HistogramVec
	CycleStageFailures      *prometheus.CounterVec

	SearchQueriesTotal *prometheus.CounterVec
	SearchLatency      *prometheus.HistogramVec
	CacheHitsTotal     prometheus.Counter
	CacheMissesTotal   prometheus.Counter

	EmbeddingLatency    prometheus.Histogram
	CircuitBreakerState *prometheus.GaugeVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		PostingsIngestedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "postings_ingested_total",
				Help: "Total postings newly inserted into the record store.",
			},
		),
		DuplicatesSkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "postings_duplicates_skipped_total",
				Help: "Total candidate postings skipped because their id was already on file.",
			},
		),
		CandidatesRejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "candidates_rejected_total",
				Help: "Total candidates rejected before insert, by reason.",
			},
			[]string{"reason"},
		),
		VectorsUpsertedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vectors_upserted_total",
				Help: "Total embeddings pushed into the vector index by propagation.",
			},
		),
		PostingsEvictedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "postings_evicted_total",
				Help: "Total postings evicted from the record store by retention.",
			},
		),
		VectorsDeletedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vectors_deleted_total",
				Help: "Total embeddings deleted from the vector index by retention.",
			},
		),
		CycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_stage_duration_seconds",
				Help:    "Duration of each pipeline stage per cycle.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
			},
			[]string{"stage"},
		),
		CycleStageFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_stage_failures_total",
				Help: "Pipeline stage failures by stage; a failed stage does not abort the cycle.",
			},
			[]string{"stage"},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total contextual searches by result type (hit, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Contextual search latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of query cache misses.",
			},
		),
		EmbeddingLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "embedding_request_duration_seconds",
				Help:    "Latency of embedding server requests.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.PostingsIngestedTotal,
		m.DuplicatesSkippedTotal,
		m.CandidatesRejectedTotal,
		m.VectorsUpsertedTotal,
		m.PostingsEvictedTotal,
		m.VectorsDeletedTotal,
		m.CycleDuration,
		m.CycleStageFailures,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.EmbeddingLatency,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
