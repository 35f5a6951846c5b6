// Package metrics defines the Prometheus metric collectors used by the
// indexing pipeline and the lookup service, and exposes an HTTP handler for
// scraping plus a Pushgateway push for one-shot runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors, registered on a private registry
// so several pipelines can coexist in one process (tests, benchmarks).
type Metrics struct {
	Registry *prometheus.Registry

	FilesMappedTotal       *prometheus.CounterVec
	TokensTotal            prometheus.Counter
	ClaimsTotal            *prometheus.CounterVec
	PartitionsWrittenTotal prometheus.Counter
	PartitionWords         prometheus.Histogram
	PhaseDuration          *prometheus.HistogramVec
	BarrierWaitSeconds     prometheus.Histogram
	WorkersActive          *prometheus.GaugeVec

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		FilesMappedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_files_mapped_total",
				Help: "Input files consumed by mappers, by outcome (ok, skipped, failed).",
			},
			[]string{"outcome"},
		),
		TokensTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_tokens_total",
				Help: "Normalized, non-empty tokens inserted into partial indexes.",
			},
		),
		ClaimsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_claims_total",
				Help: "Work items claimed from the file and letter queues.",
			},
			[]string{"queue"},
		),
		PartitionsWrittenTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_partitions_written_total",
				Help: "Output partitions written by reducers.",
			},
		),
		PartitionWords: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "index_partition_words",
				Help:    "Distinct words per emitted partition.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
		),
		PhaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "index_phase_duration_seconds",
				Help:    "Wall-clock duration of the map and reduce phases.",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
			},
			[]string{"phase"},
		),
		BarrierWaitSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "index_barrier_wait_seconds",
				Help:    "Time reducers spent blocked on the phase barrier.",
				Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1, 10, 60},
			},
		),
		WorkersActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "index_workers_active",
				Help: "Mapper and reducer goroutines currently running.",
			},
			[]string{"role"},
		),
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
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lookup_cache_hits_total",
				Help: "Total number of lookup cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lookup_cache_misses_total",
				Help: "Total number of lookup cache misses.",
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

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.FilesMappedTotal,
		m.TokensTotal,
		m.ClaimsTotal,
		m.PartitionsWrittenTotal,
		m.PartitionWords,
		m.PhaseDuration,
		m.BarrierWaitSeconds,
		m.WorkersActive,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
