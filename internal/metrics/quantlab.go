// Package metrics exposes QuantLab's Prometheus collectors: ingestion run
// counts, access-cache hit ratio, and engine latency. The ingestion runner
// and the risk engine record through the *Collectors they are handed
// (cmd/quantlab hands the runner Default); only the risk engine observes
// EngineLatency, and nothing outside the tests increments the access-cache
// counters. Nothing in the cores constructs its own registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors bundles the Prometheus metrics every QuantLab engine boundary
// reports through.
type Collectors struct {
	IngestionRuns     *prometheus.CounterVec
	IngestionDuration *prometheus.HistogramVec
	HardValidationErr *prometheus.CounterVec
	AccessCacheHits   *prometheus.CounterVec
	AccessCacheMisses *prometheus.CounterVec
	EngineLatency     *prometheus.HistogramVec
}

// NewCollectors constructs a fresh set of collectors registered against
// reg. Passing prometheus.NewRegistry() keeps tests isolated from the
// global default registry.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		IngestionRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quantlab",
			Subsystem: "ingest",
			Name:      "runs_total",
			Help:      "Ingestion runs by dataset and outcome.",
		}, []string{"dataset_id", "outcome"}),
		IngestionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quantlab",
			Subsystem: "ingest",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of an ingestion run.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"dataset_id"}),
		HardValidationErr: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quantlab",
			Subsystem: "ingest",
			Name:      "hard_validation_errors_total",
			Help:      "Hard validation-rule violations that blocked a publish.",
		}, []string{"dataset_id"}),
		AccessCacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quantlab",
			Subsystem: "access",
			Name:      "cache_hits_total",
			Help:      "Access-service requests served from the manifest cache without calling the provider.",
		}, []string{"dataset_id"}),
		AccessCacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quantlab",
			Subsystem: "access",
			Name:      "cache_misses_total",
			Help:      "Access-service requests that required a fresh provider fetch.",
		}, []string{"dataset_id"}),
		EngineLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quantlab",
			Subsystem: "engine",
			Name:      "latency_seconds",
			Help:      "Wall-clock latency of a pricing/risk/stress engine run.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"engine"}),
	}
	reg.MustRegister(
		c.IngestionRuns, c.IngestionDuration, c.HardValidationErr,
		c.AccessCacheHits, c.AccessCacheMisses, c.EngineLatency,
	)
	return c
}

// Default is the process-wide collector set registered against the global
// Prometheus registry when the package is initialized; cmd/quantlab wires it
// into the ingestion runner.
var Default = NewCollectors(prometheus.DefaultRegisterer)
