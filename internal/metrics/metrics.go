// Package metrics holds the Prometheus instruments for the ingestion
// pipeline. Everything registers on the default registry and is served
// by the serve command at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Metadata enrichment
	EnrichCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrobbledb_enrich_cache_lookups_total",
			Help: "Metadata cache lookups by kind (artist, album) and result (hit, miss)",
		},
		[]string{"kind", "result"},
	)

	EnrichExternalCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrobbledb_enrich_external_calls_total",
			Help: "Calls made to the metadata provider by kind and outcome (ok, not_found, error)",
		},
		[]string{"kind", "outcome"},
	)

	EnrichCacheWriteErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrobbledb_enrich_cache_write_errors_total",
			Help: "Failed metadata cache writes (logged and ignored)",
		},
		[]string{"kind"},
	)

	// Upstream scrobble service
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrobbledb_upstream_requests_total",
			Help: "Recent-tracks page requests by outcome (ok, empty, missing_tracks, error)",
		},
		[]string{"outcome"},
	)

	// Persistence
	ScrobblesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrobbledb_scrobbles_written_total",
			Help: "Scrobble insert attempts by outcome (inserted, duplicate, failed)",
		},
		[]string{"outcome"},
	)

	// Pipeline runs
	PipelineBatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scrobbledb_pipeline_batches_total",
			Help: "Batches processed by the ingestion pipeline",
		},
	)

	PipelineRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scrobbledb_pipeline_run_duration_seconds",
			Help:    "Wall time of a full per-user pipeline run",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600, 14400},
		},
		[]string{"outcome"},
	)

	// Circuit breaker around the metadata provider
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scrobbledb_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)
