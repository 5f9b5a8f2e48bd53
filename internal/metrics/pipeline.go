package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Ingest and search metrics.
var (
	UpsertOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upsert_outcomes_total",
			Help:      "Per-record upsert outcomes",
		},
		[]string{"outcome"}, // updated / inserted / failed
	)

	UpsertBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upsert_batch_size",
			Help:      "Records per upsert batch",
			Buckets:   []float64{1, 5, 10, 25, 50, 100},
		},
	)

	SearchCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_candidates",
			Help:      "Candidates fetched from the vector store per search",
			Buckets:   []float64{0, 5, 10, 25, 50, 100, 200},
		},
	)

	SearchResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Ranked results returned per search",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100},
		},
	)
)

var registerPipeline sync.Once

// RegisterPipelineMetrics registers the ingest and search metrics with the
// default registry. Safe to call more than once.
func RegisterPipelineMetrics() {
	registerPipeline.Do(func() {
		prometheus.MustRegister(
			UpsertOutcomesTotal,
			UpsertBatchSize,
			SearchCandidates,
			SearchResults,
		)
	})
}
