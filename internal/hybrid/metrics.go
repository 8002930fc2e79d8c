package hybrid

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// searchesTotal counts hybrid search operations.
	// Labels: variant (search, search_with_scores), result (success, error)
	searchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "carqa",
			Subsystem: "hybrid",
			Name:      "searches_total",
			Help:      "Total number of hybrid search operations",
		},
		[]string{"variant", "result"},
	)

	// searchDuration tracks how long hybrid searches take end to end,
	// including embedding the query.
	searchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "carqa",
			Subsystem: "hybrid",
			Name:      "search_duration_seconds",
			Help:      "Duration of hybrid search operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// ingestsTotal counts AddDocuments operations.
	// Labels: result (success, error)
	ingestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "carqa",
			Subsystem: "hybrid",
			Name:      "ingests_total",
			Help:      "Total number of document ingestion operations",
		},
		[]string{"result"},
	)

	// ingestDuration tracks ingestion latency including embedding,
	// sparse rebuild and persistence.
	ingestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "carqa",
			Subsystem: "hybrid",
			Name:      "ingest_duration_seconds",
			Help:      "Duration of document ingestion operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// documentsIndexed counts documents added across all batches.
	documentsIndexed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "carqa",
			Subsystem: "hybrid",
			Name:      "documents_indexed_total",
			Help:      "Total number of documents added to the store",
		},
	)

	// corpusDocuments is the current accumulated corpus size (the sparse
	// index's view of the collection).
	corpusDocuments = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "carqa",
			Subsystem: "hybrid",
			Name:      "corpus_documents",
			Help:      "Number of documents in the accumulated in-process corpus",
		},
	)
)
