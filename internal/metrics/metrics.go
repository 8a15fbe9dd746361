// Package metrics provides Prometheus metrics for the ingestion core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "lakecore"
)

// Ingestion metrics track run-level pipeline activity.
var (
	// RunsTotal counts ingestion runs by final status.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Total number of ingestion runs",
	}, []string{"status"})

	// FilesProcessedTotal counts files by extraction outcome.
	FilesProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "files_processed_total",
		Help:      "Total number of files processed by extraction status",
	}, []string{"status"})

	// StageDuration is a histogram of per-stage durations in seconds.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Duration of pipeline stages in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s to ~410s
	}, []string{"stage"})

	// ClassifiedTotal counts classified documents by category and tier.
	ClassifiedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "classified_total",
		Help:      "Total number of classified documents",
	}, []string{"category", "tier"})
)

// Handler metrics track extractor activity.
var (
	// HandlerExtractionsTotal counts extractions by handler name and outcome.
	HandlerExtractionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "handler_extractions_total",
		Help:      "Total number of handler extractions",
	}, []string{"handler", "outcome"})

	// AdaptiveHandlersGenerated counts successfully generated handlers.
	AdaptiveHandlersGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "adaptive_handlers_generated_total",
		Help:      "Total number of adaptively generated handlers",
	})
)

// Store metrics track lakehouse writes.
var (
	// TabularRowsWritten counts rows appended per table.
	TabularRowsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tabular_rows_written_total",
		Help:      "Total number of rows written to tabular tables",
	}, []string{"table"})

	// VectorRecordsWritten counts embedding records loaded.
	VectorRecordsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "vector_records_written_total",
		Help:      "Total number of embedding records written",
	})

	// VectorIndexBuilds counts ANN index (re)builds.
	VectorIndexBuilds = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "vector_index_builds_total",
		Help:      "Total number of vector index builds",
	})

	// GraphWritesTotal counts graph upserts by kind.
	GraphWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "graph_writes_total",
		Help:      "Total number of graph upserts",
	}, []string{"kind"})
)

// Progress metrics track observer delivery.
var (
	// ProgressDroppedCallbacks counts observer callbacks that panicked.
	ProgressDroppedCallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "progress_dropped_callbacks_total",
		Help:      "Total number of progress observer callbacks that failed",
	})
)

// Provider metrics track LLM and embedding calls.
var (
	// ProviderCallsTotal counts provider calls by provider and outcome.
	ProviderCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_calls_total",
		Help:      "Total number of provider API calls",
	}, []string{"provider", "outcome"})
)
