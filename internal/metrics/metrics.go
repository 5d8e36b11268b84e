// Package metrics provides Prometheus metrics for the FinMuse pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LLM call outcomes.
const (
	LLMOK          = "ok"
	LLMMalformed   = "malformed"
	LLMUnavailable = "unavailable"
	LLMSkipped     = "skipped"
)

var (
	// CyclesTotal counts pipeline cycles by result.
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finmuse",
			Name:      "pipeline_cycles_total",
			Help:      "Total number of pipeline cycles",
		},
		[]string{"result"},
	)

	// CycleDuration measures how long one cycle takes.
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "finmuse",
			Name:      "pipeline_cycle_duration_seconds",
			Help:      "Duration of pipeline cycles in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
	)

	// ArticlesIngested counts newly inserted article rows.
	ArticlesIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "finmuse",
			Name:      "articles_ingested_total",
			Help:      "Total number of articles inserted with status new",
		},
	)

	// ArticlesProcessed counts summarized articles by resulting status.
	ArticlesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finmuse",
			Name:      "articles_processed_total",
			Help:      "Total number of summarized articles",
		},
		[]string{"status"},
	)

	// LLMCalls counts summarizer decisions by outcome.
	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finmuse",
			Name:      "llm_calls_total",
			Help:      "Total number of summarizer LLM decisions",
		},
		[]string{"outcome"},
	)

	// FetchErrors counts failed headline fetches.
	FetchErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "finmuse",
			Name:      "fetch_errors_total",
			Help:      "Total number of failed headline fetches",
		},
	)
)

// RecordCycle records a finished cycle.
func RecordCycle(result string, d time.Duration) {
	CyclesTotal.WithLabelValues(result).Inc()
	CycleDuration.Observe(d.Seconds())
}

// RecordIngested records inserted rows.
func RecordIngested(n int) {
	if n > 0 {
		ArticlesIngested.Add(float64(n))
	}
}

// RecordProcessed records one summarized article.
func RecordProcessed(status string) {
	ArticlesProcessed.WithLabelValues(status).Inc()
}

// RecordLLMCall records one summarizer outcome.
func RecordLLMCall(outcome string) {
	LLMCalls.WithLabelValues(outcome).Inc()
}

// RecordFetchError records a failed fetch.
func RecordFetchError() {
	FetchErrors.Inc()
}
