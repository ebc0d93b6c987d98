package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	discoveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "feed",
			Name:      "discovered_total",
			Help:      "Articles returned by discovery",
		},
		[]string{"topic"},
	)

	discoveryFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "feed",
			Name:      "discovery_failures_total",
			Help:      "Dimensions whose discovery failed after all retries",
		},
	)

	summariesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "feed",
			Name:      "summaries_total",
			Help:      "Summarization outcomes",
		},
		[]string{"status"},
	)

	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "feed",
			Name:      "run_duration_seconds",
			Help:      "Duration of RunBatch",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)
)

func recordSummary(status string) {
	summariesTotal.WithLabelValues(status).Inc()
}
