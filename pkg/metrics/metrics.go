package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PassDuration measures how long a full status-and-notification pass takes.
	PassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "duebell_pass_duration_seconds",
			Help:    "Duration of a full engine pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	// InstallmentsScanned counts installments considered per pass.
	InstallmentsScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "duebell_installments_scanned_total",
			Help: "Total number of installments scanned by the engine",
		},
	)

	// Transitions counts status transitions applied by the engine.
	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duebell_status_transitions_total",
			Help: "Total number of installment status transitions",
		},
		[]string{"to"},
	)

	// Dispatches counts notification dispatch outcomes (sent|skipped|failed).
	Dispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duebell_dispatches_total",
			Help: "Total number of notification dispatch outcomes",
		},
		[]string{"event_type", "outcome"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duebell_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
