// Package metrics exposes Prometheus instrumentation for the message
// lifecycle pipeline. Labels are kept low-cardinality: outcomes and
// directions only, never ids or content.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// SendsTotal counts pipeline turns by kind (send|regenerate) and
	// outcome (ok|validation_error|room_error|transport_error|abort|
	// response_error).
	SendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_sends_total",
			Help: "Total number of send/regenerate turns by outcome.",
		},
		[]string{"kind", "outcome"},
	)

	// CompletionAttempts counts individual completion-call attempts,
	// including retries.
	CompletionAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_completion_attempts_total",
			Help: "Total number of completion call attempts (including retries).",
		},
	)

	// CompletionLatency records completion-call wall time per turn,
	// retries included.
	CompletionLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_completion_duration_seconds",
			Help:    "Duration of the retried completion call in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// AnimationJobs gauges the number of reveal jobs currently running.
	AnimationJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_animation_jobs",
			Help: "Current number of running reveal animation jobs.",
		},
	)

	// PersistenceFailures counts background persistence tasks that failed.
	// These never surface to the user, so the counter is the primary signal
	// that turns are being rendered but not stored.
	PersistenceFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_persistence_failures_total",
			Help: "Total number of failed background persistence tasks.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		SendsTotal,
		CompletionAttempts,
		CompletionLatency,
		AnimationJobs,
		PersistenceFailures,
	)
}
