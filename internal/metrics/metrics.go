// Package metrics exposes Prometheus instrumentation for the delete-job
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsProcessed counts job processing attempts by post-attempt result
	// (ok, pending, failed).
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediasweep_jobs_processed_total",
		Help: "Delete jobs processed, labelled by post-attempt result.",
	}, []string{"result"})

	// DestroyCalls counts remote destroy invocations by outcome.
	DestroyCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediasweep_destroy_calls_total",
		Help: "Remote asset destroy calls, labelled by outcome (ok, error).",
	}, []string{"outcome"})

	// PendingJobs tracks the number of jobs awaiting processing.
	PendingJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mediasweep_pending_jobs",
		Help: "Delete jobs currently in pending status.",
	})

	// JobsEnqueued counts deletion intents registered on the queue.
	JobsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediasweep_jobs_enqueued_total",
		Help: "Delete jobs inserted by the enqueue path.",
	})
)
