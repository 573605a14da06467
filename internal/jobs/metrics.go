package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	enqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventhub_jobs_enqueued_total",
			Help: "Jobs accepted into the queue",
		},
		[]string{"family"},
	)

	resolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventhub_jobs_resolved_total",
			Help: "Jobs resolved by a processor, by outcome",
		},
		[]string{"family", "outcome"},
	)

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventhub_job_duration_seconds",
			Help:    "Time spent in the family handler per job",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"family"},
	)

	cycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventhub_worker_cycle_duration_seconds",
			Help:    "Duration of one claim/mark/process cycle",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"family"},
	)

	cycleErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventhub_worker_cycle_errors_total",
			Help: "Cycles that ended with a store error",
		},
		[]string{"family"},
	)

	requeuedStaleTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventhub_jobs_requeued_stale_total",
			Help: "Processing jobs returned to pending by the sweeper",
		},
		[]string{"family"},
	)
)
