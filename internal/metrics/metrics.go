// Package metrics exposes the scheduler's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Submitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobspool_jobs_submitted_total",
		Help: "Jobs accepted into the pending queue.",
	})

	Completed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobspool_jobs_completed_total",
		Help: "Jobs retired from the active set, by outcome.",
	}, []string{"outcome"})

	LaunchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobspool_launch_failures_total",
		Help: "Admissions that failed to spawn a process.",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jobspool_queue_depth",
		Help: "Jobs currently waiting for admission.",
	})

	ActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jobspool_active_jobs",
		Help: "Jobs currently running.",
	})
)

// ObserveCounts refreshes the collection-size gauges.
func ObserveCounts(queued, active int) {
	QueueDepth.Set(float64(queued))
	ActiveJobs.Set(float64(active))
}
