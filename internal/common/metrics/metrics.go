package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worker_job_duration_seconds",
			Help:    "Duration of job processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task_type"},
	)

	DiagnosticsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diagnostics_generated_total",
			Help: "Diagnostics computed, by financing policy and transition bucket",
		},
		[]string{"policy", "bucket"},
	)

	DiagnosticRemainingCost = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "diagnostic_remaining_cost_euros",
			Help:    "Remaining cost of the whole renovation after subsidies",
			Buckets: prometheus.ExponentialBuckets(10_000, 2, 10),
		},
	)

	BenchmarkLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "benchmark_lookups_total",
			Help: "Local benchmark lookups by outcome (available, insufficient)",
		},
		[]string{"outcome"},
	)

	MarketStatsRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "market_stats_recorded_total",
			Help: "Diagnostics stored as future benchmark references",
		},
	)
)

// ObserveJob records the outcome of one job. An empty errorCode counts as completed.
func ObserveJob(taskType string, started time.Time, errorCode string) {
	WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(started).Seconds())
	if errorCode == "" {
		WorkerJobsCompleted.WithLabelValues(taskType).Inc()
		return
	}
	WorkerJobsFailed.WithLabelValues(taskType, errorCode).Inc()
}

// ObserveBenchmark counts a lookup; available is false when the sample was
// too small or the source failed.
func ObserveBenchmark(available bool) {
	if available {
		BenchmarkLookups.WithLabelValues("available").Inc()
		return
	}
	BenchmarkLookups.WithLabelValues("insufficient").Inc()
}
