package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsCreated counts accepted bulk jobs by access mode (token or owner).
	JobsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkcheck_jobs_created_total",
			Help: "Total number of bulk verification jobs created",
		},
		[]string{"mode"},
	)

	// JobsFinished counts jobs reaching a terminal status.
	JobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkcheck_jobs_finished_total",
			Help: "Total number of bulk verification jobs that reached a terminal status",
		},
		[]string{"status"},
	)

	// ItemsVerified counts individual verdicts by state.
	ItemsVerified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkcheck_items_verified_total",
			Help: "Total number of addresses verified",
		},
		[]string{"state"},
	)

	// JobDuration tracks wall-clock time from processing start to a terminal status.
	JobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bulkcheck_job_duration_seconds",
			Help:    "Duration of bulk verification jobs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14), // 100ms to ~27m
		},
	)

	// ChunkDuration tracks how long one concurrent chunk of verifications takes.
	ChunkDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bulkcheck_chunk_duration_seconds",
			Help:    "Duration of one verification chunk in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	// JobsActive tracks the number of jobs currently being executed.
	JobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bulkcheck_jobs_active",
			Help: "Number of jobs currently being executed",
		},
	)

	// RateLimitRejections counts requests rejected by the rate limiter.
	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkcheck_ratelimit_rejections_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"class"},
	)

	// ActivityDropped counts activity events dropped because the buffer was full.
	ActivityDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bulkcheck_activity_dropped_total",
			Help: "Total number of activity events dropped",
		},
	)

	// JobsReaped counts jobs handled by the reaper.
	JobsReaped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkcheck_jobs_reaped_total",
			Help: "Total number of jobs failed as stale or deleted after retention",
		},
		[]string{"action"},
	)
)
