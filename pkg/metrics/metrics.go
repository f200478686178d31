package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records bearer token validations by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "byterank_auth_attempts_total",
			Help: "Total number of bearer token validations",
		},
		[]string{"result"},
	)

	// MembershipTransitions counts membership transitions by name and outcome
	// (success|denied|invariant|precondition|not_found|error).
	MembershipTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "byterank_membership_transitions_total",
			Help: "Total number of team membership transitions",
		},
		[]string{"transition", "result"},
	)

	// LeaderboardComputations counts ranking computations by source (full|cached|view|window).
	LeaderboardComputations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "byterank_leaderboard_computations_total",
			Help: "Total number of leaderboard rank computations",
		},
		[]string{"source"},
	)

	// CommitTotalsRefreshed counts membership counters raised by the refresh job.
	CommitTotalsRefreshed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "byterank_commit_totals_refreshed_total",
			Help: "Number of membership commit counters increased by refresh runs",
		},
	)

	// MaintenanceRuns records scheduled job executions by job and result (success|failure).
	MaintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "byterank_maintenance_runs_total",
			Help: "Total number of maintenance job executions",
		},
		[]string{"job", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "byterank_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
