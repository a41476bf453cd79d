package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RolloutsStarted counts accepted rollouts by strategy.
	RolloutsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollouts_started_total",
			Help: "Total number of rollouts accepted",
		},
		[]string{"strategy"},
	)

	// RolloutsCompleted counts finished rollouts by strategy and outcome
	// (promoted, rolled_back, failed).
	RolloutsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollouts_completed_total",
			Help: "Total number of rollouts that reached a terminal state",
		},
		[]string{"strategy", "outcome"},
	)

	// RolloutDuration observes wall-clock time from acceptance to a
	// terminal state.
	RolloutDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rollout_duration_seconds",
			Help:    "Rollout duration from acceptance to terminal state",
			Buckets: []float64{30, 60, 120, 300, 600, 1200, 1800, 3600, 7200},
		},
		[]string{"strategy"},
	)

	// HealthGateEvaluations counts health gate runs by result.
	HealthGateEvaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "health_gate_evaluations_total",
			Help: "Total number of health gate evaluations",
		},
		[]string{"result"},
	)
)
