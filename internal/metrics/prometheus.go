package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExecutionsTotal counts the total number of finished executions by language and status.
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codepad_executions_total",
			Help: "Total number of code executions",
		},
		[]string{"language", "status"},
	)

	// ExecutionDuration tracks the end-to-end duration of executions in seconds.
	ExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codepad_execution_duration_seconds",
			Help:    "Duration of code executions in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 13), // 10ms to ~80s
		},
		[]string{"language"},
	)

	// StrategyAttempts counts strategy attempts by strategy name and outcome
	// (definitive, unavailable, error, panic).
	StrategyAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codepad_strategy_attempts_total",
			Help: "Total number of execution strategy attempts",
		},
		[]string{"strategy", "outcome"},
	)

	// JudgePolls counts status polls sent to the hosted judge service.
	JudgePolls = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "codepad_judge_polls_total",
			Help: "Total number of judge service status polls",
		},
	)

	// ExecutionsInFlight tracks the number of executions currently running.
	ExecutionsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "codepad_executions_in_flight",
			Help: "Number of executions currently in progress",
		},
	)

	// SessionsActive tracks the number of open document sessions.
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "codepad_sessions_active",
			Help: "Number of open document sessions",
		},
	)

	// RejectedExecutions counts run requests rejected because one was already in flight.
	RejectedExecutions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "codepad_rejected_executions_total",
			Help: "Total number of run requests rejected while another was outstanding",
		},
	)
)
