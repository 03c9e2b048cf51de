// Package metrics has the Prometheus metrics of the application.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "modkeeper"

// StageDuration tracks the duration of the initialization stages.
var StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Name:      "stage_duration_seconds",
	Help:      "Initialization stage duration in seconds.",
	Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
}, []string{"stage"})

// StageOutcomes tracks the initialization stage outcomes.
var StageOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "stage_outcomes_total",
	Help:      "Total initialization stage outcomes.",
}, []string{"stage", "kind"})

// IPCCommands tracks the commands received by the live instance.
var IPCCommands = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "ipc_commands_total",
	Help:      "Total commands received from other launches.",
}, []string{"command", "result"})

// LockAttempts tracks the single instance lock attempts.
var LockAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "lock_attempts_total",
	Help:      "Total single instance lock attempts.",
}, []string{"result"})

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)
