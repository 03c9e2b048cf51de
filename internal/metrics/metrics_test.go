package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/modkeeper/internal/metrics"
)

func TestMetricsRegistered(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	metrics.StageDuration.WithLabelValues("init-mode").Observe(0.2)
	metrics.StageOutcomes.WithLabelValues("init-mode", "none").Inc()
	metrics.IPCCommands.WithLabelValues("probe", metrics.ResultOK).Inc()
	metrics.LockAttempts.WithLabelValues("acquired").Inc()

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}

	for _, name := range []string{
		"modkeeper_stage_duration_seconds",
		"modkeeper_stage_outcomes_total",
		"modkeeper_ipc_commands_total",
		"modkeeper_lock_attempts_total",
	} {
		assert.True(names[name], "metric %q not found", name)
	}
}
