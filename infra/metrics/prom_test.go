package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/farreladriann/slc-backend/core/metrics"
)

func TestPromSink_RecordCycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, s.RecordCycle(coremetrics.CycleResult{
		Source: "scheduler", Algorithm: "EXACT", Capacity: 1000, Selected: 1, TotalPower: 800, Duration: time.Millisecond,
	}))
	require.NoError(t, s.RecordCycle(coremetrics.CycleResult{Source: "manual", Err: "list terminals: boom"}))

	assert.Equal(t, 1.0, testutil.ToFloat64(s.cycles.WithLabelValues("scheduler", "EXACT", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.cycles.WithLabelValues("manual", "none", "error")))
	assert.Equal(t, 1000.0, testutil.ToFloat64(s.capacity))
	assert.Equal(t, 800.0, testutil.ToFloat64(s.allocated))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.selected))
}

func TestPromSink_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	b, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, a.RecordCycleSkipped("scheduler"))
	require.NoError(t, b.RecordCycleSkipped("scheduler"))
	assert.Equal(t, 2.0, testutil.ToFloat64(a.skipped.WithLabelValues("scheduler")))
}

func TestPromSink_AdmissionAndTerminalState(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, s.RecordAdmission(coremetrics.AdmissionEvent{State: "on", Accepted: false, Reason: "threshold_exceeded"}))
	require.NoError(t, s.RecordTerminalState(coremetrics.TerminalStateEvent{TerminalID: "terminal_1", Status: "on", PowerW: 230}))
	require.NoError(t, s.RecordTerminalState(coremetrics.TerminalStateEvent{TerminalID: "terminal_2", Status: "off"}))

	assert.Equal(t, 1.0, testutil.ToFloat64(s.admissions.WithLabelValues("on", "false", "threshold_exceeded")))
	assert.Equal(t, 230.0, testutil.ToFloat64(s.terminalPower.WithLabelValues("terminal_1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.terminalOn.WithLabelValues("terminal_1")))
	assert.Equal(t, 0.0, testutil.ToFloat64(s.terminalOn.WithLabelValues("terminal_2")))
}
