package metrics

import "time"

// CycleResult summarizes one allocation cycle.
type CycleResult struct {
	Source     string
	Algorithm  string
	Capacity   float64
	Candidates int
	Selected   int
	TotalPower float64
	TotalValue int
	Failed     int
	Duration   time.Duration
	Err        string
	Time       time.Time
}

// MetricsSink records allocation cycles for observability purposes.
type MetricsSink interface {
	RecordCycle(res CycleResult) error
}

// CommandEvent captures the delivery of one relay command.
type CommandEvent struct {
	TerminalID string
	State      string
	OK         bool
	Error      string
	Latency    time.Duration
	Time       time.Time
}

// CommandRecorder records relay command deliveries.
type CommandRecorder interface {
	RecordCommand(ev CommandEvent) error
}

// AdmissionEvent captures a decision on a manual request.
type AdmissionEvent struct {
	TerminalID string
	State      string
	Accepted   bool
	Reason     string
	Capacity   float64
	Potential  float64
	Available  float64
	Time       time.Time
}

// AdmissionRecorder records admission decisions.
type AdmissionRecorder interface {
	RecordAdmission(ev AdmissionEvent) error
}

// TerminalStateEvent is a telemetry snapshot of a terminal.
type TerminalStateEvent struct {
	TerminalID string
	Status     string
	PowerW     float64
	Time       time.Time
}

// TerminalStateRecorder records terminal snapshots.
type TerminalStateRecorder interface {
	RecordTerminalState(ev TerminalStateEvent) error
}

// SkipRecorder counts ticks dropped while a cycle was running.
type SkipRecorder interface {
	RecordCycleSkipped(source string) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordCycle(CycleResult) error                { return nil }
func (NopSink) RecordCommand(CommandEvent) error             { return nil }
func (NopSink) RecordAdmission(AdmissionEvent) error         { return nil }
func (NopSink) RecordTerminalState(TerminalStateEvent) error { return nil }
func (NopSink) RecordCycleSkipped(string) error              { return nil }
