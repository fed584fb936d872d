package metrics

// MultiSink fans out records to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordCycle forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordCycle(res CycleResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordCycle(res); err != nil {
			return err
		}
	}
	return nil
}

// RecordCommand forwards command events.
func (m *MultiSink) RecordCommand(ev CommandEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(CommandRecorder); ok {
			if err := rec.RecordCommand(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordAdmission forwards admission decisions.
func (m *MultiSink) RecordAdmission(ev AdmissionEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(AdmissionRecorder); ok {
			if err := rec.RecordAdmission(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordTerminalState forwards terminal snapshots.
func (m *MultiSink) RecordTerminalState(ev TerminalStateEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(TerminalStateRecorder); ok {
			if err := rec.RecordTerminalState(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordCycleSkipped forwards skipped ticks.
func (m *MultiSink) RecordCycleSkipped(source string) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(SkipRecorder); ok {
			if err := rec.RecordCycleSkipped(source); err != nil {
				return err
			}
		}
	}
	return nil
}
