package metrics

import (
	"context"
	"time"

	"github.com/farreladriann/slc-backend/core/events"
	coremetrics "github.com/farreladriann/slc-backend/core/metrics"
	"github.com/farreladriann/slc-backend/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for events.
// It stops when the context is canceled or the bus is closed.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				record(sink, ev)
			}
		}
	}()
}

func record(sink coremetrics.MetricsSink, ev eventbus.Event) {
	switch e := ev.(type) {
	case events.CycleEvent:
		_ = sink.RecordCycle(coremetrics.CycleResult{
			Source:     e.Source,
			Algorithm:  algorithm(e),
			Capacity:   e.Capacity,
			Candidates: e.Candidates,
			Selected:   len(e.Result.SelectedIDs),
			TotalPower: e.Result.TotalPower,
			TotalValue: e.Result.TotalValue,
			Failed:     e.Failed,
			Duration:   e.Result.Duration,
			Err:        errString(e.Err),
			Time:       e.Time,
		})
	case events.CycleSkippedEvent:
		if r, ok := sink.(coremetrics.SkipRecorder); ok {
			_ = r.RecordCycleSkipped(e.Source)
		}
	case events.CommandEvent:
		if r, ok := sink.(coremetrics.CommandRecorder); ok {
			_ = r.RecordCommand(coremetrics.CommandEvent{
				TerminalID: e.TerminalID,
				State:      string(e.State),
				OK:         e.OK,
				Error:      errString(e.Err),
				Latency:    e.Latency,
				Time:       time.Now(),
			})
		}
	case events.AdmissionEvent:
		if r, ok := sink.(coremetrics.AdmissionRecorder); ok {
			_ = r.RecordAdmission(coremetrics.AdmissionEvent{
				TerminalID: e.TerminalID,
				State:      string(e.State),
				Accepted:   e.Accepted,
				Reason:     e.Reason,
				Capacity:   e.Capacity,
				Potential:  e.Potential,
				Available:  e.Available,
				Time:       time.Now(),
			})
		}
	case events.TerminalStateEvent:
		if r, ok := sink.(coremetrics.TerminalStateRecorder); ok {
			_ = r.RecordTerminalState(coremetrics.TerminalStateEvent{
				TerminalID: e.TerminalID,
				Status:     string(e.Status),
				PowerW:     e.PowerW,
				Time:       e.Time,
			})
		}
	}
}

// failed cycles never reached the engine
func algorithm(e events.CycleEvent) string {
	if e.Err != nil {
		return ""
	}
	return e.Result.Algorithm.String()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
