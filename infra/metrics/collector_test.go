package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farreladriann/slc-backend/core/allocation"
	"github.com/farreladriann/slc-backend/core/events"
	coremetrics "github.com/farreladriann/slc-backend/core/metrics"
	"github.com/farreladriann/slc-backend/core/model"
	"github.com/farreladriann/slc-backend/internal/eventbus"
)

type captureSink struct {
	coremetrics.NopSink
	mu         sync.Mutex
	cycles     []coremetrics.CycleResult
	skipped    []string
	commands   []coremetrics.CommandEvent
	admissions []coremetrics.AdmissionEvent
	states     []coremetrics.TerminalStateEvent
}

func (c *captureSink) RecordCycle(r coremetrics.CycleResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cycles = append(c.cycles, r)
	return nil
}

func (c *captureSink) RecordCycleSkipped(source string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skipped = append(c.skipped, source)
	return nil
}

func (c *captureSink) RecordCommand(ev coremetrics.CommandEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = append(c.commands, ev)
	return nil
}

func (c *captureSink) RecordAdmission(ev coremetrics.AdmissionEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.admissions = append(c.admissions, ev)
	return nil
}

func (c *captureSink) RecordTerminalState(ev coremetrics.TerminalStateEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states = append(c.states, ev)
	return nil
}

func (c *captureSink) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cycles) + len(c.skipped) + len(c.commands) + len(c.admissions) + len(c.states)
}

func TestStartEventCollector(t *testing.T) {
	bus := eventbus.New()
	defer bus.Close()
	sink := &captureSink{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartEventCollector(ctx, bus, sink)
	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	bus.Publish(events.CycleEvent{
		Source:     "scheduler",
		Capacity:   1000,
		Candidates: 3,
		Result:     allocation.Result{SelectedIDs: []string{"A"}, TotalPower: 800, TotalValue: 3, Algorithm: allocation.ModeExact},
	})
	bus.Publish(events.CycleEvent{Source: "manual", Err: errors.New("boom")})
	bus.Publish(events.CycleSkippedEvent{Source: "scheduler"})
	bus.Publish(events.CommandEvent{TerminalID: "A", State: model.StatusOn, OK: true})
	bus.Publish(events.AdmissionEvent{TerminalID: "C", State: model.StatusOn, Accepted: true})
	bus.Publish(events.TerminalStateEvent{TerminalID: "B", Status: model.StatusOff, PowerW: 0})
	bus.Publish("unrelated")

	require.Eventually(t, func() bool { return sink.total() == 6 }, time.Second, 5*time.Millisecond)
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, "EXACT", sink.cycles[0].Algorithm)
	assert.Equal(t, 1, sink.cycles[0].Selected)
	assert.Equal(t, "boom", sink.cycles[1].Err)
	assert.Empty(t, sink.cycles[1].Algorithm)
	assert.Equal(t, []string{"scheduler"}, sink.skipped)
	assert.Equal(t, "on", sink.commands[0].State)
	assert.True(t, sink.admissions[0].Accepted)
	assert.Equal(t, "off", sink.states[0].Status)
}

func TestStartEventCollector_StopsOnCancel(t *testing.T) {
	bus := eventbus.New()
	defer bus.Close()
	ctx, cancel := context.WithCancel(context.Background())
	StartEventCollector(ctx, bus, coremetrics.NopSink{})
	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.Eventually(t, func() bool { return bus.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
}
