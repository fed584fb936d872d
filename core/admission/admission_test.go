package admission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farreladriann/slc-backend/core/events"
	"github.com/farreladriann/slc-backend/core/model"
	"github.com/farreladriann/slc-backend/core/store"
	"github.com/farreladriann/slc-backend/internal/eventbus"
)

type fakeSender struct {
	mu      sync.Mutex
	batches [][]model.Command
}

func (f *fakeSender) Dispatch(_ context.Context, cmds []model.Command) []model.CommandResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, cmds)
	res := make([]model.CommandResult, len(cmds))
	for i, c := range cmds {
		res[i] = model.CommandResult{TerminalID: c.TerminalID, State: c.State, OK: true}
	}
	return res
}

type runningFlag bool

func (r runningFlag) Running() bool { return bool(r) }

type brokenTelemetry struct{ *store.MemoryStore }

func (brokenTelemetry) LatestPowerByTerminal(context.Context) (map[string]float64, error) {
	return nil, errors.New("timeout")
}

func fixture(t *testing.T) *store.MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()
	for _, term := range []model.Terminal{
		{ID: "A", Priority: 1, Status: model.StatusOff},
		{ID: "B", Priority: 2, Status: model.StatusOn},
		{ID: "C", Priority: 3, Status: model.StatusOff},
	} {
		require.NoError(t, s.UpsertTerminal(ctx, term))
	}
	for id, p := range map[string]float64{"A": 800, "B": 500, "C": 400} {
		require.NoError(t, s.InsertReading(ctx, model.PowerReading{TerminalID: id, PowerW: p}))
	}
	require.NoError(t, s.SetCapacityThreshold(ctx, "stm32_1", 1000))
	return s
}

func newController(t *testing.T, s *store.MemoryStore, sender *fakeSender, running bool) *Controller {
	t.Helper()
	c, err := New(Deps{Terminals: s, Telemetry: s, Sender: sender, Scheduler: runningFlag(running)}, 1500)
	require.NoError(t, err)
	return c
}

func TestRequest_Scenario(t *testing.T) {
	s := fixture(t)
	sender := &fakeSender{}
	c := newController(t, s, sender, false)
	ctx := context.Background()

	d, err := c.Request(ctx, "C", model.StatusOn)
	require.NoError(t, err)
	assert.True(t, d.Accepted)
	assert.Equal(t, 900.0, d.PotentialTotal)

	// dispatch does not mutate stored status, so only B counts as on
	d, err = c.Request(ctx, "A", model.StatusOn)
	require.NoError(t, err)
	assert.False(t, d.Accepted)
	assert.Equal(t, ReasonThresholdExceeded, d.Reason)
	require.NotNil(t, d.Available)
	assert.Equal(t, 500.0, *d.Available)

	require.Len(t, sender.batches, 1)
	assert.Equal(t, []model.Command{{TerminalID: "C", State: model.StatusOn}}, sender.batches[0])
}

func TestRequest_AvailableNotClamped(t *testing.T) {
	s := fixture(t)
	ctx := context.Background()
	require.NoError(t, s.UpdateStatus(ctx, "A", model.StatusOn))
	c := newController(t, s, &fakeSender{}, false)
	d, err := c.Request(ctx, "C", model.StatusOn)
	require.NoError(t, err)
	assert.False(t, d.Accepted)
	assert.Equal(t, -300.0, *d.Available)
}

func TestRequest_AlreadyOnIsIdempotent(t *testing.T) {
	s := fixture(t)
	ctx := context.Background()
	require.NoError(t, s.SetCapacityThreshold(ctx, "stm32_1", 100))
	sender := &fakeSender{}
	c := newController(t, s, sender, false)
	for i := 0; i < 2; i++ {
		d, err := c.Request(ctx, "B", model.StatusOn)
		require.NoError(t, err)
		assert.True(t, d.Accepted)
		assert.Equal(t, "Already ON", d.Message)
	}
	assert.Len(t, sender.batches, 2)
}

func TestRequest_OffAlwaysAccepted(t *testing.T) {
	s := fixture(t)
	sender := &fakeSender{}
	c := newController(t, s, sender, true)
	d, err := c.Request(context.Background(), "B", model.Status("OFF"))
	require.NoError(t, err)
	assert.True(t, d.Accepted)
	assert.Equal(t, model.StatusOff, d.State)
	assert.Len(t, sender.batches, 1)
}

func TestRequest_SchedulerActive(t *testing.T) {
	s := fixture(t)
	sender := &fakeSender{}
	c := newController(t, s, sender, true)
	d, err := c.Request(context.Background(), "C", model.StatusOn)
	require.NoError(t, err)
	assert.False(t, d.Accepted)
	assert.Equal(t, ReasonSchedulerActive, d.Reason)
	assert.Empty(t, sender.batches)
}

func TestRequest_Invalid(t *testing.T) {
	s := fixture(t)
	sender := &fakeSender{}
	c := newController(t, s, sender, false)
	_, err := c.Request(context.Background(), "", model.StatusOn)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = c.Request(context.Background(), "A", model.Status("toggle"))
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Empty(t, sender.batches)
}

func TestRequest_UnknownTerminalDrawsNothing(t *testing.T) {
	s := fixture(t)
	c := newController(t, s, &fakeSender{}, false)
	d, err := c.Request(context.Background(), "terminal_99", model.StatusOn)
	require.NoError(t, err)
	assert.True(t, d.Accepted)
	assert.Equal(t, 500.0, d.PotentialTotal)
}

func TestRequest_StoreFailure(t *testing.T) {
	s := fixture(t)
	sender := &fakeSender{}
	c, err := New(Deps{Terminals: s, Telemetry: brokenTelemetry{s}, Sender: sender, Scheduler: runningFlag(false)}, 1500)
	require.NoError(t, err)
	_, err = c.Request(context.Background(), "C", model.StatusOn)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidRequest)
	assert.Empty(t, sender.batches)
}

func TestRequest_PublishesEvent(t *testing.T) {
	s := fixture(t)
	bus := eventbus.New()
	defer bus.Close()
	sub := bus.Subscribe()
	c, err := New(Deps{Terminals: s, Telemetry: s, Sender: &fakeSender{}, Scheduler: runningFlag(false), Bus: bus}, 1500)
	require.NoError(t, err)
	_, err = c.Request(context.Background(), "A", model.StatusOn)
	require.NoError(t, err)
	select {
	case ev := <-sub:
		ae, ok := ev.(events.AdmissionEvent)
		require.True(t, ok)
		assert.False(t, ae.Accepted)
		assert.Equal(t, 500.0, ae.Available)
	case <-time.After(time.Second):
		t.Fatal("no admission event")
	}
}
