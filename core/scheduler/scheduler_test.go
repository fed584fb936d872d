package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farreladriann/slc-backend/core/allocation"
	"github.com/farreladriann/slc-backend/core/audit"
	"github.com/farreladriann/slc-backend/core/model"
	"github.com/farreladriann/slc-backend/core/store"
)

type fakeSender struct {
	mu          sync.Mutex
	batches     [][]model.Command
	inFlight    int
	maxInFlight int
	release     chan struct{}
	started     chan struct{}
}

func (f *fakeSender) Dispatch(ctx context.Context, cmds []model.Command) []model.CommandResult {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.batches = append(f.batches, cmds)
	f.mu.Unlock()
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
	res := make([]model.CommandResult, len(cmds))
	for i, c := range cmds {
		res[i] = model.CommandResult{TerminalID: c.TerminalID, State: c.State, OK: true}
	}
	return res
}

func (f *fakeSender) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

type memAudit struct {
	mu   sync.Mutex
	recs []audit.Record
	err  error
}

func (m *memAudit) Append(_ context.Context, r audit.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.recs = append(m.recs, r)
	return nil
}
func (m *memAudit) Query(context.Context, audit.Query) ([]audit.Record, error) { return m.recs, nil }
func (m *memAudit) Close() error                                              { return nil }

type failingStore struct{ *store.MemoryStore }

func (failingStore) ListTerminals(context.Context) ([]model.Terminal, error) {
	return nil, errors.New("database unavailable")
}

func scenarioStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()
	for _, term := range []model.Terminal{
		{ID: "A", Priority: 1, DeviceID: "stm32_1"},
		{ID: "B", Priority: 2, DeviceID: "stm32_1"},
		{ID: "C", Priority: 3, DeviceID: "stm32_1"},
	} {
		require.NoError(t, s.UpsertTerminal(ctx, term))
	}
	for id, p := range map[string]float64{"A": 800, "B": 500, "C": 400} {
		require.NoError(t, s.InsertReading(ctx, model.PowerReading{TerminalID: id, PowerW: p}))
	}
	require.NoError(t, s.SetCapacityThreshold(ctx, "stm32_1", 1000))
	return s
}

func newScheduler(t *testing.T, ts store.TerminalStore, tel store.TelemetryStore, sender *fakeSender, au audit.Store) *Scheduler {
	t.Helper()
	s, err := New(Deps{
		Terminals: ts,
		Telemetry: tel,
		Engine:    allocation.NewEngine(allocation.Config{}),
		Sender:    sender,
		Audit:     au,
	}, time.Minute)
	require.NoError(t, err)
	return s
}

func TestNew_MissingDeps(t *testing.T) {
	_, err := New(Deps{}, 0)
	assert.Error(t, err)
}

func TestRunOnce_Scenario(t *testing.T) {
	st := scenarioStore(t)
	sender := &fakeSender{}
	au := &memAudit{}
	s := newScheduler(t, st, st, sender, au)

	rep, err := s.RunOnce(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1000.0, rep.Capacity)
	assert.Equal(t, []string{"A"}, rep.Result.SelectedIDs)
	assert.Equal(t, 800.0, rep.Result.TotalPower)
	assert.Equal(t, 3, rep.Result.TotalValue)

	require.Len(t, sender.batches, 1)
	assert.Equal(t, []model.Command{
		{TerminalID: "A", State: model.StatusOn},
		{TerminalID: "B", State: model.StatusOff},
		{TerminalID: "C", State: model.StatusOff},
	}, sender.batches[0])

	require.Len(t, au.recs, 1)
	assert.Equal(t, audit.SourceManual, au.recs[0].Source)
	assert.Equal(t, 1, int(s.Status().Cycles))
}

func TestRunOnce_CapacityOverrideAndMode(t *testing.T) {
	st := scenarioStore(t)
	s := newScheduler(t, st, st, &fakeSender{}, nil)
	capacity := 2000.0
	rep, err := s.RunOnce(context.Background(), Options{Capacity: &capacity, Mode: allocation.ModeApproximate})
	require.NoError(t, err)
	assert.Equal(t, allocation.ModeApproximate, rep.Result.Algorithm)
	assert.Equal(t, []string{"A", "B", "C"}, rep.Result.SelectedIDs)
}

func TestRunOnce_DefaultCapacity(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.UpsertTerminal(context.Background(), model.Terminal{ID: "x", Priority: 1}))
	s := newScheduler(t, st, st, &fakeSender{}, nil)
	rep, err := s.RunOnce(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, allocation.DefaultCapacityW, rep.Capacity)
	// no reading means 0 W, so the terminal fits
	assert.Equal(t, []string{"x"}, rep.Result.SelectedIDs)
}

func TestRunOnce_NoTerminals(t *testing.T) {
	st := store.NewMemoryStore()
	sender := &fakeSender{}
	s := newScheduler(t, st, st, sender, nil)
	_, err := s.RunOnce(context.Background(), Options{})
	assert.ErrorIs(t, err, ErrNoTerminals)
	assert.Zero(t, sender.batchCount())
}

func TestRunOnce_AuditFailureIsNotFatal(t *testing.T) {
	st := scenarioStore(t)
	s := newScheduler(t, st, st, &fakeSender{}, &memAudit{err: errors.New("disk full")})
	_, err := s.RunOnce(context.Background(), Options{})
	assert.NoError(t, err)
}

func TestStartStop(t *testing.T) {
	st := scenarioStore(t)
	sender := &fakeSender{started: make(chan struct{}, 4)}
	s := newScheduler(t, st, st, sender, nil)
	assert.False(t, s.Running())

	first := s.Start(time.Hour)
	assert.True(t, first.Running)
	assert.Equal(t, time.Hour, first.Interval)

	// the first cycle runs without waiting for the ticker
	select {
	case <-sender.started:
	case <-time.After(2 * time.Second):
		t.Fatal("no immediate cycle")
	}

	again := s.Start(time.Second)
	assert.Equal(t, time.Hour, again.Interval, "second start must not change the loop")

	assert.False(t, s.Stop().Running)
	assert.False(t, s.Stop().Running)
	s.Wait()
	assert.Equal(t, 1, sender.batchCount())
}

func TestMutualExclusion(t *testing.T) {
	st := scenarioStore(t)
	sender := &fakeSender{release: make(chan struct{}), started: make(chan struct{}, 1)}
	s := newScheduler(t, st, st, sender, nil)

	s.Start(5 * time.Millisecond)
	select {
	case <-sender.started:
	case <-time.After(2 * time.Second):
		t.Fatal("cycle did not start")
	}

	require.Eventually(t, func() bool { return s.Status().Skipped >= 3 }, 2*time.Second, 5*time.Millisecond)
	_, err := s.RunOnce(context.Background(), Options{})
	assert.ErrorIs(t, err, ErrCycleInProgress)

	s.Stop()
	close(sender.release)
	s.Wait()

	assert.Equal(t, 1, sender.maxInFlight)
	assert.Equal(t, 1, sender.batchCount(), "skipped ticks must not be queued")
}

func TestStopDoesNotCancelInFlightCycle(t *testing.T) {
	st := scenarioStore(t)
	sender := &fakeSender{release: make(chan struct{}), started: make(chan struct{}, 1)}
	au := &memAudit{}
	s := newScheduler(t, st, st, sender, au)

	s.Start(time.Hour)
	<-sender.started
	s.Stop()
	close(sender.release)
	s.Wait()

	au.mu.Lock()
	defer au.mu.Unlock()
	require.Len(t, au.recs, 1)
	assert.Equal(t, audit.SourceScheduler, au.recs[0].Source)
}

func TestLoopSurvivesFailures(t *testing.T) {
	mem := scenarioStore(t)
	fs := failingStore{mem}
	sender := &fakeSender{}
	s := newScheduler(t, fs, mem, sender, nil)

	s.Start(5 * time.Millisecond)
	require.Eventually(t, func() bool { return s.Status().Cycles >= 3 }, 2*time.Second, 5*time.Millisecond)
	st := s.Status()
	assert.True(t, st.Running)
	assert.Contains(t, st.LastError, "database unavailable")
	s.Stop()
	s.Wait()
	assert.Zero(t, sender.batchCount())
}
