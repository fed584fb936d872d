package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farreladriann/slc-backend/core/model"
	"github.com/farreladriann/slc-backend/core/store"
)

func TestWatcherCheck(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	past, future := now.Add(-time.Hour), now.Add(time.Hour)
	farPast := now.Add(-2 * time.Hour)

	st := store.NewMemoryStore()
	terms := []model.Terminal{
		{ID: "due_on", Status: model.StatusOff, StartOn: &past, FinishOn: &future},
		{ID: "already_on", Status: model.StatusOn, StartOn: &past, FinishOn: &future},
		{ID: "expired", Status: model.StatusOn, StartOn: &farPast, FinishOn: &past},
		{ID: "expired_off", Status: model.StatusOff, StartOn: &farPast, FinishOn: &past},
		{ID: "not_yet", Status: model.StatusOff, StartOn: &future, FinishOn: &future},
		{ID: "no_window", Status: model.StatusOff},
		{ID: "starts_now", Status: model.StatusOff, StartOn: &now, FinishOn: &future},
	}
	for _, term := range terms {
		require.NoError(t, st.UpsertTerminal(ctx, term))
	}
	sender := &fakeSender{}
	w := NewWatcher(st, sender, WatcherConfig{}, nil)
	w.now = func() time.Time { return now }

	res, err := w.Check(ctx)
	require.NoError(t, err)
	require.Len(t, sender.batches, 2)
	assert.ElementsMatch(t, []model.Command{
		{TerminalID: "due_on", State: model.StatusOn},
		{TerminalID: "starts_now", State: model.StatusOn},
	}, sender.batches[0])
	assert.Equal(t, []model.Command{{TerminalID: "expired", State: model.StatusOff}}, sender.batches[1])
	assert.Len(t, res, 3)
}

func TestWatcherRunStopsWithContext(t *testing.T) {
	st := store.NewMemoryStore()
	w := NewWatcher(st, &fakeSender{}, WatcherConfig{IntervalSeconds: 1}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcherConfigDefaults(t *testing.T) {
	var c WatcherConfig
	c.SetDefaults()
	assert.True(t, c.IsEnabled())
	assert.Equal(t, DefaultWatchInterval, c.Interval())
}
