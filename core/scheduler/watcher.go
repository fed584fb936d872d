package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/farreladriann/slc-backend/core/dispatch"
	"github.com/farreladriann/slc-backend/core/logger"
	"github.com/farreladriann/slc-backend/core/model"
	"github.com/farreladriann/slc-backend/core/monitoring"
	"github.com/farreladriann/slc-backend/core/store"
)

// Watcher switches terminals according to their activation window: on while
// start <= now < finish, off once finish has passed.
type Watcher struct {
	terminals store.TerminalStore
	sender    dispatch.Sender
	interval  time.Duration
	log       logger.Logger
	now       func() time.Time
}

// NewWatcher creates a schedule window watcher.
func NewWatcher(ts store.TerminalStore, sender dispatch.Sender, cfg WatcherConfig, log logger.Logger) *Watcher {
	return &Watcher{
		terminals: ts,
		sender:    sender,
		interval:  cfg.Interval(),
		log:       logger.OrNop(log),
		now:       time.Now,
	}
}

// Run checks the windows every interval until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	w.log.Infof("schedule watcher started, checking every %s", w.interval)
	for {
		select {
		case <-ticker.C:
			if _, err := w.Check(ctx); err != nil {
				w.log.Errorf("schedule check: %v", err)
				monitoring.CaptureException(err, map[string]string{"component": "watcher"})
			}
		case <-ctx.Done():
			return
		}
	}
}

// Check dispatches the commands due now and returns their results, switch-on
// commands first.
func (w *Watcher) Check(ctx context.Context) ([]model.CommandResult, error) {
	terms, err := w.terminals.ListTerminals(ctx)
	if err != nil {
		return nil, fmt.Errorf("list terminals: %w", err)
	}
	now := w.now()
	var on, off []model.Command
	for _, t := range terms {
		if !t.HasSchedule() {
			continue
		}
		switch {
		case !now.Before(*t.StartOn) && now.Before(*t.FinishOn) && !t.Status.IsOn():
			on = append(on, model.Command{TerminalID: t.ID, State: model.StatusOn})
		case !now.Before(*t.FinishOn) && t.Status.IsOn():
			off = append(off, model.Command{TerminalID: t.ID, State: model.StatusOff})
		}
	}
	var results []model.CommandResult
	if len(on) > 0 {
		results = append(results, w.sender.Dispatch(ctx, on)...)
		w.log.Infof("scheduled on: %s", ids(on))
	}
	if len(off) > 0 {
		results = append(results, w.sender.Dispatch(ctx, off)...)
		w.log.Infof("scheduled off: %s", ids(off))
	}
	return results, nil
}

func ids(cmds []model.Command) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.TerminalID
	}
	return out
}
