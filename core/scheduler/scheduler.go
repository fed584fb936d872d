package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/farreladriann/slc-backend/core/allocation"
	"github.com/farreladriann/slc-backend/core/audit"
	"github.com/farreladriann/slc-backend/core/dispatch"
	"github.com/farreladriann/slc-backend/core/events"
	"github.com/farreladriann/slc-backend/core/logger"
	"github.com/farreladriann/slc-backend/core/model"
	"github.com/farreladriann/slc-backend/core/monitoring"
	"github.com/farreladriann/slc-backend/core/store"
	"github.com/farreladriann/slc-backend/internal/eventbus"
)

var (
	// ErrCycleInProgress is returned by RunOnce when another cycle holds the
	// single-flight guard.
	ErrCycleInProgress = errors.New("allocation cycle already in progress")
	// ErrNoTerminals is returned by RunOnce when there is nothing to allocate.
	ErrNoTerminals = errors.New("no terminals registered")
)

// Deps groups the collaborators of a Scheduler. Audit, Bus and Logger are
// optional.
type Deps struct {
	Terminals store.TerminalStore
	Telemetry store.TelemetryStore
	Engine    *allocation.Engine
	Sender    dispatch.Sender
	Audit     audit.Store
	Bus       eventbus.EventBus
	Logger    logger.Logger
}

// Options tune a single on-demand cycle.
type Options struct {
	// Capacity overrides the stored budget when set.
	Capacity *float64
	Mode     allocation.Mode
}

// Report describes a finished cycle.
type Report struct {
	Source    string                `json:"source"`
	Capacity  float64               `json:"capacity"`
	Items     []allocation.Item     `json:"items"`
	Result    allocation.Result     `json:"result"`
	Commands  []model.CommandResult `json:"commands"`
	StartedAt time.Time             `json:"startedAt"`
}

// Status is a snapshot of the scheduler state.
type Status struct {
	Running   bool          `json:"running"`
	Interval  time.Duration `json:"intervalNs"`
	StartedAt *time.Time    `json:"startedAt,omitempty"`
	LastCycle *time.Time    `json:"lastCycle,omitempty"`
	LastError string        `json:"lastError,omitempty"`
	Cycles    int64         `json:"cycles"`
	Skipped   int64         `json:"skipped"`
}

// Scheduler runs allocation cycles periodically or on demand.
type Scheduler struct {
	deps            Deps
	log             logger.Logger
	defaultInterval time.Duration
	defaultCapacity float64

	cycle sync.Mutex // single-flight guard, held for the whole cycle

	mu        sync.Mutex
	running   bool
	stop      chan struct{}
	interval  time.Duration
	startedAt time.Time
	lastCycle time.Time
	lastErr   string
	cycles    int64
	skipped   int64

	wg sync.WaitGroup
}

// New creates a stopped scheduler. defaultInterval is used when Start is given
// a non-positive interval.
func New(d Deps, defaultInterval time.Duration) (*Scheduler, error) {
	if d.Terminals == nil || d.Telemetry == nil || d.Engine == nil || d.Sender == nil {
		return nil, fmt.Errorf("scheduler: nil dependency provided to New")
	}
	if d.Audit == nil {
		d.Audit = audit.NopStore{}
	}
	if defaultInterval <= 0 {
		defaultInterval = DefaultInterval
	}
	return &Scheduler{
		deps:            d,
		log:             logger.OrNop(d.Logger),
		defaultInterval: defaultInterval,
		defaultCapacity: d.Engine.Config().DefaultCapacityW,
	}, nil
}

// Start launches the periodic loop and triggers a first cycle immediately.
// When the loop already runs nothing changes and the current status is
// returned.
func (s *Scheduler) Start(interval time.Duration) Status {
	s.mu.Lock()
	if s.running {
		st := s.statusLocked()
		s.mu.Unlock()
		s.log.Debugf("scheduler already running every %s", st.Interval)
		return st
	}
	if interval <= 0 {
		interval = s.defaultInterval
	}
	s.running = true
	s.interval = interval
	s.startedAt = time.Now()
	s.stop = make(chan struct{})
	stop := s.stop
	s.wg.Add(1)
	st := s.statusLocked()
	s.mu.Unlock()

	go s.loop(interval, stop)
	s.log.Infof("scheduler started, interval %s", interval)
	return st
}

// Stop halts the loop. A cycle already in flight runs to completion. Stopping
// a stopped scheduler is a no-op.
func (s *Scheduler) Stop() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return s.statusLocked()
	}
	close(s.stop)
	s.running = false
	s.log.Infof("scheduler stopped")
	return s.statusLocked()
}

// Running reports whether the periodic loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Scheduler) statusLocked() Status {
	st := Status{
		Running:   s.running,
		LastError: s.lastErr,
		Cycles:    s.cycles,
		Skipped:   s.skipped,
	}
	if s.running {
		st.Interval = s.interval
		started := s.startedAt
		st.StartedAt = &started
	}
	if !s.lastCycle.IsZero() {
		last := s.lastCycle
		st.LastCycle = &last
	}
	return st
}

// Wait blocks until the loop goroutine and every cycle it launched have
// returned. Call it after Stop during shutdown.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(interval time.Duration, stop <-chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.launch()
	for {
		select {
		case <-ticker.C:
			s.launch()
		case <-stop:
			return
		}
	}
}

// launch runs a cycle in its own goroutine so a slow cycle never delays the
// ticker; overlapping ticks are dropped by the guard.
func (s *Scheduler) launch() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.tick()
	}()
}

func (s *Scheduler) tick() {
	if !s.Running() {
		return
	}
	if !s.cycle.TryLock() {
		s.mu.Lock()
		s.skipped++
		s.mu.Unlock()
		s.log.Warnf("allocation cycle still running, tick skipped")
		s.publish(events.CycleSkippedEvent{Source: audit.SourceScheduler, Time: time.Now()})
		return
	}
	defer s.cycle.Unlock()
	defer func() {
		if r := recover(); r != nil {
			monitoring.CapturePanic(r, map[string]string{"component": "scheduler"})
			s.setLastError(fmt.Errorf("panic: %v", r))
			s.log.Errorf("allocation cycle panicked: %v", r)
		}
	}()

	_, err := s.runCycle(context.Background(), audit.SourceScheduler, Options{})
	switch {
	case errors.Is(err, ErrNoTerminals):
		s.log.Debugf("no terminals, cycle skipped")
	case err != nil:
		s.log.Errorf("allocation cycle failed: %v", err)
		monitoring.CaptureException(err, map[string]string{"component": "scheduler"})
	}
}

// RunOnce executes one cycle immediately on behalf of a caller. It fails with
// ErrCycleInProgress instead of waiting when another cycle is running.
func (s *Scheduler) RunOnce(ctx context.Context, opts Options) (Report, error) {
	if !s.cycle.TryLock() {
		return Report{}, ErrCycleInProgress
	}
	defer s.cycle.Unlock()
	return s.runCycle(ctx, audit.SourceManual, opts)
}

// Capacity returns the budget a cycle would use right now.
func (s *Scheduler) Capacity(ctx context.Context) (float64, error) {
	return store.Capacity(ctx, s.deps.Terminals, s.defaultCapacity)
}

func (s *Scheduler) runCycle(ctx context.Context, source string, opts Options) (rep Report, err error) {
	rep = Report{Source: source, StartedAt: time.Now()}
	defer func() {
		if errors.Is(err, ErrNoTerminals) {
			return
		}
		s.recordOutcome(err)
		if err != nil {
			s.publish(events.CycleEvent{Source: source, Capacity: rep.Capacity, Err: err, Time: time.Now()})
		}
	}()

	terms, err := s.deps.Terminals.ListTerminals(ctx)
	if err != nil {
		return rep, fmt.Errorf("list terminals: %w", err)
	}
	if len(terms) == 0 {
		return rep, ErrNoTerminals
	}
	power, err := s.deps.Telemetry.LatestPowerByTerminal(ctx)
	if err != nil {
		return rep, fmt.Errorf("latest power: %w", err)
	}
	if opts.Capacity != nil {
		rep.Capacity = *opts.Capacity
	} else if rep.Capacity, err = s.Capacity(ctx); err != nil {
		return rep, err
	}

	rep.Items = allocation.ItemsFromTerminals(terms, power)
	rep.Result = s.deps.Engine.Allocate(rep.Items, rep.Capacity, opts.Mode)
	s.log.Debugw("allocation computed", map[string]any{
		"source":      source,
		"algorithm":   rep.Result.Algorithm.String(),
		"capacity":    rep.Capacity,
		"selected":    rep.Result.SelectedIDs,
		"total_power": rep.Result.TotalPower,
	})

	rep.Commands = s.deps.Sender.Dispatch(ctx, rep.Result.Commands(rep.Items))
	failed := len(model.Failed(rep.Commands))

	if aerr := s.deps.Audit.Append(ctx, audit.NewRecord(source, rep.Capacity, rep.Result, rep.Commands)); aerr != nil {
		s.log.Warnf("audit append failed: %v", aerr)
	}
	s.publish(events.CycleEvent{
		Source:     source,
		Capacity:   rep.Capacity,
		Candidates: len(rep.Items),
		Result:     rep.Result,
		Failed:     failed,
		Time:       time.Now(),
	})
	s.log.Infof("%s cycle: %d/%d terminals on, %.1f of %.1f W (%s), %d commands failed",
		source, len(rep.Result.SelectedIDs), len(rep.Items), rep.Result.TotalPower, rep.Capacity, rep.Result.Algorithm, failed)
	return rep, nil
}

func (s *Scheduler) recordOutcome(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles++
	s.lastCycle = time.Now()
	s.lastErr = ""
	if err != nil {
		s.lastErr = err.Error()
	}
}

func (s *Scheduler) setLastError(err error) {
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
}

func (s *Scheduler) publish(ev eventbus.Event) {
	if s.deps.Bus != nil {
		s.deps.Bus.Publish(ev)
	}
}
