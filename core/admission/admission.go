// Package admission decides single on/off requests against the capacity
// budget, outside the scheduler cadence.
package admission

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/farreladriann/slc-backend/core/dispatch"
	"github.com/farreladriann/slc-backend/core/events"
	"github.com/farreladriann/slc-backend/core/logger"
	"github.com/farreladriann/slc-backend/core/model"
	"github.com/farreladriann/slc-backend/core/store"
	"github.com/farreladriann/slc-backend/internal/eventbus"
)

// ErrInvalidRequest reports a malformed request. Nothing is dispatched.
var ErrInvalidRequest = errors.New("invalid admission request")

// Rejection reasons.
const (
	ReasonSchedulerActive   = "scheduler_active"
	ReasonThresholdExceeded = "threshold_exceeded"
)

// RunningChecker reports whether the periodic allocation loop owns the
// terminals.
type RunningChecker interface {
	Running() bool
}

// Decision is the outcome of a request. A rejection is a normal outcome, not
// an error.
type Decision struct {
	TerminalID     string                `json:"terminalId"`
	State          model.Status          `json:"status"`
	Accepted       bool                  `json:"accepted"`
	Reason         string                `json:"reason,omitempty"`
	Message        string                `json:"message"`
	Capacity       float64               `json:"capacity,omitempty"`
	RequestedPower float64               `json:"requestedPower,omitempty"`
	PotentialTotal float64               `json:"potentialTotal,omitempty"`
	Available      *float64              `json:"available,omitempty"`
	Results        []model.CommandResult `json:"publishRes,omitempty"`
}

// Deps groups the collaborators of a Controller. Bus and Logger are optional.
type Deps struct {
	Terminals store.TerminalStore
	Telemetry store.TelemetryStore
	Sender    dispatch.Sender
	Scheduler RunningChecker
	Bus       eventbus.EventBus
	Logger    logger.Logger
}

// Controller admits manual activation requests.
type Controller struct {
	deps            Deps
	log             logger.Logger
	defaultCapacity float64
}

// New creates a controller. defaultCapacity applies when no device threshold
// is stored.
func New(d Deps, defaultCapacity float64) (*Controller, error) {
	if d.Terminals == nil || d.Telemetry == nil || d.Sender == nil || d.Scheduler == nil {
		return nil, fmt.Errorf("admission: nil dependency provided to New")
	}
	return &Controller{deps: d, log: logger.OrNop(d.Logger), defaultCapacity: defaultCapacity}, nil
}

// Request switches terminalID to desired when the capacity budget allows it.
// Switching off is always accepted. Reads are point in time: a concurrent
// allocation cycle may change the picture right after the check.
func (c *Controller) Request(ctx context.Context, terminalID string, desired model.Status) (Decision, error) {
	terminalID = strings.TrimSpace(terminalID)
	if terminalID == "" {
		return Decision{}, fmt.Errorf("%w: terminal id required", ErrInvalidRequest)
	}
	state, err := model.ParseStatus(string(desired))
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	d := Decision{TerminalID: terminalID, State: state}

	if state == model.StatusOff {
		return c.accept(ctx, d, "Command published"), nil
	}
	if c.deps.Scheduler.Running() {
		d.Reason = ReasonSchedulerActive
		d.Message = "Allocation scheduler is running"
		c.log.Infof("rejected on for %s: scheduler active", terminalID)
		c.publish(d)
		return d, nil
	}

	terms, err := c.deps.Terminals.ListTerminals(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("list terminals: %w", err)
	}
	power, err := c.deps.Telemetry.LatestPowerByTerminal(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("latest power: %w", err)
	}
	d.Capacity, err = store.Capacity(ctx, c.deps.Terminals, c.defaultCapacity)
	if err != nil {
		return Decision{}, err
	}

	totalOn := 0.0
	alreadyOn := false
	for _, t := range terms {
		if !t.Status.IsOn() {
			continue
		}
		if t.ID == terminalID {
			alreadyOn = true
			continue
		}
		totalOn += power[t.ID]
	}
	d.RequestedPower = power[terminalID]
	if alreadyOn {
		return c.accept(ctx, d, "Already ON"), nil
	}

	d.PotentialTotal = totalOn + d.RequestedPower
	if d.PotentialTotal <= d.Capacity {
		c.log.Infof("accepted on for %s (%.1f W), total after %.1f/%.1f W", terminalID, d.RequestedPower, d.PotentialTotal, d.Capacity)
		return c.accept(ctx, d, "Command published"), nil
	}
	available := d.Capacity - totalOn
	d.Available = &available
	d.Reason = ReasonThresholdExceeded
	d.Message = "Capacity exceeded"
	c.log.Infof("rejected on for %s: required %.1f W, available %.1f/%.1f W", terminalID, d.RequestedPower, available, d.Capacity)
	c.publish(d)
	return d, nil
}

func (c *Controller) accept(ctx context.Context, d Decision, msg string) Decision {
	d.Accepted = true
	d.Message = msg
	d.Results = c.deps.Sender.Dispatch(ctx, []model.Command{{TerminalID: d.TerminalID, State: d.State}})
	c.publish(d)
	return d
}

func (c *Controller) publish(d Decision) {
	if c.deps.Bus == nil {
		return
	}
	ev := events.AdmissionEvent{
		TerminalID: d.TerminalID,
		State:      d.State,
		Accepted:   d.Accepted,
		Reason:     d.Reason,
		Capacity:   d.Capacity,
		Potential:  d.PotentialTotal,
	}
	if d.Available != nil {
		ev.Available = *d.Available
	}
	c.deps.Bus.Publish(ev)
}
