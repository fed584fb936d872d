package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/farreladriann/slc-backend/core/events"
	"github.com/farreladriann/slc-backend/core/logger"
	"github.com/farreladriann/slc-backend/core/model"
	"github.com/farreladriann/slc-backend/core/mqtt"
	"github.com/farreladriann/slc-backend/internal/eventbus"
)

// Sender delivers batches of relay commands. It is implemented by Dispatcher
// and replaced by fakes in tests of the components using it.
type Sender interface {
	Dispatch(ctx context.Context, cmds []model.Command) []model.CommandResult
}

// Dispatcher publishes relay commands one at a time with a fixed pause after
// each of them.
type Dispatcher struct {
	publisher mqtt.Publisher
	delay     time.Duration
	timeout   time.Duration
	logger    logger.Logger
	bus       eventbus.EventBus
	wait      func(ctx context.Context, d time.Duration) error
}

// NewDispatcher creates a dispatcher publishing through pub. bus may be nil.
func NewDispatcher(pub mqtt.Publisher, cfg Config, log logger.Logger, bus eventbus.EventBus) (*Dispatcher, error) {
	if pub == nil {
		return nil, fmt.Errorf("dispatch: nil publisher provided to NewDispatcher")
	}
	cfg.SetDefaults()
	return &Dispatcher{
		publisher: pub,
		delay:     cfg.Delay(),
		timeout:   cfg.Timeout(),
		logger:    logger.OrNop(log),
		bus:       bus,
		wait:      sleepCtx,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch sends cmds in order and returns one result per command, in the same
// order. Every delivery, successful or not and including the last one, is
// followed by the configured delay. A failed command does not stop the batch.
// Once ctx is done the remaining commands are reported as failed without being
// published.
func (d *Dispatcher) Dispatch(ctx context.Context, cmds []model.Command) []model.CommandResult {
	results := make([]model.CommandResult, len(cmds))
	for i, cmd := range cmds {
		results[i] = model.CommandResult{TerminalID: cmd.TerminalID, State: cmd.State}
		if err := ctx.Err(); err != nil {
			d.abort(results, cmds, i, err)
			return results
		}
		if err := d.send(ctx, cmd); err != nil {
			results[i].Err = err.Error()
			d.logger.Warnf("command %s -> %s failed: %v", cmd.TerminalID, cmd.State, err)
		} else {
			results[i].OK = true
			d.logger.Debugf("command %s -> %s sent", cmd.TerminalID, cmd.State)
		}
		if d.delay <= 0 {
			continue
		}
		if err := d.wait(ctx, d.delay); err != nil && i+1 < len(cmds) {
			d.abort(results, cmds, i+1, err)
			return results
		}
	}
	return results
}

func (d *Dispatcher) abort(results []model.CommandResult, cmds []model.Command, from int, err error) {
	for j := from; j < len(cmds); j++ {
		results[j] = model.CommandResult{TerminalID: cmds[j].TerminalID, State: cmds[j].State, Err: err.Error()}
		commandsDelivered.WithLabelValues(string(cmds[j].State), "canceled").Inc()
	}
	d.logger.Warnf("dispatch canceled, %d commands not sent: %v", len(cmds)-from, err)
}

// send publishes one command under the per-command timeout.
func (d *Dispatcher) send(ctx context.Context, cmd model.Command) error {
	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	start := time.Now()
	err := d.publisher.PublishCommand(cctx, cmd)
	lat := time.Since(start)
	outcome := "ok"
	if err != nil {
		outcome = "failed"
		if errors.Is(err, mqtt.ErrPublishTimeout) || errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		mqttFailure.Inc()
	} else {
		mqttSuccess.Inc()
	}
	commandsDelivered.WithLabelValues(string(cmd.State), outcome).Inc()
	commandLatency.WithLabelValues(string(cmd.State)).Observe(lat.Seconds())
	if d.bus != nil {
		d.bus.Publish(events.CommandEvent{
			TerminalID: cmd.TerminalID,
			State:      cmd.State,
			OK:         err == nil,
			Err:        err,
			Latency:    lat,
		})
	}
	return err
}
