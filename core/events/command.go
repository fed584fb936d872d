package events

import (
	"time"

	"github.com/farreladriann/slc-backend/core/model"
)

// CommandEvent is published for each relay command handed to the transport.
type CommandEvent struct {
	TerminalID string
	State      model.Status
	OK         bool
	Err        error
	Latency    time.Duration
}

// TerminalStateEvent is published when a device reports a terminal.
type TerminalStateEvent struct {
	TerminalID string
	Status     model.Status
	PowerW     float64
	Time       time.Time
}
