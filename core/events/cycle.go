package events

import (
	"time"

	"github.com/farreladriann/slc-backend/core/allocation"
)

// CycleEvent is published after every allocation cycle, successful or not.
// Source is "scheduler" or "manual".
type CycleEvent struct {
	Source     string
	Capacity   float64
	Candidates int
	Result     allocation.Result
	Failed     int
	Err        error
	Time       time.Time
}

// CycleSkippedEvent is published when a tick finds a cycle in flight.
type CycleSkippedEvent struct {
	Source string
	Time   time.Time
}
