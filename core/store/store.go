// Package store defines the persistence contracts consumed by the controller
// and an in-memory implementation used by tests and the simulator.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/farreladriann/slc-backend/core/model"
)

// ErrNotFound is returned when a terminal or device does not exist.
var ErrNotFound = errors.New("not found")

// TerminalStore holds terminal configuration and last reported status.
type TerminalStore interface {
	// ListTerminals returns all terminals ordered by priority ascending.
	// Terminals without a priority come last; ties are broken by id.
	ListTerminals(ctx context.Context) ([]model.Terminal, error)
	GetTerminal(ctx context.Context, id string) (model.Terminal, error)
	UpsertTerminal(ctx context.Context, t model.Terminal) error
	UpdateStatus(ctx context.Context, id string, status model.Status) error
	UpdatePriority(ctx context.Context, id string, priority int) error
	// SetSchedule sets or, with nil bounds, clears the activation window.
	SetSchedule(ctx context.Context, id string, start, finish *time.Time) error
	// CapacityThreshold returns the configured capacity budget in watts. ok is
	// false when no device carries a threshold.
	CapacityThreshold(ctx context.Context) (watts float64, ok bool, err error)
	SetCapacityThreshold(ctx context.Context, deviceID string, watts float64) error
}

// TelemetryStore holds power readings.
type TelemetryStore interface {
	// LatestPowerByTerminal maps each terminal id to its most recent reading.
	LatestPowerByTerminal(ctx context.Context) (map[string]float64, error)
	InsertReading(ctx context.Context, r model.PowerReading) error
	// Readings returns samples with from <= timestamp < to, oldest first.
	Readings(ctx context.Context, from, to time.Time) ([]model.PowerReading, error)
}

// Store combines both contracts.
type Store interface {
	TerminalStore
	TelemetryStore
	Close() error
}

// SortTerminals orders terminals the way ListTerminals must return them.
func SortTerminals(terms []model.Terminal) {
	sort.SliceStable(terms, func(i, j int) bool {
		a, b := terms[i], terms[j]
		if a.HasPriority() != b.HasPriority() {
			return a.HasPriority()
		}
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.ID < b.ID
	})
}

// Capacity resolves the capacity budget: the device threshold when one is
// configured, fallback otherwise.
func Capacity(ctx context.Context, ts TerminalStore, fallback float64) (float64, error) {
	w, ok, err := ts.CapacityThreshold(ctx)
	if err != nil {
		return 0, fmt.Errorf("capacity threshold: %w", err)
	}
	if !ok {
		return fallback, nil
	}
	return w, nil
}
