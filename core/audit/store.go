// Package audit persists one record per allocation cycle so operators can
// review what was decided and which commands were delivered.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/farreladriann/slc-backend/core/allocation"
	"github.com/farreladriann/slc-backend/core/model"
)

const (
	SourceScheduler = "scheduler"
	SourceManual    = "manual"
)

// Record captures one allocation decision and its delivery outcome.
type Record struct {
	ID            string                `json:"id"`
	Timestamp     time.Time             `json:"timestamp"`
	Source        string                `json:"source"`
	Capacity      float64               `json:"capacity"`
	Algorithm     string                `json:"algorithm"`
	SelectedIDs   []string              `json:"selected_ids"`
	TotalPower    float64               `json:"total_power"`
	TotalPriority int                   `json:"total_priority"`
	DurationMs    float64               `json:"duration_ms"`
	Commands      []model.CommandResult `json:"commands"`
}

// NewRecord builds a record for a finished cycle.
func NewRecord(source string, capacity float64, res allocation.Result, cmds []model.CommandResult) Record {
	return Record{
		ID:            uuid.NewString(),
		Timestamp:     time.Now(),
		Source:        source,
		Capacity:      capacity,
		Algorithm:     res.Algorithm.String(),
		SelectedIDs:   append([]string(nil), res.SelectedIDs...),
		TotalPower:    res.TotalPower,
		TotalPriority: res.TotalValue,
		DurationMs:    float64(res.Duration) / float64(time.Millisecond),
		Commands:      cmds,
	}
}

// Involves reports whether the terminal was selected or commanded.
func (r Record) Involves(terminalID string) bool {
	for _, id := range r.SelectedIDs {
		if id == terminalID {
			return true
		}
	}
	for _, c := range r.Commands {
		if c.TerminalID == terminalID {
			return true
		}
	}
	return false
}

// Query defines filters for retrieving records. Zero values match everything.
// Limit keeps only the most recent matches.
type Query struct {
	Start      time.Time
	End        time.Time
	TerminalID string
	Source     string
	Limit      int
}

// Match reports whether r passes the filters of q.
func (q Query) Match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Source != "" && r.Source != q.Source {
		return false
	}
	if q.TerminalID != "" && !r.Involves(q.TerminalID) {
		return false
	}
	return true
}

func (q Query) limit(res []Record) []Record {
	if q.Limit > 0 && len(res) > q.Limit {
		return res[len(res)-q.Limit:]
	}
	return res
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// NopStore discards records.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error           { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }
