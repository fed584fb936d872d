package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/farreladriann/slc-backend/core/model"
)

// MemoryStore keeps terminals, devices and readings in memory.
type MemoryStore struct {
	mu        sync.RWMutex
	terminals map[string]model.Terminal
	devices   map[string]model.Device
	readings  []model.PowerReading
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		terminals: map[string]model.Terminal{},
		devices:   map[string]model.Device{},
	}
}

func (s *MemoryStore) ListTerminals(context.Context) ([]model.Terminal, error) {
	s.mu.RLock()
	res := make([]model.Terminal, 0, len(s.terminals))
	for _, t := range s.terminals {
		res = append(res, t)
	}
	s.mu.RUnlock()
	SortTerminals(res)
	return res, nil
}

func (s *MemoryStore) GetTerminal(_ context.Context, id string) (model.Terminal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.terminals[id]
	if !ok {
		return model.Terminal{}, fmt.Errorf("terminal %s: %w", id, ErrNotFound)
	}
	return t, nil
}

func (s *MemoryStore) UpsertTerminal(_ context.Context, t model.Terminal) error {
	if t.ID == "" {
		return fmt.Errorf("terminal id required")
	}
	s.mu.Lock()
	s.terminals[t.ID] = t
	if t.DeviceID != "" {
		if _, ok := s.devices[t.DeviceID]; !ok {
			s.devices[t.DeviceID] = model.Device{ID: t.DeviceID}
		}
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) update(id string, fn func(*model.Terminal)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.terminals[id]
	if !ok {
		return fmt.Errorf("terminal %s: %w", id, ErrNotFound)
	}
	fn(&t)
	s.terminals[id] = t
	return nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id string, status model.Status) error {
	return s.update(id, func(t *model.Terminal) { t.Status = status })
}

func (s *MemoryStore) UpdatePriority(_ context.Context, id string, priority int) error {
	return s.update(id, func(t *model.Terminal) { t.Priority = priority })
}

func (s *MemoryStore) SetSchedule(_ context.Context, id string, start, finish *time.Time) error {
	return s.update(id, func(t *model.Terminal) {
		t.StartOn = start
		t.FinishOn = finish
	})
}

func (s *MemoryStore) CapacityThreshold(context.Context) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.devices))
	for id := range s.devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if th := s.devices[id].Threshold; th != nil {
			return *th, true, nil
		}
	}
	return 0, false, nil
}

func (s *MemoryStore) SetCapacityThreshold(_ context.Context, deviceID string, watts float64) error {
	if deviceID == "" {
		return fmt.Errorf("device id required")
	}
	s.mu.Lock()
	s.devices[deviceID] = model.Device{ID: deviceID, Threshold: &watts}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) LatestPowerByTerminal(context.Context) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	latest := map[string]model.PowerReading{}
	for _, r := range s.readings {
		if cur, ok := latest[r.TerminalID]; !ok || !r.Timestamp.Before(cur.Timestamp) {
			latest[r.TerminalID] = r
		}
	}
	out := make(map[string]float64, len(latest))
	for id, r := range latest {
		out[id] = r.PowerW
	}
	return out, nil
}

func (s *MemoryStore) InsertReading(_ context.Context, r model.PowerReading) error {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	s.mu.Lock()
	s.readings = append(s.readings, r)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Readings(_ context.Context, from, to time.Time) ([]model.PowerReading, error) {
	s.mu.RLock()
	var res []model.PowerReading
	for _, r := range s.readings {
		if r.Timestamp.Before(from) || !r.Timestamp.Before(to) {
			continue
		}
		res = append(res, r)
	}
	s.mu.RUnlock()
	sort.SliceStable(res, func(i, j int) bool { return res[i].Timestamp.Before(res[j].Timestamp) })
	return res, nil
}

func (s *MemoryStore) Close() error { return nil }
