// Package store provides the persistent backends of the controller.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/farreladriann/slc-backend/core/model"
	"github.com/farreladriann/slc-backend/core/store"
)

// Config selects and seeds the backend.
type Config struct {
	// Driver is "sqlite" (default) or "memory".
	Driver string `json:"driver"`
	Path   string `json:"path"`
	// Terminals and Devices are created at startup when missing.
	Terminals []model.Terminal `json:"terminals"`
	Devices   []model.Device   `json:"devices"`
}

// SetDefaults fills the driver and database path.
func (c *Config) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "sqlite"
	}
	c.Driver = strings.ToLower(c.Driver)
	if c.Driver == "sqlite" && c.Path == "" {
		c.Path = "slc.db"
	}
}

// Validate checks the driver name.
func (c Config) Validate() error {
	switch c.Driver {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unknown store driver %s", c.Driver)
	}
	for _, t := range c.Terminals {
		if t.ID == "" {
			return fmt.Errorf("seed terminal without terminalId")
		}
	}
	return nil
}

// Open creates the configured backend and applies the seed.
func Open(ctx context.Context, cfg Config) (store.Store, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var st store.Store
	switch cfg.Driver {
	case "memory":
		st = store.NewMemoryStore()
	default:
		s, err := NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.Path, err)
		}
		st = s
	}
	if err := Seed(ctx, st, cfg.Terminals, cfg.Devices); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// Seed creates the given terminals when they do not exist yet and sets the
// device thresholds. Existing terminals keep their state.
func Seed(ctx context.Context, st store.TerminalStore, terms []model.Terminal, devices []model.Device) error {
	for _, t := range terms {
		_, err := st.GetTerminal(ctx, t.ID)
		switch {
		case err == nil:
			continue
		case !errors.Is(err, store.ErrNotFound):
			return err
		}
		if err := st.UpsertTerminal(ctx, t); err != nil {
			return fmt.Errorf("seed terminal %s: %w", t.ID, err)
		}
	}
	for _, d := range devices {
		if d.Threshold == nil {
			continue
		}
		if err := st.SetCapacityThreshold(ctx, d.ID, *d.Threshold); err != nil {
			return fmt.Errorf("seed device %s: %w", d.ID, err)
		}
	}
	return nil
}
