package scheduler

import (
	"fmt"
	"time"
)

const (
	// DefaultInterval applies to loops started on demand.
	DefaultInterval = 60 * time.Second
	// DefaultAutoInterval applies to the loop started with the service.
	DefaultAutoInterval = 30 * time.Second
	// DefaultWatchInterval is the schedule window check period.
	DefaultWatchInterval = 30 * time.Second
)

// Config defines scheduler-related settings.
type Config struct {
	IntervalSeconds     int  `json:"interval_seconds"`
	AutoStart           bool `json:"auto_start"`
	AutoIntervalSeconds int  `json:"auto_interval_seconds"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.IntervalSeconds <= 0 {
		c.IntervalSeconds = int(DefaultInterval / time.Second)
	}
	if c.AutoIntervalSeconds <= 0 {
		c.AutoIntervalSeconds = int(DefaultAutoInterval / time.Second)
	}
}

// Validate checks the configured values.
func (c Config) Validate() error {
	if c.IntervalSeconds < 0 || c.AutoIntervalSeconds < 0 {
		return fmt.Errorf("scheduler intervals must not be negative")
	}
	return nil
}

// Interval returns the default loop period.
func (c Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// AutoInterval returns the period of the loop started with the service.
func (c Config) AutoInterval() time.Duration {
	return time.Duration(c.AutoIntervalSeconds) * time.Second
}

// WatcherConfig defines the schedule window watcher settings.
type WatcherConfig struct {
	Enabled         *bool `json:"enabled"`
	IntervalSeconds int   `json:"interval_seconds"`
}

// SetDefaults fills unset fields.
func (c *WatcherConfig) SetDefaults() {
	if c.Enabled == nil {
		on := true
		c.Enabled = &on
	}
	if c.IntervalSeconds <= 0 {
		c.IntervalSeconds = int(DefaultWatchInterval / time.Second)
	}
}

// IsEnabled reports whether the watcher should run.
func (c WatcherConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Interval returns the check period.
func (c WatcherConfig) Interval() time.Duration {
	if c.IntervalSeconds <= 0 {
		return DefaultWatchInterval
	}
	return time.Duration(c.IntervalSeconds) * time.Second
}
