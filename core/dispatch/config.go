package dispatch

import (
	"fmt"
	"time"
)

const (
	// DefaultCommandDelay follows every published command so that the
	// controller board can settle between relay switches.
	DefaultCommandDelay = 7 * time.Second
	// DefaultCommandTimeout bounds a single publish.
	DefaultCommandTimeout = 5 * time.Second
)

// Config defines dispatch-related settings. A negative delay disables the
// pause after each command.
type Config struct {
	CommandDelayMs        int `json:"command_delay_ms"`
	CommandTimeoutSeconds int `json:"command_timeout_seconds"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.CommandDelayMs == 0 {
		c.CommandDelayMs = int(DefaultCommandDelay / time.Millisecond)
	}
	if c.CommandTimeoutSeconds <= 0 {
		c.CommandTimeoutSeconds = int(DefaultCommandTimeout / time.Second)
	}
}

// Validate checks the configured values.
func (c Config) Validate() error {
	if c.CommandTimeoutSeconds < 0 {
		return fmt.Errorf("command_timeout_seconds must not be negative")
	}
	return nil
}

// Delay returns the pause following each command.
func (c Config) Delay() time.Duration {
	if c.CommandDelayMs < 0 {
		return 0
	}
	return time.Duration(c.CommandDelayMs) * time.Millisecond
}

// Timeout returns the per-command publish deadline.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.CommandTimeoutSeconds) * time.Second
}
