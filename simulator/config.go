// Package simulator emulates outlet boards over MQTT. Each board consumes the
// downstream relay commands and reports one reading per outlet upstream.
package simulator

import (
	"fmt"
	"time"

	infmqtt "github.com/farreladriann/slc-backend/infra/mqtt"
)

const (
	DefaultOutlets  = 4
	DefaultDrawW    = 400.0
	DefaultVoltage  = 220.0
	DefaultInterval = 10 * time.Second
)

// Config holds parameters for the simulator.
type Config struct {
	Broker          string
	ClientID        string
	UpstreamTopic   string
	DownstreamTopic string
	Outlets         int
	Interval        time.Duration
	// DrawW is the load of an outlet with its relay closed. Draws maps
	// terminal ids to per-outlet overrides.
	DrawW   float64
	Draws   map[string]float64
	Voltage float64
	// Jitter is the relative noise applied to each reading, 0.1 = ±10%.
	Jitter    float64
	InitialOn bool
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Broker == "" {
		c.Broker = "tcp://localhost:1883"
	}
	if c.ClientID == "" {
		c.ClientID = fmt.Sprintf("slc-sim-%d", time.Now().UnixNano())
	}
	if c.UpstreamTopic == "" {
		c.UpstreamTopic = infmqtt.DefaultUpstreamTopic
	}
	if c.DownstreamTopic == "" {
		c.DownstreamTopic = infmqtt.DefaultDownstreamTopic
	}
	if c.Outlets <= 0 {
		c.Outlets = DefaultOutlets
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.DrawW == 0 {
		c.DrawW = DefaultDrawW
	}
	if c.Voltage == 0 {
		c.Voltage = DefaultVoltage
	}
}

// Validate checks the configured values.
func (c Config) Validate() error {
	if c.DrawW < 0 || c.Voltage <= 0 {
		return fmt.Errorf("draw must not be negative and voltage must be positive")
	}
	if c.Jitter < 0 || c.Jitter >= 1 {
		return fmt.Errorf("jitter must be in [0,1)")
	}
	for id, w := range c.Draws {
		if w < 0 {
			return fmt.Errorf("negative draw for %s", id)
		}
	}
	return nil
}
