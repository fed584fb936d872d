package allocation

import "fmt"

const (
	// DefaultCapacityW is used when no device threshold is configured.
	DefaultCapacityW = 1500.0
	// DefaultQuantizeUnitW converts watts into knapsack weight units.
	DefaultQuantizeUnitW = 1.0
	// DefaultMaxExactItems is the batch size above which AUTO switches to the
	// approximate solver.
	DefaultMaxExactItems = 200
	// DefaultMaxExactCells bounds the size of the dynamic programming table.
	DefaultMaxExactCells = 2_000_000
)

// Config defines allocation-related settings.
type Config struct {
	DefaultCapacityW float64 `json:"default_capacity_w"`
	QuantizeUnitW    float64 `json:"quantize_unit_w"`
	MaxExactItems    int     `json:"max_exact_items"`
	MaxExactCells    int     `json:"max_exact_cells"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.DefaultCapacityW == 0 {
		c.DefaultCapacityW = DefaultCapacityW
	}
	if c.QuantizeUnitW <= 0 {
		c.QuantizeUnitW = DefaultQuantizeUnitW
	}
	if c.MaxExactItems <= 0 {
		c.MaxExactItems = DefaultMaxExactItems
	}
	if c.MaxExactCells <= 0 {
		c.MaxExactCells = DefaultMaxExactCells
	}
}

// Validate checks the configured values.
func (c Config) Validate() error {
	if c.DefaultCapacityW < 0 {
		return fmt.Errorf("default_capacity_w must not be negative")
	}
	if c.QuantizeUnitW < 0 {
		return fmt.Errorf("quantize_unit_w must be positive")
	}
	return nil
}
