package allocation

import (
	"fmt"
	"strings"
)

// Mode selects the solver used by the engine. Results report the concrete
// algorithm that ran, never ModeAuto.
type Mode int

const (
	ModeAuto Mode = iota
	ModeExact
	ModeApproximate
)

// String returns the canonical upper case name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "AUTO"
	case ModeExact:
		return "EXACT"
	case ModeApproximate:
		return "APPROXIMATE"
	default:
		return "unknown"
	}
}

// ParseMode accepts the canonical names as well as the DP and GREEDY aliases.
// An empty string yields ModeAuto.
func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "AUTO":
		return ModeAuto, nil
	case "EXACT", "DP":
		return ModeExact, nil
	case "APPROXIMATE", "GREEDY":
		return ModeApproximate, nil
	default:
		return ModeAuto, fmt.Errorf("unknown allocation mode %q", s)
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
