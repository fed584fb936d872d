package simulator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadDrawProfile reads per-terminal draws in watts from a JSON or YAML file
// of the form {"terminal_1": 800, "terminal_2": 500}.
func LoadDrawProfile(path string) (map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("unsupported profile format: %s", ext)
	}
	// YAML is a superset of JSON
	var m map[string]float64
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	return m, nil
}
