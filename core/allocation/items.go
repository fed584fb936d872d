package allocation

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Batch is an offline allocation input: a capacity and its candidates.
type Batch struct {
	Capacity float64 `json:"capacity" yaml:"capacity"`
	Mode     Mode    `json:"mode" yaml:"mode"`
	Items    []Item  `json:"items" yaml:"items"`
}

// LoadBatch loads a Batch from a JSON or YAML file.
func LoadBatch(path string) (Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return Batch{}, err
	}
	defer func() { _ = f.Close() }()
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return DecodeBatch(f, ext)
}

// DecodeBatch reads a Batch from r in the given format.
func DecodeBatch(r io.Reader, format string) (Batch, error) {
	var b Batch
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&b); err != nil {
			return b, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&b); err != nil {
			return b, err
		}
	default:
		return b, fmt.Errorf("unsupported format: %s", format)
	}
	for i, it := range b.Items {
		if it.TerminalID == "" {
			return b, fmt.Errorf("item %d: terminalId required", i)
		}
	}
	return b, nil
}
