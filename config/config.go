// Package config loads the controller configuration from a YAML or JSON file
// with K_ prefixed environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/farreladriann/slc-backend/core/allocation"
	"github.com/farreladriann/slc-backend/core/dispatch"
	"github.com/farreladriann/slc-backend/core/factory"
	"github.com/farreladriann/slc-backend/core/metrics"
	"github.com/farreladriann/slc-backend/core/scheduler"
	"github.com/farreladriann/slc-backend/core/statistics"
	"github.com/farreladriann/slc-backend/infra/mqtt"
	"github.com/farreladriann/slc-backend/infra/store"
	"github.com/farreladriann/slc-backend/infra/telemetry"
)

type Config struct {
	MQTT       mqtt.Config             `json:"mqtt"`
	Allocation allocation.Config       `json:"allocation"`
	Scheduler  scheduler.Config        `json:"scheduler"`
	Watcher    scheduler.WatcherConfig `json:"watcher"`
	Dispatch   dispatch.Config         `json:"dispatch"`
	Store      store.Config            `json:"store"`
	Audit      factory.ModuleConfig    `json:"audit"`
	Metrics    metrics.Config          `json:"metrics"`
	Telemetry  telemetry.Config        `json:"telemetry"`
	Statistics statistics.Config       `json:"statistics"`
	HTTP       HTTPConfig              `json:"http"`
	Sentry     SentryConfig            `json:"sentry"`
}

// Load reads path and applies environment overrides such as
// K_MQTT__BROKER=tcp://broker:1883. An empty path loads defaults and the
// environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.MQTT.SetDefaults()
	c.Allocation.SetDefaults()
	c.Scheduler.SetDefaults()
	c.Watcher.SetDefaults()
	c.Dispatch.SetDefaults()
	c.Store.SetDefaults()
	c.Statistics.SetDefaults()
	c.HTTP.SetDefaults()
	c.Sentry.SetDefaults()
	if c.Telemetry.Topic == "" {
		c.Telemetry.Topic = c.MQTT.UpstreamTopic
	}
	if c.Audit.Type == "" {
		c.Audit.Type = "jsonl"
	}
}

// Validate checks every section and reports the first failure.
func (c *Config) Validate() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"mqtt", c.MQTT.Validate},
		{"allocation", c.Allocation.Validate},
		{"scheduler", c.Scheduler.Validate},
		{"dispatch", c.Dispatch.Validate},
		{"store", c.Store.Validate},
		{"statistics", c.Statistics.Validate},
		{"http", c.HTTP.Validate},
		{"sentry", c.Sentry.Validate},
	}
	for _, ch := range checks {
		if err := ch.fn(); err != nil {
			return fmt.Errorf("%s: %w", ch.name, err)
		}
	}
	return nil
}
