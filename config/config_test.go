package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "config.yaml", `mqtt:
  broker: "tcp://localhost:1883"
  client_id: "cli"
  username: "user"
  password: "pass"
  downstream_topic: "boards/cmd"
allocation:
  default_capacity_w: 2000
  quantize_unit_w: 10
scheduler:
  interval_seconds: 90
  auto_start: true
dispatch:
  command_delay_ms: 200
store:
  driver: memory
  terminals:
    - terminalId: terminal_1
      terminalPriority: 1
audit:
  type: sqlite
  conf:
    path: audit.db
metrics:
  sinks:
    - type: "nop"
statistics:
  price_per_kwh: 1444.7
http:
  token: secret
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "cli", cfg.MQTT.ClientID)
	assert.Equal(t, "boards/cmd", cfg.MQTT.DownstreamTopic)
	assert.Equal(t, "stm32/data/upstream", cfg.MQTT.UpstreamTopic)
	assert.Equal(t, "stm32/data/upstream", cfg.Telemetry.Topic)
	assert.Equal(t, 2000.0, cfg.Allocation.DefaultCapacityW)
	assert.Equal(t, 10.0, cfg.Allocation.QuantizeUnitW)
	assert.Equal(t, 90*time.Second, cfg.Scheduler.Interval())
	assert.True(t, cfg.Scheduler.AutoStart)
	assert.Equal(t, 200*time.Millisecond, cfg.Dispatch.Delay())
	assert.Equal(t, "memory", cfg.Store.Driver)
	require.Len(t, cfg.Store.Terminals, 1)
	assert.Equal(t, 1, cfg.Store.Terminals[0].Priority)
	assert.Equal(t, "sqlite", cfg.Audit.Type)
	assert.Equal(t, "audit.db", cfg.Audit.Conf["path"])
	require.Len(t, cfg.Metrics.Sinks, 1)
	assert.Equal(t, "nop", cfg.Metrics.Sinks[0].Type)
	assert.Equal(t, 1444.7, cfg.Statistics.PricePerKWh)
	assert.Equal(t, 10.0, cfg.Statistics.SampleSeconds)
	assert.Equal(t, ":3000", cfg.HTTP.Addr)
	assert.Equal(t, "secret", cfg.HTTP.Token)
	assert.True(t, cfg.Watcher.IsEnabled())
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "config.json", `{"mqtt":{"broker":"tcp://file:1883"},"http":{"addr":":8080"}}`)
	t.Setenv("K_MQTT__BROKER", "tcp://env:1883")
	t.Setenv("K_HTTP__TOKEN", "from-env")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tcp://env:1883", cfg.MQTT.Broker)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "from-env", cfg.HTTP.Token)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "jsonl", cfg.Audit.Type)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 1500.0, cfg.Allocation.DefaultCapacityW)
	assert.Equal(t, 7*time.Second, cfg.Dispatch.Delay())
	assert.Equal(t, "production", cfg.Sentry.Environment)
	assert.Empty(t, cfg.Sentry.DSN)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(writeConfig(t, "config.toml", ``))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "bad.yaml", "store:\n  driver: postgres\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store")

	_, err = Load(writeConfig(t, "sentry.yaml", "sentry:\n  traces_sample_rate: 2\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sentry")
}
