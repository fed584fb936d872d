package metrics

import (
	"strings"

	"github.com/farreladriann/slc-backend/core/factory"
)

// Config lists the sinks cycle events are exported to. PrometheusPort, when
// set, exposes /metrics on its own listener.
type Config struct {
	Sinks          []factory.ModuleConfig `json:"sinks"`
	PrometheusPort string                 `json:"prometheus_port"`
}

// PrometheusAddr returns the listen address for the scrape endpoint, or ""
// when it is disabled. A bare port is bound on every interface.
func (c Config) PrometheusAddr() string {
	switch {
	case c.PrometheusPort == "":
		return ""
	case strings.Contains(c.PrometheusPort, ":"):
		return c.PrometheusPort
	default:
		return ":" + c.PrometheusPort
	}
}
