package telemetry

import "github.com/prometheus/client_golang/prometheus"

var (
	messagesIngested *prometheus.CounterVec
	readingsStored   prometheus.Counter
	lastIngest       prometheus.Gauge
)

func newCollectors() (*prometheus.CounterVec, prometheus.Counter, prometheus.Gauge) {
	msgs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "telemetry_messages_total",
		Help: "Upstream messages by outcome",
	}, []string{"outcome"})
	readings := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_readings_total",
		Help: "Power readings stored from upstream messages",
	})
	last := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "telemetry_last_ingest_timestamp_seconds",
		Help: "Unix timestamp of the last stored reading",
	})
	return msgs, readings, last
}

func init() {
	messagesIngested, readingsStored, lastIngest = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers ingest metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(messagesIngested, readingsStored, lastIngest)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	messagesIngested, readingsStored, lastIngest = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
