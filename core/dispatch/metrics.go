package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	commandLatency    *prometheus.HistogramVec
	commandsDelivered *prometheus.CounterVec
	mqttSuccess       prometheus.Counter
	mqttFailure       prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.HistogramVec, *prometheus.CounterVec, prometheus.Counter, prometheus.Counter) {
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_command_latency_seconds",
			Help:    "Time spent publishing a relay command",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"state"},
	)
	cmds := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_commands_total",
			Help: "Number of relay commands handed to the transport",
		},
		[]string{"state", "outcome"},
	)
	suc := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mqtt_publish_success_total",
			Help: "Number of successful MQTT publish operations",
		},
	)
	fail := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mqtt_publish_failure_total",
			Help: "Number of failed MQTT publish operations",
		},
	)
	return lat, cmds, suc, fail
}

func init() {
	commandLatency, commandsDelivered, mqttSuccess, mqttFailure = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(commandLatency, commandsDelivered, mqttSuccess, mqttFailure)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	commandLatency, commandsDelivered, mqttSuccess, mqttFailure = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
