package metrics

import "github.com/prometheus/client_golang/prometheus"

// DropCounter reports events a bus could not deliver.
type DropCounter interface {
	Dropped() uint64
}

// RegisterBusMetrics exposes the drop count of bus as
// eventbus_dropped_events_total. A nil reg means the default registerer.
func RegisterBusMetrics(reg prometheus.Registerer, bus DropCounter) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return reg.Register(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "eventbus_dropped_events_total",
		Help: "Events dropped because a subscriber buffer was full",
	}, func() float64 { return float64(bus.Dropped()) }))
}
