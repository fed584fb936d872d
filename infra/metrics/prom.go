package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/farreladriann/slc-backend/core/metrics"
)

// PromSink exposes allocation, admission and telemetry figures as Prometheus
// collectors. Command delivery is counted by the dispatch package itself.
type PromSink struct {
	cycles        *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec
	skipped       *prometheus.CounterVec
	capacity      prometheus.Gauge
	allocated     prometheus.Gauge
	selected      prometheus.Gauge
	admissions    *prometheus.CounterVec
	terminalPower *prometheus.GaugeVec
	terminalOn    *prometheus.GaugeVec
}

// NewPromSink registers the collectors on the default Prometheus registerer.
// The HTTP endpoint is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers the collectors on reg. Collectors that are
// already registered are reused, so several sinks may share a registry.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.cycles, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "allocation_cycles_total",
		Help: "Allocation cycles by source, algorithm and outcome",
	}, []string{"source", "algorithm", "outcome"})); err != nil {
		return nil, err
	}
	if s.cycleDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "allocation_solve_duration_seconds",
		Help:    "Time spent in the allocation engine",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
	}, []string{"algorithm"})); err != nil {
		return nil, err
	}
	if s.skipped, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "allocation_cycles_skipped_total",
		Help: "Ticks dropped because a cycle was still running",
	}, []string{"source"})); err != nil {
		return nil, err
	}
	if s.capacity, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "allocation_capacity_watts",
		Help: "Capacity budget of the last allocation cycle",
	})); err != nil {
		return nil, err
	}
	if s.allocated, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "allocation_selected_power_watts",
		Help: "Power of the terminals selected by the last cycle",
	})); err != nil {
		return nil, err
	}
	if s.selected, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "allocation_selected_terminals",
		Help: "Number of terminals selected by the last cycle",
	})); err != nil {
		return nil, err
	}
	if s.admissions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "admission_decisions_total",
		Help: "Manual on/off requests by requested state and outcome",
	}, []string{"state", "accepted", "reason"})); err != nil {
		return nil, err
	}
	if s.terminalPower, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "terminal_power_watts",
		Help: "Last reported power draw per terminal",
	}, []string{"terminal_id"})); err != nil {
		return nil, err
	}
	if s.terminalOn, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "terminal_relay_on",
		Help: "Last reported relay state per terminal (1 on, 0 off)",
	}, []string{"terminal_id"})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordCycle counts the cycle and, when it succeeded, updates the gauges.
func (s *PromSink) RecordCycle(res coremetrics.CycleResult) error {
	outcome := "ok"
	switch {
	case res.Err != "":
		outcome = "error"
	case res.Failed > 0:
		outcome = "partial"
	}
	algo := res.Algorithm
	if algo == "" {
		algo = "none"
	}
	s.cycles.WithLabelValues(res.Source, algo, outcome).Inc()
	if res.Err != "" {
		return nil
	}
	s.cycleDuration.WithLabelValues(algo).Observe(res.Duration.Seconds())
	s.capacity.Set(res.Capacity)
	s.allocated.Set(res.TotalPower)
	s.selected.Set(float64(res.Selected))
	return nil
}

// RecordCycleSkipped counts a dropped tick.
func (s *PromSink) RecordCycleSkipped(source string) error {
	s.skipped.WithLabelValues(source).Inc()
	return nil
}

// RecordAdmission counts an admission decision.
func (s *PromSink) RecordAdmission(ev coremetrics.AdmissionEvent) error {
	s.admissions.WithLabelValues(ev.State, strconv.FormatBool(ev.Accepted), ev.Reason).Inc()
	return nil
}

// RecordTerminalState updates the per-terminal gauges.
func (s *PromSink) RecordTerminalState(ev coremetrics.TerminalStateEvent) error {
	s.terminalPower.WithLabelValues(ev.TerminalID).Set(ev.PowerW)
	on := 0.0
	if ev.Status == "on" {
		on = 1
	}
	s.terminalOn.WithLabelValues(ev.TerminalID).Set(on)
	return nil
}
