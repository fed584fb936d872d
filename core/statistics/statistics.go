// Package statistics aggregates power readings into energy and cost figures.
package statistics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/farreladriann/slc-backend/core/model"
	"github.com/farreladriann/slc-backend/core/store"
)

// Period selects the aggregation granularity.
type Period string

const (
	Daily   Period = "daily"
	Monthly Period = "monthly"
	Yearly  Period = "yearly"
)

// ParsePeriod accepts daily, monthly or yearly. Empty means daily.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return Daily, nil
	case Daily, Monthly, Yearly:
		return p, nil
	default:
		return "", fmt.Errorf("unknown statistics period %q", s)
	}
}

// Config defines statistics settings.
type Config struct {
	SampleSeconds float64 `json:"sample_seconds"`
	PricePerKWh   float64 `json:"price_per_kwh"`
	Timezone      string  `json:"timezone"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.SampleSeconds <= 0 {
		c.SampleSeconds = 10
	}
	if c.PricePerKWh == 0 {
		c.PricePerKWh = 1500
	}
}

// Validate checks the configured values.
func (c Config) Validate() error {
	if c.PricePerKWh < 0 {
		return fmt.Errorf("price_per_kwh must not be negative")
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}
	return nil
}

func (c Config) location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// TerminalUsage is the energy drawn by one terminal over the window.
type TerminalUsage struct {
	TerminalID string  `json:"terminalId"`
	KWh        float64 `json:"kwh"`
}

// Point is one bucket of the series.
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Meta echoes the parameters of a report.
type Meta struct {
	Type          Period  `json:"type"`
	SampleSeconds float64 `json:"sample_seconds"`
	PricePerKWh   float64 `json:"price_per_kwh"`
	PeriodUnit    string  `json:"period_unit"`
}

// Report is the aggregated view over a window.
type Report struct {
	TotalKWh  float64         `json:"total_kwh"`
	TotalCost float64         `json:"total_cost"`
	Terminals []TerminalUsage `json:"terminals"`
	Series    []Point         `json:"series"`
	Meta      Meta            `json:"meta"`
}

type bucket struct {
	unit   string
	count  int
	layout string
	step   func(t time.Time, n int) time.Time
	trunc  func(t time.Time) time.Time
}

func bucketFor(p Period) bucket {
	switch p {
	case Monthly:
		return bucket{
			unit: "month", count: 12, layout: "2006-01",
			step:  func(t time.Time, n int) time.Time { return t.AddDate(0, n, 0) },
			trunc: func(t time.Time) time.Time { return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()) },
		}
	case Yearly:
		return bucket{
			unit: "year", count: 5, layout: "2006",
			step:  func(t time.Time, n int) time.Time { return t.AddDate(n, 0, 0) },
			trunc: func(t time.Time) time.Time { return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, t.Location()) },
		}
	default:
		return bucket{
			unit: "day", count: 7, layout: "2006-01-02",
			step:  func(t time.Time, n int) time.Time { return t.AddDate(0, 0, n) },
			trunc: func(t time.Time) time.Time { return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()) },
		}
	}
}

// Window returns the start of the first bucket and the bucket count for a
// period ending at now.
func Window(p Period, now time.Time) (time.Time, int) {
	b := bucketFor(p)
	return b.step(b.trunc(now), -(b.count - 1)), b.count
}

// Compute aggregates readings taken in [start of window, now].
func Compute(readings []model.PowerReading, p Period, now time.Time, cfg Config) Report {
	cfg.SetDefaults()
	now = now.In(cfg.location())
	b := bucketFor(p)
	start, count := Window(p, now)
	factor := cfg.SampleSeconds / 3.6e6

	perTerminal := map[string][]float64{}
	perBucket := map[string][]float64{}
	for _, r := range readings {
		ts := r.Timestamp.In(now.Location())
		if ts.Before(start) || ts.After(now) {
			continue
		}
		perTerminal[r.TerminalID] = append(perTerminal[r.TerminalID], r.PowerW)
		label := b.trunc(ts).Format(b.layout)
		perBucket[label] = append(perBucket[label], r.PowerW)
	}

	rep := Report{
		Terminals: make([]TerminalUsage, 0, len(perTerminal)),
		Series:    make([]Point, 0, count),
		Meta:      Meta{Type: p, SampleSeconds: cfg.SampleSeconds, PricePerKWh: cfg.PricePerKWh, PeriodUnit: b.unit},
	}
	kwh := make([]float64, 0, len(perTerminal))
	for id, powers := range perTerminal {
		v := round(floats.Sum(powers)*factor, 4)
		rep.Terminals = append(rep.Terminals, TerminalUsage{TerminalID: id, KWh: v})
		kwh = append(kwh, v)
	}
	sort.Slice(rep.Terminals, func(i, j int) bool { return rep.Terminals[i].TerminalID < rep.Terminals[j].TerminalID })
	total := 0.0
	if len(kwh) > 0 {
		total = floats.Sum(kwh)
	}
	rep.TotalKWh = round(total, 4)
	rep.TotalCost = round(total*cfg.PricePerKWh, 2)

	for i := 0; i < count; i++ {
		label := b.step(start, i).Format(b.layout)
		v := 0.0
		if powers := perBucket[label]; len(powers) > 0 {
			v = floats.Sum(powers) * factor
		}
		rep.Series = append(rep.Series, Point{Label: label, Value: round(v, 4)})
	}
	return rep
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Service reads telemetry and produces reports.
type Service struct {
	store store.TelemetryStore
	cfg   Config
	now   func() time.Time
}

// NewService creates a statistics service over ts.
func NewService(ts store.TelemetryStore, cfg Config) *Service {
	cfg.SetDefaults()
	return &Service{store: ts, cfg: cfg, now: time.Now}
}

// Report aggregates the readings of the window ending now.
func (s *Service) Report(ctx context.Context, p Period) (Report, error) {
	now := s.now().In(s.cfg.location())
	start, _ := Window(p, now)
	readings, err := s.store.Readings(ctx, start, now.Add(time.Nanosecond))
	if err != nil {
		return Report{}, fmt.Errorf("readings: %w", err)
	}
	return Compute(readings, p, now, s.cfg), nil
}
