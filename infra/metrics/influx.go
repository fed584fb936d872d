package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/farreladriann/slc-backend/core/metrics"
	"github.com/farreladriann/slc-backend/infra/logger"
)

// InfluxConfig locates the InfluxDB bucket receiving the points.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes controller events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordCycle writes one allocation_cycle point.
func (s *InfluxSink) RecordCycle(res coremetrics.CycleResult) error {
	p := write.NewPointWithMeasurement("allocation_cycle").
		AddTag("source", res.Source).
		AddTag("algorithm", res.Algorithm).
		AddTag("ok", strconv.FormatBool(res.Err == "")).
		AddField("capacity_w", round3(res.Capacity)).
		AddField("candidates", res.Candidates).
		AddField("selected", res.Selected).
		AddField("total_power_w", round3(res.TotalPower)).
		AddField("total_value", res.TotalValue).
		AddField("failed_commands", res.Failed).
		AddField("duration_ms", round3(float64(res.Duration)/float64(time.Millisecond))).
		SetTime(res.Time)
	if res.Err != "" {
		p = p.AddField("error", res.Err)
	}
	return s.write(p)
}

// RecordCycleSkipped writes a skipped tick.
func (s *InfluxSink) RecordCycleSkipped(source string) error {
	p := write.NewPointWithMeasurement("allocation_cycle_skipped").
		AddTag("source", source).
		AddField("count", 1).
		SetTime(time.Now())
	return s.write(p)
}

// RecordCommand writes the delivery outcome of a relay command.
func (s *InfluxSink) RecordCommand(ev coremetrics.CommandEvent) error {
	p := write.NewPointWithMeasurement("relay_command").
		AddTag("terminal_id", ev.TerminalID).
		AddTag("state", ev.State).
		AddTag("ok", strconv.FormatBool(ev.OK)).
		AddField("latency_ms", round3(ev.Latency.Seconds()*1000)).
		SetTime(ev.Time)
	if ev.Error != "" {
		p = p.AddField("error", ev.Error)
	}
	return s.write(p)
}

// RecordAdmission writes an admission decision.
func (s *InfluxSink) RecordAdmission(ev coremetrics.AdmissionEvent) error {
	p := write.NewPointWithMeasurement("admission_decision").
		AddTag("terminal_id", ev.TerminalID).
		AddTag("state", ev.State).
		AddTag("accepted", strconv.FormatBool(ev.Accepted))
	if ev.Reason != "" {
		p = p.AddTag("reason", ev.Reason)
	}
	p = p.AddField("capacity_w", round3(ev.Capacity)).
		AddField("potential_w", round3(ev.Potential)).
		AddField("available_w", round3(ev.Available)).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordTerminalState writes a telemetry snapshot of a terminal.
func (s *InfluxSink) RecordTerminalState(ev coremetrics.TerminalStateEvent) error {
	p := write.NewPointWithMeasurement("terminal_state").
		AddTag("terminal_id", ev.TerminalID).
		AddField("power_w", round3(ev.PowerW)).
		AddField("on", ev.Status == "on").
		SetTime(ev.Time)
	return s.write(p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
