// Package metrics defines the sinks that record controller activity.
//
// A MetricsSink records allocation cycles. Optional recorder interfaces cover
// relay commands, admission decisions, terminal telemetry and skipped ticks;
// sinks implement the ones they support and MultiSink forwards each call to
// every sink able to handle it. The factory helpers return a MultiSink
// automatically when multiple sinks are configured.
package metrics
