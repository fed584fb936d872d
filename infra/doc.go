// Package infra holds the technical adapters of the controller: the MQTT
// transport, telemetry ingest, SQLite persistence, metrics exporters and
// error monitoring. They implement the contracts declared under core.
package infra
