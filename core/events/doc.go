// Package events defines the events emitted on the event bus.
//
// Available event types:
//   - CycleEvent: completed allocation cycle
//   - CycleSkippedEvent: tick dropped because a cycle was still running
//   - CommandEvent: delivery outcome of one relay command
//   - AdmissionEvent: decision on a manual on/off request
//   - TerminalStateEvent: relay state and power reported by a device
package events
