// Package scheduler runs allocation cycles on a timer.
//
// A Scheduler owns one ticker goroutine. Every tick gathers terminal state,
// solves the allocation and hands the resulting on/off commands to the
// dispatcher. At most one cycle runs at a time: a tick that finds a cycle in
// flight is dropped. The Watcher applies per-terminal activation windows.
package scheduler
