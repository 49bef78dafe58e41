// Package trace provides a tracing subsystem for the rio runtime.
//
// The trace package enables tracking of scheduler ticks, task polls, and
// driver I/O events to help diagnose stalls and performance issues.
//
// # Architecture
//
// The package provides two tracer implementations:
//
//   - Nop: zero-overhead no-op tracer when disabled
//   - RingTracer: in-memory circular buffer, snapshotted for live
//     dashboards or offline encoding by a caller
//
// # Levels
//
// Tracing verbosity is controlled by levels:
//
//   - LevelOff: No tracing
//   - LevelError: Enabled, but no span events are emitted
//   - LevelPhase: Runtime and tick boundaries
//   - LevelDetail: Task-level events
//   - LevelDebug: Everything including driver I/O events
//
// # Scopes
//
// Events are categorized by scope:
//
//   - ScopeRuntime: BlockOn entry/exit
//   - ScopeTick: one scheduler tick
//   - ScopeTask: one task poll
//   - ScopeIO: one driver register/modify/unregister/poll call
//
// # Usage
//
//	tracer, err := trace.New(trace.Config{Level: trace.LevelDetail, RingSize: 4096})
//	span := trace.Begin(tracer, trace.ScopeTick, "tick", 0)
//	defer span.End("")
package trace
