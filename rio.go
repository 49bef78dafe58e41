// Package rio is a minimal, single-threaded, cooperative asynchronous
// runtime for Linux: a scheduler, a timer wheel, and an epoll-backed
// I/O driver, exposed through a small suspendable-task API. Sleeping
// is provided by the rtime subpackage; non-blocking TCP by net/tcp.
package rio

import (
	"github.com/sirupsen/logrus"

	"github.com/hmunye/rio/internal/rt"
	"github.com/hmunye/rio/internal/trace"
)

// Runtime owns one scheduler, one timer wheel, and one I/O driver. A
// Runtime must only be driven from a single goroutine at a time; the
// rt package enforces this by panicking on nested or cross-goroutine
// misuse.
type Runtime = rt.Runtime

// Option configures a Runtime at construction time.
type Option = rt.Option

// Poll is the result of a single step of a Suspendable computation.
type Poll = rt.Poll

const (
	Pending = rt.Pending
	Ready   = rt.Ready
)

// Context is the suspension context handed to a Suspendable on each
// poll.
type Context = rt.Context

// Suspendable is the single unit of work the scheduler knows how to
// poll.
type Suspendable = rt.Suspendable

// SuspendableFunc adapts a plain function to Suspendable.
type SuspendableFunc = rt.SuspendableFunc

// Future is a Suspendable that produces a typed result on resolution.
type Future[T any] = rt.Future[T]

// Waker is a reference-counted handle bound to a (task, scheduler)
// pair. Invoking it re-enqueues the task for polling.
type Waker = rt.Waker

// TaskID identifies a spawned task.
type TaskID = rt.TaskID

// WithLogger injects a structured logger, used at Debug/Trace level
// for task spawns and driver register/modify/unregister/poll calls,
// and at Fatal level for unrecoverable driver errors. Defaults to a
// logger that
// discards all output, so the library is silent unless a host opts
// in.
func WithLogger(log logrus.FieldLogger) Option {
	return rt.WithLogger(log)
}

// WithTracer injects a trace.Tracer for structured event capture.
// Defaults to trace.Nop.
func WithTracer(t trace.Tracer) Option {
	return rt.WithTracer(t)
}

// New allocates an empty scheduler and returns a Runtime ready for
// BlockOn.
func New(opts ...Option) *Runtime {
	return rt.New(opts...)
}

// BlockOn runs f to completion on r and returns its typed output.
// Panics if called from a goroutine already inside another BlockOn.
func BlockOn[T any](r *Runtime, f Future[T]) T {
	return rt.BlockOn(r, f)
}

// Spawn appends a fire-and-forget task wrapping f to the pending
// queue of the runtime active on the calling goroutine. Panics if no
// runtime is active.
func Spawn(f Suspendable) TaskID {
	return rt.Spawn(f)
}

// SpawnValue spawns f on the runtime active on the calling goroutine
// and returns a channel receiving its result exactly once. A
// convenience combinator layered on Spawn; it does not change Spawn's
// fire-and-forget, unit-output contract.
func SpawnValue[T any](f Future[T]) <-chan T {
	return rt.SpawnValue(f)
}

// Current returns the Runtime whose BlockOn is active on the calling
// goroutine, panicking if none is.
func Current() *Runtime {
	return rt.Current()
}
