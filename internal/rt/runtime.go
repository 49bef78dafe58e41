package rt

import (
	"sync"
	"time"

	"github.com/hmunye/rio/internal/trace"
	"github.com/sirupsen/logrus"
)

// Runtime is the user-facing facade: it installs itself as the
// goroutine-local "current runtime" during BlockOn and exposes Spawn
// and the sleep suspendables built on top of it.
type Runtime struct {
	sched *Scheduler
	log   logrus.FieldLogger
}

// Option configures a Runtime at construction.
type Option func(*options)

type options struct {
	log    logrus.FieldLogger
	tracer trace.Tracer
}

// WithLogger injects a structured logger. Defaults to a logger
// discarding all output, so the runtime is silent unless a host opts
// in.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) { o.log = log }
}

// WithTracer injects a trace.Tracer. Defaults to trace.Nop.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// New allocates an empty scheduler and returns a Runtime ready for
// BlockOn.
func New(opts ...Option) *Runtime {
	o := &options{tracer: trace.Nop}
	for _, apply := range opts {
		apply(o)
	}
	if o.log == nil {
		discard := logrus.New()
		discard.SetOutput(discardWriter{})
		o.log = discard
	}
	return &Runtime{
		sched: newScheduler(o.log, o.tracer),
		log:   o.log,
	}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// currentRuntimes tracks, per goroutine id, the Runtime whose BlockOn
// dynamic extent is currently active on that goroutine. Go has no
// native goroutine-local storage, so this map stands in for the
// "current_runtime" thread-local the design describes. The mutex only
// ever guards the map mutation itself, never the scheduler loop.
var (
	currentMu       sync.Mutex
	currentRuntimes = make(map[uint64]*Runtime)
)

func enterCurrent(r *Runtime) uint64 {
	gid := trace.GoroutineID()
	currentMu.Lock()
	defer currentMu.Unlock()
	if _, exists := currentRuntimes[gid]; exists {
		panic("rio: nested BlockOn is not supported")
	}
	currentRuntimes[gid] = r
	return gid
}

func exitCurrent(gid uint64) {
	currentMu.Lock()
	defer currentMu.Unlock()
	delete(currentRuntimes, gid)
}

// Current returns the Runtime whose BlockOn is active on the calling
// goroutine, panicking if none is. Exported for use by packages built
// on top of rt (rtime, net/tcp) that need to reach the active
// runtime's timer wheel or I/O driver without threading a *Runtime
// through every call.
func Current() *Runtime {
	return currentRuntime()
}

// currentRuntime returns the Runtime whose BlockOn is active on the
// calling goroutine, panicking if none is.
func currentRuntime() *Runtime {
	gid := trace.GoroutineID()
	currentMu.Lock()
	r, ok := currentRuntimes[gid]
	currentMu.Unlock()
	if !ok {
		panic("rio: called outside a runtime context")
	}
	return r
}

// rootFuture wraps a unit-output Suspendable as the BlockOn root task.
type rootFuture struct {
	inner   Suspendable
	resolve bool
}

func (r *rootFuture) Poll(ctx *Context) Poll {
	p := r.inner.Poll(ctx)
	if p == Ready {
		r.resolve = true
	}
	return p
}

// BlockOn installs the goroutine-local current-runtime pointer for the
// dynamic extent of the call, seeds f as the root task, runs the
// scheduler loop until idle, and returns. Panics if, against the
// construction's own guarantee, the root never resolved.
func (r *Runtime) BlockOn(f Suspendable) {
	gid := enterCurrent(r)
	defer exitCurrent(gid)

	span := trace.Begin(r.sched.tracer, trace.ScopeRuntime, "block_on", 0)
	defer span.End("")

	root := &rootFuture{inner: f}
	r.sched.spawnRoot(root)
	r.sched.run()

	if !root.resolve {
		panic("rio: block_on exited idle without the root task resolving")
	}
}

// cellFuture captures a Future[T]'s output into a cell on resolution,
// the mechanism the generic BlockOn below is built on.
type cellFuture[T any] struct {
	inner Future[T]
	cell  *T
	set   bool
}

func (c *cellFuture[T]) Poll(ctx *Context) Poll {
	p := c.inner.Poll(ctx)
	if p == Ready {
		v := c.inner.Value()
		*c.cell = v
		c.set = true
	}
	return p
}

// BlockOn runs f to completion on r and returns its typed output. Go
// disallows generic methods, so this is a free function rather than a
// method on *Runtime.
func BlockOn[T any](r *Runtime, f Future[T]) T {
	var out T
	cf := &cellFuture[T]{inner: f, cell: &out}
	r.BlockOn(cf)
	if !cf.set {
		panic("rio: block_on exited without the root future producing a value")
	}
	return out
}

// Spawn looks up the runtime active on the calling goroutine and
// appends a new fire-and-forget task wrapping f to its pending queue.
// Panics if no runtime is active on this goroutine.
func Spawn(f Suspendable) TaskID {
	r := currentRuntime()
	return r.sched.spawnPending(f)
}

// SpawnValue spawns f on the runtime active on the calling goroutine
// and returns a channel that receives its result exactly once. This is
// a convenience combinator layered on top of Spawn; it does not change
// Spawn's fire-and-forget, unit-output contract.
func SpawnValue[T any](f Future[T]) <-chan T {
	ch := make(chan T, 1)
	r := currentRuntime()
	r.sched.spawnPending(SuspendableFunc(func(ctx *Context) Poll {
		p := f.Poll(ctx)
		if p == Ready {
			ch <- f.Value()
		}
		return p
	}))
	return ch
}

// Driver returns the runtime's I/O driver, for use by transport
// packages (e.g. net/tcp) that need to register file descriptors
// against the runtime active on the calling goroutine.
func (r *Runtime) Driver() *Driver {
	return r.sched.driver
}

// RegisterTimer installs waker on the runtime's timer wheel at
// deadline and returns a cancellation handle usable with
// CancelTimer.
func (r *Runtime) RegisterTimer(deadline time.Time, waker *Waker) TimerHandle {
	return TimerHandle{entry: r.sched.timers.register(deadline, waker)}
}

// TimerHandle identifies one registered timer entry for cancellation.
type TimerHandle struct {
	entry *timerEntry
}

// Cancel marks the timer entry cancelled; drainExpired skips it
// instead of waking its waker. Safe to call more than once.
func (h TimerHandle) Cancel() {
	if h.entry != nil {
		h.entry.cancelled = true
	}
}
