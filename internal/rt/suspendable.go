package rt

// Poll is the result of a single step of a Suspendable computation.
type Poll uint8

const (
	// Pending indicates the computation has not resolved; it has
	// registered interest (a timer or an fd) against ctx.Waker() and
	// will be re-polled once that interest fires.
	Pending Poll = iota
	// Ready indicates the computation has resolved and will not be
	// polled again.
	Ready
)

func (p Poll) String() string {
	if p == Ready {
		return "ready"
	}
	return "pending"
}

// Context is the suspension context handed to a Suspendable on each
// poll. It exposes the waker bound to the polling task.
type Context struct {
	waker *Waker
}

// Waker returns the waker bound to the task being polled. Suspendables
// that return Pending must arrange for this exact waker (or a Clone of
// it) to be invoked when they become pollable again.
func (c *Context) Waker() *Waker {
	return c.waker
}

// Suspendable is the single unit of work the scheduler knows how to
// poll: a computation that steps forward exactly once per Poll call and
// reports whether it has resolved.
type Suspendable interface {
	Poll(ctx *Context) Poll
}

// SuspendableFunc adapts a plain function to Suspendable, for
// computations with no state beyond a closure.
type SuspendableFunc func(ctx *Context) Poll

// Poll calls f.
func (f SuspendableFunc) Poll(ctx *Context) Poll { return f(ctx) }

// Future is a Suspendable that produces a typed result on resolution.
// Implementations must return a valid T exactly once, the same tick
// Poll returns Ready.
type Future[T any] interface {
	Suspendable
	Value() T
}
