package rt

import (
	"time"

	"github.com/hmunye/rio/internal/minheap"
)

// timerEntry is a (deadline, waker) pair. Ordered solely by deadline;
// equality by deadline only. Consumed exactly once when its deadline
// elapses.
type timerEntry struct {
	deadline time.Time
	waker    *Waker
	// cancelled lets a re-registering sleep future (see rtime.Sleep's
	// defensive re-registration) invalidate a stale heap entry instead
	// of chasing it through the heap to remove it outright.
	cancelled bool
}

// timerWheel stores timerEntry values on a min-heap keyed by deadline.
type timerWheel struct {
	heap *minheap.Heap[*timerEntry]
}

func newTimerWheel() *timerWheel {
	return &timerWheel{
		heap: minheap.New(func(a, b *timerEntry) bool {
			return a.deadline.Before(b.deadline)
		}),
	}
}

// register pushes a new timer entry and returns a handle the caller may
// later mark cancelled.
func (w *timerWheel) register(deadline time.Time, waker *Waker) *timerEntry {
	e := &timerEntry{deadline: deadline, waker: waker}
	w.heap.Push(e)
	return e
}

// peekDeadline returns the earliest deadline if any timer entry is in
// the heap. A cancelled entry at the root still counts.
func (w *timerWheel) peekDeadline() (time.Time, bool) {
	// Cancelled entries at the root are skipped lazily: the only caller
	// of peekDeadline is timeoutUntilEarliestTimer, which tolerates a
	// slightly early wakeup (drainExpired simply finds nothing to do).
	e, ok := w.heap.Peek()
	if !ok {
		return time.Time{}, false
	}
	return e.deadline, true
}

// drainExpired pops and wakes every timer whose deadline is not after
// now, in ascending deadline order. The wake is invoked synchronously,
// so it MUST NOT re-enter the scheduler's tick loop; it only appends to
// the ready queue, which is safe.
func (w *timerWheel) drainExpired(now time.Time) {
	for {
		e, ok := w.heap.Peek()
		if !ok || e.deadline.After(now) {
			return
		}
		w.heap.Pop()
		if e.cancelled {
			continue
		}
		e.waker.WakeByRef()
		e.waker.Drop()
	}
}
