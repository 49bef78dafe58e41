// Package rtime provides the runtime's sleep suspendables. Named rtime
// (not time) to avoid shadowing the standard library package that
// every file in this package also imports.
package rtime

import (
	"time"

	"github.com/hmunye/rio/internal/rt"
)

// sleepFuture holds an absolute deadline and tracks the single timer
// registration it has outstanding, so that a spurious re-poll with the
// same waker does not double-register.
type sleepFuture struct {
	deadline  time.Time
	handle    rt.TimerHandle
	lastWaker *rt.Waker
}

// Sleep returns a Suspendable that resolves once d has elapsed.
func Sleep(d time.Duration) rt.Suspendable {
	return SleepUntil(time.Now().Add(d))
}

// SleepUntil returns a Suspendable that resolves once the wall clock
// reaches deadline. A zero or past deadline resolves on the first poll.
func SleepUntil(deadline time.Time) rt.Suspendable {
	return &sleepFuture{deadline: deadline}
}

func (s *sleepFuture) Poll(ctx *rt.Context) rt.Poll {
	if !time.Now().Before(s.deadline) {
		return rt.Ready
	}

	waker := ctx.Waker()
	if s.lastWaker == waker {
		// Pointer-identical waker: this poll was driven by a re-arm that
		// reused the exact Context already registered with the wheel.
		// The current scheduler hands out a fresh Waker on every poll of
		// a live task, so this is never true in practice - the branch
		// below always runs - but it's kept so a future scheduler that
		// reuses Wakers across polls doesn't double-register.
		return rt.Pending
	}

	// The context-supplied waker differs from the one we last registered
	// with (true on every real re-poll today, not just the first one).
	// Cancel any stale registration before installing the new one so
	// the wheel never wakes two wakers for one logical sleep.
	s.handle.Cancel()

	r := rt.Current()
	s.handle = r.RegisterTimer(s.deadline, waker.Clone())
	s.lastWaker = waker

	return rt.Pending
}
