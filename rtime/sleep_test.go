package rtime

import (
	"testing"
	"time"

	"github.com/hmunye/rio/internal/rt"
)

// TestSleepZeroResolvesImmediately covers the boundary behavior that a
// zero-duration sleep resolves on its first poll.
func TestSleepZeroResolvesImmediately(t *testing.T) {
	r := rt.New()
	start := time.Now()
	r.BlockOn(Sleep(0))
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Fatalf("zero-duration sleep took %v, want ~immediate", elapsed)
	}
}

// TestSleepUntilPastDeadlineResolvesImmediately covers "now >= deadline"
// resolving without ever registering a timer.
func TestSleepUntilPastDeadlineResolvesImmediately(t *testing.T) {
	r := rt.New()
	r.BlockOn(SleepUntil(time.Now().Add(-time.Second)))
}

// orderedSleeper sleeps for d, then appends name to the shared order
// slice, so a test can assert sleeps resolve in deadline order.
type orderedSleeper struct {
	name  string
	sleep rt.Suspendable
	order *[]string
}

func (s *orderedSleeper) Poll(ctx *rt.Context) rt.Poll {
	if s.sleep.Poll(ctx) == rt.Pending {
		return rt.Pending
	}
	*s.order = append(*s.order, s.name)
	return rt.Ready
}

func TestOrderedSleepsResolveInDeadlineOrder(t *testing.T) {
	r := rt.New()
	var order []string

	root := rt.SuspendableFunc(func(ctx *rt.Context) rt.Poll {
		rt.Spawn(&orderedSleeper{name: "A", sleep: Sleep(20 * time.Millisecond), order: &order})
		rt.Spawn(&orderedSleeper{name: "B", sleep: Sleep(60 * time.Millisecond), order: &order})
		rt.Spawn(&orderedSleeper{name: "C", sleep: Sleep(100 * time.Millisecond), order: &order})
		return rt.Ready
	})

	r.BlockOn(root)

	want := []string{"A", "B", "C"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i, name := range want {
		if order[i] != name {
			t.Fatalf("order[%d] = %q, want %q", i, order[i], name)
		}
	}
}
