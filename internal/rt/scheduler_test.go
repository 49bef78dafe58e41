package rt

import (
	"testing"
	"time"
)

// countingFuture resolves after n polls, recording the order in which
// it actually ran via the shared order slice.
type countingFuture struct {
	name    string
	remain  int
	order   *[]string
	onReady func()
}

func (f *countingFuture) Poll(ctx *Context) Poll {
	f.remain--
	if f.remain > 0 {
		ctx.Waker().Clone().Wake()
		return Pending
	}
	*f.order = append(*f.order, f.name)
	if f.onReady != nil {
		f.onReady()
	}
	return Ready
}

func TestSchedulerResolvesSingleTickTask(t *testing.T) {
	r := New(WithLogger(discardLogger()))
	var order []string
	r.BlockOn(&countingFuture{name: "a", remain: 1, order: &order})
	if len(order) != 1 || order[0] != "a" {
		t.Fatalf("order = %v, want [a]", order)
	}
}

func TestSchedulerDrainsPendingBeforePollingReady(t *testing.T) {
	r := New(WithLogger(discardLogger()))
	var order []string

	root := SuspendableFunc(func(ctx *Context) Poll {
		Spawn(&countingFuture{name: "child", remain: 1, order: &order})
		order = append(order, "root")
		return Ready
	})

	r.BlockOn(root)

	if len(order) != 2 || order[0] != "root" || order[1] != "child" {
		t.Fatalf("order = %v, want [root child]", order)
	}
}

func TestSchedulerFIFOReadyOrder(t *testing.T) {
	r := New(WithLogger(discardLogger()))
	var order []string

	root := SuspendableFunc(func(ctx *Context) Poll {
		Spawn(&countingFuture{name: "first", remain: 1, order: &order})
		Spawn(&countingFuture{name: "second", remain: 1, order: &order})
		Spawn(&countingFuture{name: "third", remain: 1, order: &order})
		return Ready
	})

	r.BlockOn(root)

	want := []string{"first", "second", "third"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i, name := range want {
		if order[i] != name {
			t.Fatalf("order[%d] = %q, want %q", i, order[i], name)
		}
	}
}

func TestSchedulerTimersWakeInDeadlineOrder(t *testing.T) {
	s := newScheduler(discardLogger(), nil)
	var order []string

	register := func(name string, d time.Duration) {
		tk := &task{id: s.allocID()}
		s.tasks[tk.id] = tk
		tk.body = SuspendableFunc(func(ctx *Context) Poll {
			order = append(order, name)
			return Ready
		})
		w := newWaker(tk, s)
		s.timers.register(time.Now().Add(d), w)
	}

	register("late", 30*time.Millisecond)
	register("early", 10*time.Millisecond)
	register("mid", 20*time.Millisecond)

	time.Sleep(40 * time.Millisecond)
	s.timers.drainExpired(time.Now())
	s.tick()

	want := []string{"early", "mid", "late"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i, name := range want {
		if order[i] != name {
			t.Fatalf("order[%d] = %q, want %q", i, order[i], name)
		}
	}
}

// TestContextForYieldsDistinctWakerPerPoll underlies the "defensive
// re-registration" decision for suspendables like rtime.Sleep: every
// poll of a still-live task gets a freshly constructed Waker, so a
// suspendable that compares the context's waker against one it saved
// from an earlier poll will correctly observe a mismatch rather than
// accidentally aliasing a stale registration.
func TestContextForYieldsDistinctWakerPerPoll(t *testing.T) {
	s := newScheduler(discardLogger(), nil)
	tk := &task{id: s.allocID()}
	s.tasks[tk.id] = tk

	w1 := s.contextFor(tk).Waker()
	w2 := s.contextFor(tk).Waker()

	if w1 == w2 {
		t.Fatal("expected distinct Waker values across separate contextFor calls for the same task")
	}
}

func TestSchedulerIdleRequiresEmptyTasksAndPending(t *testing.T) {
	s := newScheduler(discardLogger(), nil)
	if !s.idle() {
		t.Fatal("new scheduler should be idle")
	}
	s.spawnPending(SuspendableFunc(func(ctx *Context) Poll { return Ready }))
	if s.idle() {
		t.Fatal("scheduler with a pending spawn should not be idle")
	}
}
