package rio

import (
	"testing"
)

// TestHelloWorldSpawnResolves: a root task spawns a child, BlockOn
// returns once both have resolved, and the child ran exactly once.
func TestHelloWorldSpawnResolves(t *testing.T) {
	r := New()
	ran := 0

	root := SuspendableFunc(func(ctx *Context) Poll {
		Spawn(SuspendableFunc(func(ctx *Context) Poll {
			ran++
			return Ready
		}))
		return Ready
	})

	r.BlockOn(root)

	if ran != 1 {
		t.Fatalf("child ran %d times, want 1", ran)
	}
}

// TestSpawnOutsideRuntimePanics covers the programmer-error taxonomy:
// spawning with no active runtime on the calling goroutine.
func TestSpawnOutsideRuntimePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when spawning outside a runtime context")
		}
	}()
	Spawn(SuspendableFunc(func(ctx *Context) Poll { return Ready }))
}

// TestNestedBlockOnPanics covers the "current runtime" reentrancy
// guard: BlockOn called from within another BlockOn's root task on
// the same goroutine must panic.
func TestNestedBlockOnPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on nested BlockOn")
		}
	}()

	r := New()
	r.BlockOn(SuspendableFunc(func(ctx *Context) Poll {
		inner := New()
		inner.BlockOn(SuspendableFunc(func(ctx *Context) Poll { return Ready }))
		return Ready
	}))
}
