package minheap

import (
	"math/rand"
	"sort"
	"testing"
)

func intLess(a, b int) bool { return a < b }

func TestHeapPushPopSortedOrder(t *testing.T) {
	h := New(intLess)
	items := []int{5, 3, 8, 1, 9, 2, 7, 4, 6, 0}
	for _, v := range items {
		h.Push(v)
	}

	want := append([]int(nil), items...)
	sort.Ints(want)

	for i, w := range want {
		got, ok := h.Pop()
		if !ok {
			t.Fatalf("pop %d: heap empty early", i)
		}
		if got != w {
			t.Fatalf("pop %d: got %d, want %d", i, got, w)
		}
	}
	if _, ok := h.Pop(); ok {
		t.Fatal("expected empty heap after draining all items")
	}
}

func TestHeapRandomizedAscendingPops(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	h := New(intLess)
	const n = 500
	for i := 0; i < n; i++ {
		h.Push(r.Intn(10000))
	}
	prev := -1
	for !h.Empty() {
		v, ok := h.Pop()
		if !ok {
			t.Fatal("unexpected empty pop")
		}
		if v < prev {
			t.Fatalf("pop sequence not ascending: %d after %d", v, prev)
		}
		prev = v
	}
}

func TestHeapPeekDoesNotRemove(t *testing.T) {
	h := New(intLess)
	h.Push(3)
	h.Push(1)
	h.Push(2)

	for i := 0; i < 3; i++ {
		top, ok := h.Peek()
		if !ok || top != 1 {
			t.Fatalf("peek %d: got (%d, %v), want (1, true)", i, top, ok)
		}
	}
	if got := h.Len(); got != 3 {
		t.Fatalf("len after peeks = %d, want 3", got)
	}
}

func TestHeapEmptyPeekPop(t *testing.T) {
	h := New(intLess)
	if !h.Empty() {
		t.Fatal("new heap should be empty")
	}
	if _, ok := h.Peek(); ok {
		t.Fatal("peek on empty heap should return ok=false")
	}
	if _, ok := h.Pop(); ok {
		t.Fatal("pop on empty heap should return ok=false")
	}
}

func TestHeapPopAllSorted(t *testing.T) {
	h := New(intLess)
	items := []int{42, 17, 3, 99, 1}
	for _, v := range items {
		h.Push(v)
	}
	got := h.PopAll()
	want := append([]int(nil), items...)
	sort.Ints(want)
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: got %d, want %d", i, got[i], want[i])
		}
	}
	if !h.Empty() {
		t.Fatal("PopAll should drain the heap")
	}
}
