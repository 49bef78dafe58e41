package rt

import (
	"fmt"

	"github.com/hmunye/rio/internal/trace"
)

// wakerData is the shared cell a family of Waker clones all point to.
// It is never shared across goroutines: newWaker stamps the creating
// goroutine's id and every operation below verifies the caller matches,
// the closest Go analogue to the !Send marker the suspension machinery
// this is modeled on uses to keep a waker pinned to one thread.
type wakerData struct {
	task  *task
	sched *Scheduler
	gid   uint64
	refs  int
}

// Waker is a reference-counted handle bound to a (task, scheduler)
// pair; invoking it enqueues the task for polling. The reference count
// is not required for memory safety in Go (the garbage collector
// reclaims wakerData once unreferenced) but is maintained explicitly
// because the count itself is a testable invariant: Clone must observe
// +1, Wake/Drop -1, WakeByRef no change.
type Waker struct {
	data *wakerData
}

// newWaker allocates a fresh wakerData with one outstanding reference
// (the returned Waker itself) and wraps it.
func newWaker(t *task, s *Scheduler) *Waker {
	d := &wakerData{task: t, sched: s, gid: trace.GoroutineID(), refs: 1}
	return &Waker{data: d}
}

func (w *Waker) checkAffinity() {
	if w == nil || w.data == nil {
		return
	}
	if gid := trace.GoroutineID(); gid != w.data.gid {
		panic(fmt.Sprintf("rio: waker used from foreign goroutine (created on %d, used on %d)", w.data.gid, gid))
	}
}

// Clone increments the reference count and returns a new Waker pointing
// at the same cell.
func (w *Waker) Clone() *Waker {
	w.checkAffinity()
	w.data.refs++
	return &Waker{data: w.data}
}

// Wake consumes one reference and, if the task is not already
// scheduled, appends its id to the ready queue.
func (w *Waker) Wake() {
	w.checkAffinity()
	w.WakeByRef()
	w.Drop()
}

// WakeByRef behaves like Wake but does not consume the reference. If
// the bound task's id is no longer present in the scheduler's task
// table (a stale waker), this is a legal no-op.
func (w *Waker) WakeByRef() {
	w.checkAffinity()
	w.data.sched.wakeTask(w.data.task)
}

// Drop decrements the reference count. Implementers of the original
// vtable this mirrors free the cell at refs == 0; in Go the cell is
// simply left for the garbage collector once nothing holds a *Waker to
// it, so Drop's only job here is to keep the count - and therefore the
// invariant under test - accurate.
func (w *Waker) Drop() {
	w.checkAffinity()
	w.data.refs--
}

// refCount reports the current outstanding-reference count. Exposed
// (package-internal) purely for the waker lifetime unit tests.
func (w *Waker) refCount() int {
	return w.data.refs
}
