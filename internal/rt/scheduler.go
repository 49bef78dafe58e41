package rt

import (
	"time"

	"fortio.org/safecast"

	"github.com/hmunye/rio/internal/trace"
	"github.com/sirupsen/logrus"
)

// readyQueue is an insertion-ordered FIFO of TaskID that may contain a
// given id at most once (enforced by the owning task's scheduled flag,
// not by this type).
type readyQueue struct {
	buf  []TaskID
	head int
}

func (q *readyQueue) pushBack(id TaskID) {
	q.buf = append(q.buf, id)
}

func (q *readyQueue) popFront() (TaskID, bool) {
	if q.head >= len(q.buf) {
		q.buf = q.buf[:0]
		q.head = 0
		return 0, false
	}
	id := q.buf[q.head]
	q.head++
	if q.head > 64 && q.head*2 >= len(q.buf) {
		remaining := append([]TaskID(nil), q.buf[q.head:]...)
		q.buf = remaining
		q.head = 0
	}
	return id, true
}

func (q *readyQueue) len() int {
	return len(q.buf) - q.head
}

// Scheduler owns tasks, the ready queue, pending spawns, the timer
// wheel, and the I/O driver; it runs the core event loop: poll the
// driver for readiness, then tick every ready task once.
type Scheduler struct {
	nextID TaskID
	tasks  map[TaskID]*task
	ready  readyQueue
	// pending absorbs spawns that occur while the ready queue is
	// draining, so that tick never mutates tasks/ready while also
	// ranging over them - the only mechanism by which reentrant spawn
	// calls from inside poll stay safe without a borrow checker.
	pending []*task
	timers  *timerWheel
	driver  *Driver

	log    logrus.FieldLogger
	tracer trace.Tracer
}

func newScheduler(log logrus.FieldLogger, tracer trace.Tracer) *Scheduler {
	d, err := newDriver(log, tracer)
	if err != nil {
		log.WithError(err).Fatal("rio: failed to initialize io driver")
	}
	return &Scheduler{
		tasks:  make(map[TaskID]*task),
		timers: newTimerWheel(),
		driver: d,
		log:    log,
		tracer: tracer,
	}
}

func (s *Scheduler) allocID() TaskID {
	id := s.nextID
	s.nextID++
	return id
}

// spawnPending constructs a task and shunts it into pending, per the
// non-root spawn path.
func (s *Scheduler) spawnPending(body Suspendable) TaskID {
	t := &task{id: s.allocID(), body: body}
	s.pending = append(s.pending, t)
	s.log.WithField("task", t.id).Trace("rio: spawn pending")
	return t.id
}

// spawnRoot inserts a task directly into tasks+ready, bypassing
// pending, as BlockOn's seed task does.
func (s *Scheduler) spawnRoot(body Suspendable) *task {
	t := &task{id: s.allocID(), body: body, scheduled: true}
	s.tasks[t.id] = t
	s.ready.pushBack(t.id)
	return t
}

// wakeTask marks t scheduled and appends it to ready, unless it is
// already scheduled or no longer live.
func (s *Scheduler) wakeTask(t *task) {
	if t == nil {
		return
	}
	if _, live := s.tasks[t.id]; !live {
		// Stale waker: the task resolved (or was never installed, e.g.
		// a root task that hasn't been seeded yet) and firing it is a
		// harmless no-op.
		return
	}
	if t.scheduled {
		return
	}
	t.scheduled = true
	s.ready.pushBack(t.id)
}

func (s *Scheduler) contextFor(t *task) *Context {
	return &Context{waker: newWaker(t, s)}
}

// idle reports whether the scheduler has no live or pending work; an
// empty ready queue alone is not idleness, since tasks may be parked on
// the driver or a timer.
func (s *Scheduler) idle() bool {
	return len(s.tasks) == 0 && len(s.pending) == 0
}

// timeoutUntilEarliestTimer computes the epoll_wait timeout in
// milliseconds: -1 (indefinite) if no timer is registered, 0 if the
// nearest deadline has already elapsed, else the rounded-up remaining
// duration.
func (s *Scheduler) timeoutUntilEarliestTimer(now time.Time) int32 {
	deadline, ok := s.timers.peekDeadline()
	if !ok {
		return -1
	}
	if !deadline.After(now) {
		return 0
	}
	d := deadline.Sub(now)
	ms := d.Milliseconds()
	if d%time.Millisecond != 0 {
		ms++
	}
	if ms < 0 {
		ms = 0
	}
	timeoutMs, err := safecast.Conv[int32](ms)
	if err != nil {
		// A deadline further out than int32 milliseconds can express;
		// wait the longest representable span rather than fail the tick.
		return 1<<31 - 1
	}
	return timeoutMs
}

// run drives the event loop until idle: poll the driver, then tick.
func (s *Scheduler) run() {
	for !s.idle() {
		timeoutMs := s.timeoutUntilEarliestTimer(time.Now())
		s.driver.poll(timeoutMs)
		s.tick()
	}
}

// tick drains pending spawns, drains expired timers, then polls every
// currently-ready task exactly once.
func (s *Scheduler) tick() {
	span := trace.Begin(s.tracer, trace.ScopeTick, "tick", 0)
	defer span.End("")

	s.drainPending()
	s.timers.drainExpired(time.Now())

	for {
		id, ok := s.ready.popFront()
		if !ok {
			break
		}
		t, live := s.tasks[id]
		if !live {
			continue
		}
		t.scheduled = false

		taskSpan := trace.Begin(s.tracer, trace.ScopeTask, "poll", span.ID())
		result := t.poll(s.contextFor(t))
		taskSpan.WithExtra("result", result.String()).End("")

		switch result {
		case Ready:
			delete(s.tasks, id)
		case Pending:
			// t remains in s.tasks, to be re-polled when its waker
			// fires.
		}
	}
}

func (s *Scheduler) drainPending() {
	if len(s.pending) == 0 {
		return
	}
	batch := s.pending
	s.pending = nil
	for _, t := range batch {
		t.scheduled = true
		s.tasks[t.id] = t
		s.ready.pushBack(t.id)
	}
}
