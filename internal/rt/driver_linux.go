//go:build linux

package rt

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/hmunye/rio/internal/trace"
)

// maxEvents bounds the driver's per-poll scratch buffer, mirroring the
// original implementation's fixed-size event array.
const maxEvents = 1024

// Driver wraps a Linux epoll instance; maintains a map from file
// descriptor to waker. All fds are registered edge-triggered
// (EPOLLET): a wake does not consume the registration, so repeated
// events on the same fd require the caller to fully drain it between
// wakes.
type Driver struct {
	epollFD    int
	events     [maxEvents]unix.EpollEvent
	registered map[int32]*Waker

	log    logrus.FieldLogger
	tracer trace.Tracer
}

func newDriver(log logrus.FieldLogger, tracer trace.Tracer) (*Driver, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}
	return &Driver{
		epollFD:    fd,
		registered: make(map[int32]*Waker),
		log:        log,
		tracer:     tracer,
	}, nil
}

// Register adds fd to the interest list with the given event mask and
// stores waker under fd. If fd is already registered (EEXIST), this
// transparently falls back to Modify's ctl operation instead.
func (d *Driver) Register(fd int32, mask uint32, waker *Waker) {
	span := trace.Begin(d.tracer, trace.ScopeIO, "register", 0)
	defer span.End("")

	ev := unix.EpollEvent{Events: mask | unix.EPOLLET, Fd: fd}
	err := unix.EpollCtl(d.epollFD, unix.EPOLL_CTL_ADD, int(fd), &ev)
	if err == unix.EEXIST {
		d.log.WithField("fd", fd).Trace("rio: register found existing entry, falling back to modify")
		err = unix.EpollCtl(d.epollFD, unix.EPOLL_CTL_MOD, int(fd), &ev)
	}
	if err != nil {
		d.log.WithField("fd", fd).WithError(err).Fatal("rio: epoll_ctl add failed")
	}
	d.registered[fd] = waker
	d.log.WithFields(logrus.Fields{"fd": fd, "mask": mask}).Debug("rio: fd registered")
}

// Modify updates the interest mask for an already-registered fd;
// silently tolerates ENOENT.
func (d *Driver) Modify(fd int32, mask uint32) {
	span := trace.Begin(d.tracer, trace.ScopeIO, "modify", 0)
	defer span.End("")

	ev := unix.EpollEvent{Events: mask | unix.EPOLLET, Fd: fd}
	err := unix.EpollCtl(d.epollFD, unix.EPOLL_CTL_MOD, int(fd), &ev)
	if err != nil {
		if err == unix.ENOENT {
			d.log.WithField("fd", fd).Trace("rio: modify on unregistered fd, ignored")
			return
		}
		d.log.WithField("fd", fd).WithError(err).Fatal("rio: epoll_ctl modify failed")
	}
}

// Unregister removes fd from the interest list and drops its waker;
// silently tolerates ENOENT.
func (d *Driver) Unregister(fd int32) {
	span := trace.Begin(d.tracer, trace.ScopeIO, "unregister", 0)
	defer span.End("")

	err := unix.EpollCtl(d.epollFD, unix.EPOLL_CTL_DEL, int(fd), nil)
	if err != nil && err != unix.ENOENT {
		d.log.WithField("fd", fd).WithError(err).Fatal("rio: epoll_ctl delete failed")
	}
	if w, ok := d.registered[fd]; ok {
		w.Drop()
		delete(d.registered, fd)
	}
	d.log.WithField("fd", fd).Debug("rio: fd unregistered")
}

// poll blocks for up to timeoutMs milliseconds (-1 indefinite, 0
// non-blocking) waiting for readiness on any registered fd, waking the
// corresponding waker (via WakeByRef, never consuming the registration)
// for each event observed. Returns immediately if nothing is
// registered.
func (d *Driver) poll(timeoutMs int32) {
	if len(d.registered) == 0 {
		return
	}

	span := trace.Begin(d.tracer, trace.ScopeIO, "poll", 0)
	defer span.End("")

	n, err := unix.EpollWait(d.epollFD, d.events[:], int(timeoutMs))
	if err != nil {
		if err == unix.EINTR {
			return
		}
		d.log.WithError(err).Fatal("rio: epoll_wait failed")
	}
	for i := 0; i < n; i++ {
		fd := d.events[i].Fd
		if w, ok := d.registered[fd]; ok {
			w.WakeByRef()
		}
	}
	d.log.WithField("events", n).Trace("rio: poll woke")
}

// Close releases the epoll instance. Callers MUST have unregistered
// every fd beforehand; this package never calls Close automatically,
// since a Scheduler's driver lives for the lifetime of one BlockOn.
func (d *Driver) Close() error {
	return unix.Close(d.epollFD)
}
