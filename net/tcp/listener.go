//go:build linux

package tcp

import (
	"fmt"
	"net"

	"github.com/hmunye/rio/internal/rt"
	"golang.org/x/sys/unix"
)

// acceptedConn is one connection drained from the kernel's accept
// backlog during a single edge-triggered wake.
type acceptedConn struct {
	fd   int
	addr net.Addr
}

// Listener wraps a non-blocking, edge-triggered listening socket.
// Because EPOLLET only reports a state transition, Accept must drain
// the kernel's backlog in a loop on every wake and hand connections out
// of a local FIFO one at a time, draining the backlog before yielding.
type Listener struct {
	fd         int
	addr       net.Addr
	queue      []acceptedConn
	registered bool
	waker      *rt.Waker
}

// Bind creates, binds, and listens on a non-blocking socket for addr
// ("host:port", or ":0" for an ephemeral port on the wildcard address).
func Bind(addr string) (*Listener, error) {
	fd, localAddr, err := listenSocket(addr)
	if err != nil {
		return nil, err
	}
	return &Listener{fd: fd, addr: localAddr}, nil
}

// Addr returns the address the listener is bound to.
func (l *Listener) Addr() net.Addr {
	return l.addr
}

// AcceptResult is the output of an AcceptFuture.
type AcceptResult struct {
	Stream *Stream
	Addr   net.Addr
	Err    error
}

// AcceptFuture resolves to the next inbound connection.
type AcceptFuture struct {
	l      *Listener
	result AcceptResult
}

// Accept returns a Future resolving to the next connection accepted on
// l, draining the kernel's backlog into a local FIFO as needed.
func (l *Listener) Accept() *AcceptFuture {
	return &AcceptFuture{l: l}
}

func (f *AcceptFuture) Value() AcceptResult { return f.result }

func (f *AcceptFuture) Poll(ctx *rt.Context) rt.Poll {
	l := f.l

	if len(l.queue) == 0 {
		l.drainBacklog()
	}

	if len(l.queue) > 0 {
		conn := l.queue[0]
		l.queue = l.queue[1:]
		f.result = AcceptResult{Stream: newStream(conn.fd), Addr: conn.addr}
		return rt.Ready
	}

	l.armReadReadiness(ctx.Waker())
	return rt.Pending
}

// drainBacklog calls accept4 in a loop until EAGAIN, queueing every
// accepted connection. Edge-triggered mode demands this full drain:
// the kernel will not report another readable event for the listener
// until a new connection arrives after this point.
func (l *Listener) drainBacklog() {
	for {
		fd, sa, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			if err == unix.EINTR {
				continue
			}
			// A per-connection accept error (e.g. ECONNABORTED) does
			// not invalidate the listener; skip it and keep draining.
			continue
		}
		l.queue = append(l.queue, acceptedConn{fd: fd, addr: sockaddrToNetAddr(sa)})
	}
}

func (l *Listener) armReadReadiness(waker *rt.Waker) {
	r := rt.Current()
	d := r.Driver()
	if !l.registered {
		d.Register(int32(l.fd), unix.EPOLLIN, waker.Clone())
		l.registered = true
		l.waker = waker
		return
	}
	if l.waker != waker {
		d.Modify(int32(l.fd), unix.EPOLLIN)
		l.waker = waker
	}
}

// Close unregisters the listener fd from the active runtime's driver
// (if registered) before releasing the kernel descriptor, so a later
// epoll_wait never reports events on a closed fd.
func (l *Listener) Close() error {
	if l.registered {
		rt.Current().Driver().Unregister(int32(l.fd))
		l.registered = false
	}
	if err := unix.Close(l.fd); err != nil {
		return fmt.Errorf("tcp: close listener: %w", err)
	}
	return nil
}
