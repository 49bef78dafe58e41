//go:build linux

package tcp

import (
	"errors"
	"fmt"
	"io"

	"github.com/hmunye/rio/internal/rt"
	"golang.org/x/sys/unix"
)

// Stream wraps a non-blocking, edge-triggered TCP socket. The driver
// maps one waker per fd, so at most one
// suspension (read, write, or shutdown) is registered against this fd
// at a time - the natural shape for request/response or echo-style
// handlers that read, then write, sequentially.
type Stream struct {
	fd         int
	registered bool
	mask       uint32
	waker      *rt.Waker
}

func newStream(fd int) *Stream {
	return &Stream{fd: fd}
}

func (s *Stream) arm(mask uint32, waker *rt.Waker) {
	d := rt.Current().Driver()
	if !s.registered {
		d.Register(int32(s.fd), mask, waker.Clone())
		s.registered = true
		s.mask = mask
		s.waker = waker
		return
	}
	if s.mask != mask || s.waker != waker {
		d.Modify(int32(s.fd), mask)
		s.mask = mask
		s.waker = waker
	}
}

// ConnectResult is the output of a ConnectFuture.
type ConnectResult struct {
	Stream *Stream
	Err    error
}

// ConnectFuture resolves once a non-blocking connect(2) completes, or
// fails.
type ConnectFuture struct {
	addr       string
	fd         int
	attempted  bool
	registered bool
	waker      *rt.Waker
	result     ConnectResult
}

// Connect returns a Future that connects to addr ("host:port").
func Connect(addr string) *ConnectFuture {
	return &ConnectFuture{addr: addr}
}

func (f *ConnectFuture) Value() ConnectResult { return f.result }

func (f *ConnectFuture) Poll(ctx *rt.Context) rt.Poll {
	if !f.attempted {
		f.attempted = true
		fd, err := connectSocket(f.addr)
		if err != nil {
			f.result = ConnectResult{Err: fmt.Errorf("tcp: connect %s: %w", f.addr, err)}
			return rt.Ready
		}
		f.fd = fd
		return f.checkOrArm(ctx)
	}
	return f.checkOrArm(ctx)
}

// checkOrArm queries SO_ERROR to see whether the connect attempt has
// resolved; EISCONN/0 means success, EINPROGRESS/EALREADY means keep
// waiting on write-readiness, anything else is a hard failure.
func (f *ConnectFuture) checkOrArm(ctx *rt.Context) rt.Poll {
	errno, err := unix.GetsockoptInt(f.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		f.fail(err)
		return rt.Ready
	}
	switch unix.Errno(errno) {
	case 0:
		// SO_ERROR stays 0 while the handshake is still in flight;
		// ENOTCONN from getpeername tells the two cases apart.
		if _, err := unix.Getpeername(f.fd); err == unix.ENOTCONN {
			f.arm(ctx.Waker())
			return rt.Pending
		}
		f.succeed()
		return rt.Ready
	case unix.EINPROGRESS, unix.EALREADY, unix.EAGAIN:
		f.arm(ctx.Waker())
		return rt.Pending
	case unix.EISCONN:
		f.succeed()
		return rt.Ready
	default:
		f.fail(unix.Errno(errno))
		return rt.Ready
	}
}

func (f *ConnectFuture) arm(waker *rt.Waker) {
	d := rt.Current().Driver()
	if !f.registered {
		d.Register(int32(f.fd), unix.EPOLLOUT, waker.Clone())
		f.registered = true
		f.waker = waker
		return
	}
	if f.waker != waker {
		d.Modify(int32(f.fd), unix.EPOLLOUT)
		f.waker = waker
	}
}

func (f *ConnectFuture) succeed() {
	if f.registered {
		rt.Current().Driver().Unregister(int32(f.fd))
	}
	f.result = ConnectResult{Stream: newStream(f.fd)}
}

func (f *ConnectFuture) fail(err error) {
	if f.registered {
		rt.Current().Driver().Unregister(int32(f.fd))
	}
	unix.Close(f.fd)
	f.result = ConnectResult{Err: fmt.Errorf("tcp: connect %s: %w", f.addr, err)}
}

// ReadResult is the output of a ReadFuture.
type ReadResult struct {
	N   int
	Err error
}

// ReadFuture resolves once at least one byte has been read, EOF is
// reached, or a non-transient error occurs.
type ReadFuture struct {
	s   *Stream
	buf []byte
	res ReadResult
}

// Read returns a Future that reads into p.
func (s *Stream) Read(p []byte) *ReadFuture {
	return &ReadFuture{s: s, buf: p}
}

func (f *ReadFuture) Value() ReadResult { return f.res }

func (f *ReadFuture) Poll(ctx *rt.Context) rt.Poll {
	n, err := unix.Read(f.s.fd, f.buf)
	switch {
	case err == nil && n == 0:
		f.res = ReadResult{N: 0, Err: io.EOF}
		return rt.Ready
	case err == nil:
		f.res = ReadResult{N: n}
		return rt.Ready
	case errors.Is(err, unix.EAGAIN):
		f.s.arm(unix.EPOLLIN, ctx.Waker())
		return rt.Pending
	default:
		f.res = ReadResult{Err: fmt.Errorf("tcp: read: %w", err)}
		return rt.Ready
	}
}

// WriteResult is the output of a WriteFuture.
type WriteResult struct {
	N   int
	Err error
}

// WriteFuture resolves once all of p has been written, or a
// non-transient error occurs. Because a single write(2) call may
// accept fewer bytes than len(p), Poll loops internally until the
// buffer is exhausted or the kernel reports EAGAIN.
type WriteFuture struct {
	s    *Stream
	buf  []byte
	done int
	res  WriteResult
}

// Write returns a Future that writes all of p.
func (s *Stream) Write(p []byte) *WriteFuture {
	return &WriteFuture{s: s, buf: p}
}

func (f *WriteFuture) Value() WriteResult { return f.res }

func (f *WriteFuture) Poll(ctx *rt.Context) rt.Poll {
	for f.done < len(f.buf) {
		n, err := unix.Write(f.s.fd, f.buf[f.done:])
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				f.s.arm(unix.EPOLLOUT, ctx.Waker())
				return rt.Pending
			}
			f.res = WriteResult{N: f.done, Err: fmt.Errorf("tcp: write: %w", err)}
			return rt.Ready
		}
		f.done += n
	}
	f.res = WriteResult{N: f.done}
	return rt.Ready
}

// ShutdownFuture resolves once the write half of the stream has been
// half-closed.
type ShutdownFuture struct {
	s   *Stream
	err error
}

// Shutdown returns a Future that half-closes the write side of s.
func (s *Stream) Shutdown() *ShutdownFuture {
	return &ShutdownFuture{s: s}
}

func (f *ShutdownFuture) Value() error { return f.err }

func (f *ShutdownFuture) Poll(ctx *rt.Context) rt.Poll {
	err := unix.Shutdown(f.s.fd, unix.SHUT_WR)
	if err == nil {
		return rt.Ready
	}
	if errors.Is(err, unix.EAGAIN) {
		f.s.arm(unix.EPOLLOUT, ctx.Waker())
		return rt.Pending
	}
	f.err = fmt.Errorf("tcp: shutdown: %w", err)
	return rt.Ready
}

// Close unregisters the stream's fd from the active runtime's driver
// (if registered) before releasing the kernel descriptor.
func (s *Stream) Close() error {
	if s.registered {
		rt.Current().Driver().Unregister(int32(s.fd))
		s.registered = false
	}
	if err := unix.Close(s.fd); err != nil {
		return fmt.Errorf("tcp: close stream: %w", err)
	}
	return nil
}
