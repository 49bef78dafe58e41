package main

import (
	"sync/atomic"

	"github.com/hmunye/rio"
	"github.com/hmunye/rio/net/tcp"
)

// echoServer tracks the demo server's live counters, updated from
// inside the rio runtime's single goroutine and read from the TUI's
// goroutine via atomics.
type echoServer struct {
	connections int64
	bytesEchoed int64
}

// acceptLoop accepts connections off ln forever, spawning one echoConn
// per accepted connection. An accept that resolves with an error is
// skipped and the loop keeps accepting; Poll never returns Ready.
type acceptLoop struct {
	ln     *tcp.Listener
	srv    *echoServer
	accept *tcp.AcceptFuture
}

func (a *acceptLoop) Poll(ctx *rio.Context) rio.Poll {
	for {
		if a.accept == nil {
			a.accept = a.ln.Accept()
		}
		if a.accept.Poll(ctx) == rio.Pending {
			return rio.Pending
		}
		res := a.accept.Value()
		a.accept = nil
		if res.Err != nil {
			continue
		}
		atomic.AddInt64(&a.srv.connections, 1)
		rio.Spawn(&echoConn{s: res.Stream, srv: a.srv, buf: make([]byte, 4096)})
	}
}

const (
	connStateRead = iota
	connStateWrite
	connStateDone
)

// echoConn reads from s and writes back whatever it read, until EOF or
// an error, then closes the stream.
type echoConn struct {
	s     *tcp.Stream
	srv   *echoServer
	buf   []byte
	state int
	read  *tcp.ReadFuture
	write *tcp.WriteFuture
	n     int
}

func (c *echoConn) Poll(ctx *rio.Context) rio.Poll {
	for {
		switch c.state {
		case connStateRead:
			if c.read == nil {
				c.read = c.s.Read(c.buf)
			}
			if c.read.Poll(ctx) == rio.Pending {
				return rio.Pending
			}
			res := c.read.Value()
			c.read = nil
			if res.Err != nil || res.N == 0 {
				c.state = connStateDone
				continue
			}
			c.n = res.N
			c.state = connStateWrite
		case connStateWrite:
			if c.write == nil {
				c.write = c.s.Write(c.buf[:c.n])
			}
			if c.write.Poll(ctx) == rio.Pending {
				return rio.Pending
			}
			res := c.write.Value()
			c.write = nil
			if res.Err != nil {
				c.state = connStateDone
				continue
			}
			atomic.AddInt64(&c.srv.bytesEchoed, int64(res.N))
			c.state = connStateRead
		case connStateDone:
			c.s.Close()
			atomic.AddInt64(&c.srv.connections, -1)
			return rio.Ready
		}
	}
}
