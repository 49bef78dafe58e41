//go:build linux

package tcp

import (
	"context"
	"io"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/hmunye/rio/internal/rt"
)

// echoHandler is a hand-written state machine (this runtime has no
// async/await sugar, so multi-step tasks compose suspendables by
// hand): accept, then read and echo back each read until EOF, close.
type echoHandler struct {
	ln    *Listener
	state int

	accept *AcceptFuture
	stream *Stream
	read   *ReadFuture
	write  *WriteFuture

	buf []byte
	n   int
	err error
}

const (
	stateAccept = iota
	stateRead
	stateWrite
	stateDone
)

func (h *echoHandler) Poll(ctx *rt.Context) rt.Poll {
	for {
		switch h.state {
		case stateAccept:
			if h.accept == nil {
				h.accept = h.ln.Accept()
			}
			if h.accept.Poll(ctx) == rt.Pending {
				return rt.Pending
			}
			res := h.accept.Value()
			if res.Err != nil {
				h.err = res.Err
				h.state = stateDone
				continue
			}
			h.stream = res.Stream
			h.buf = make([]byte, 64)
			h.state = stateRead
		case stateRead:
			if h.read == nil {
				h.read = h.stream.Read(h.buf)
			}
			if h.read.Poll(ctx) == rt.Pending {
				return rt.Pending
			}
			res := h.read.Value()
			h.read = nil
			if res.Err != nil && res.Err != io.EOF {
				h.err = res.Err
				h.state = stateDone
				continue
			}
			h.n = res.N
			if h.n == 0 {
				h.state = stateDone
				continue
			}
			h.state = stateWrite
		case stateWrite:
			if h.write == nil {
				h.write = h.stream.Write(h.buf[:h.n])
			}
			if h.write.Poll(ctx) == rt.Pending {
				return rt.Pending
			}
			res := h.write.Value()
			h.write = nil
			if res.Err != nil {
				h.err = res.Err
				h.state = stateDone
				continue
			}
			h.state = stateRead
		case stateDone:
			if h.stream != nil {
				h.stream.Close()
			}
			return rt.Ready
		}
	}
}

// pingClient connects, writes "ping", reads back the echo, and
// records what it saw for the test to assert on.
type pingClient struct {
	addr  string
	state int

	connect *ConnectFuture
	stream  *Stream
	write   *WriteFuture
	read    *ReadFuture

	readBuf []byte
	got     string
	err     error
}

func (c *pingClient) Poll(ctx *rt.Context) rt.Poll {
	for {
		switch c.state {
		case 0:
			if c.connect == nil {
				c.connect = Connect(c.addr)
			}
			if c.connect.Poll(ctx) == rt.Pending {
				return rt.Pending
			}
			res := c.connect.Value()
			if res.Err != nil {
				c.err = res.Err
				c.state = 3
				continue
			}
			c.stream = res.Stream
			c.state = 1
		case 1:
			if c.write == nil {
				c.write = c.stream.Write([]byte("ping"))
			}
			if c.write.Poll(ctx) == rt.Pending {
				return rt.Pending
			}
			res := c.write.Value()
			if res.Err != nil {
				c.err = res.Err
				c.state = 3
				continue
			}
			c.readBuf = make([]byte, 4)
			c.state = 2
		case 2:
			if c.read == nil {
				c.read = c.stream.Read(c.readBuf)
			}
			if c.read.Poll(ctx) == rt.Pending {
				return rt.Pending
			}
			res := c.read.Value()
			if res.Err != nil {
				c.err = res.Err
			} else {
				c.got = string(c.readBuf[:res.N])
			}
			c.state = 3
		case 3:
			if c.stream != nil {
				c.stream.Close()
			}
			return rt.Ready
		}
	}
}

// TestEchoRoundTrip: a listener accepts one connection and echoes
// bytes until EOF; a client writes "ping" and reads the same 4 bytes
// back, driven to completion by a single BlockOn call.
func TestEchoRoundTrip(t *testing.T) {
	r := rt.New()

	ln, err := Bind("127.0.0.1:0")
	if err != nil {
		t.Fatalf("bind: %v", err)
	}

	handler := &echoHandler{ln: ln}
	client := &pingClient{addr: ln.Addr().String()}

	root := rt.SuspendableFunc(func(ctx *rt.Context) rt.Poll {
		rt.Spawn(handler)
		rt.Spawn(client)
		return rt.Ready
	})

	// BlockOn runs the scheduler until it is idle (no tasks, nothing
	// pending), not merely until the root resolves, so the spawned
	// handler and client run to completion within this single call.
	r.BlockOn(root)

	if handler.err != nil {
		t.Fatalf("handler error: %v", handler.err)
	}
	if client.err != nil {
		t.Fatalf("client error: %v", client.err)
	}
	if client.got != "ping" {
		t.Fatalf("client got %q, want %q", client.got, "ping")
	}
}

// TestEchoRoundTripAcrossGoroutines runs the listener and the client
// on their own goroutine and their own Runtime, each pinned per the
// goroutine-affinity invariant, synchronized with an errgroup instead
// of a raw sync.WaitGroup - the shape a real server/client pair takes
// once they are not cooperatively scheduled on the same Runtime.
func TestEchoRoundTripAcrossGoroutines(t *testing.T) {
	ln, err := Bind("127.0.0.1:0")
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	addr := ln.Addr().String()

	var client pingClient
	client.addr = addr

	g, _ := errgroup.WithContext(context.Background())

	g.Go(func() error {
		serverRuntime := rt.New()
		handler := &echoHandler{ln: ln}
		serverRuntime.BlockOn(handler)
		return handler.err
	})

	g.Go(func() error {
		clientRuntime := rt.New()
		clientRuntime.BlockOn(&client)
		return client.err
	})

	if err := g.Wait(); err != nil {
		t.Fatalf("errgroup: %v", err)
	}
	if client.got != "ping" {
		t.Fatalf("client got %q, want %q", client.got, "ping")
	}
}
