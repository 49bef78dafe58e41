package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/hmunye/rio"
	"github.com/hmunye/rio/internal/trace"
	"github.com/hmunye/rio/net/tcp"
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Run the demo server headlessly for a fixed duration and msgpack-dump its trace ring",
	RunE:  runDump,
}

var (
	dumpAddr     string
	dumpOut      string
	dumpDuration time.Duration
	dumpLevel    string
)

func init() {
	dumpCmd.Flags().StringVar(&dumpAddr, "addr", "127.0.0.1:0", "address to listen on")
	dumpCmd.Flags().StringVar(&dumpOut, "out", "riomon.trace.msgpack", "output file for the msgpack trace dump")
	dumpCmd.Flags().DurationVar(&dumpDuration, "duration", 3*time.Second, "how long to run the server before dumping")
	dumpCmd.Flags().StringVar(&dumpLevel, "trace-level", "debug", "trace.Level for the in-memory ring (off|error|phase|detail|debug)")
}

func runDump(cmd *cobra.Command, _ []string) error {
	level, err := trace.ParseLevel(dumpLevel)
	if err != nil {
		return err
	}
	tracer, err := trace.New(trace.Config{Level: level, RingSize: 16384})
	if err != nil {
		return fmt.Errorf("riomon: build tracer: %w", err)
	}
	ring, ok := tracer.(*trace.RingTracer)
	if !ok {
		return fmt.Errorf("riomon: expected a ring tracer")
	}

	ln, err := tcp.Bind(dumpAddr)
	if err != nil {
		return fmt.Errorf("riomon: bind %s: %w", dumpAddr, err)
	}

	srv := &echoServer{}
	go func() {
		r := rio.New(rio.WithTracer(tracer))
		r.BlockOn(&acceptLoop{ln: ln, srv: srv})
	}()

	fmt.Fprintf(os.Stdout, "riomon: listening on %s, dumping after %s\n", ln.Addr(), dumpDuration)
	time.Sleep(dumpDuration)

	return dumpRingToFile(ring, dumpOut)
}

// dumpEvent is the msgpack wire shape for one trace.Event: a narrower,
// stable encoding rather than msgpack-serializing trace.Event's Go
// struct layout directly.
type dumpEvent struct {
	Seq      uint64            `msgpack:"seq"`
	Kind     string            `msgpack:"kind"`
	Scope    string            `msgpack:"scope"`
	SpanID   uint64            `msgpack:"span_id"`
	ParentID uint64            `msgpack:"parent_id"`
	GID      uint64            `msgpack:"gid"`
	Name     string            `msgpack:"name"`
	Detail   string            `msgpack:"detail,omitempty"`
	Extra    map[string]string `msgpack:"extra,omitempty"`
	UnixNano int64             `msgpack:"unix_nano"`
}

func dumpRingToFile(ring *trace.RingTracer, path string) error {
	events := ring.Snapshot()
	out := make([]dumpEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, dumpEvent{
			Seq:      ev.Seq,
			Kind:     ev.Kind.String(),
			Scope:    ev.Scope.String(),
			SpanID:   ev.SpanID,
			ParentID: ev.ParentID,
			GID:      ev.GID,
			Name:     ev.Name,
			Detail:   ev.Detail,
			Extra:    ev.Extra,
			UnixNano: ev.Time.UnixNano(),
		})
	}

	data, err := msgpack.Marshal(out)
	if err != nil {
		return fmt.Errorf("riomon: marshal trace dump: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("riomon: write trace dump: %w", err)
	}
	return nil
}
