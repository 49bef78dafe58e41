package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hmunye/rio"
	"github.com/hmunye/rio/cmd/riomon/ui"
	"github.com/hmunye/rio/internal/trace"
	"github.com/hmunye/rio/net/tcp"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run a demo TCP echo server on the rio runtime and watch it live",
	RunE:  runMonitor,
}

var (
	monitorAddr     string
	monitorDumpFile string
	monitorUIMode   string
	monitorLevel    string
)

func init() {
	monitorCmd.Flags().StringVar(&monitorAddr, "addr", "127.0.0.1:0", "address to listen on")
	monitorCmd.Flags().StringVar(&monitorDumpFile, "dump-file", "", "write a msgpack trace dump here on exit (disabled if empty)")
	monitorCmd.Flags().StringVar(&monitorUIMode, "ui", "auto", "dashboard mode (auto|on|off)")
	monitorCmd.Flags().StringVar(&monitorLevel, "trace-level", "detail", "trace.Level for the in-memory ring (off|error|phase|detail|debug)")
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	level, err := trace.ParseLevel(monitorLevel)
	if err != nil {
		return err
	}
	tracer, err := trace.New(trace.Config{Level: level, RingSize: 8192})
	if err != nil {
		return fmt.Errorf("riomon: build tracer: %w", err)
	}
	ring, _ := tracer.(*trace.RingTracer)

	ln, err := tcp.Bind(monitorAddr)
	if err != nil {
		return fmt.Errorf("riomon: bind %s: %w", monitorAddr, err)
	}

	srv := &echoServer{}
	serverErrCh := make(chan error, 1)
	go func() {
		r := rio.New(rio.WithTracer(tracer))
		r.BlockOn(&acceptLoop{ln: ln, srv: srv})
		serverErrCh <- fmt.Errorf("riomon: accept loop exited unexpectedly")
	}()

	snapshot := func() ui.Stats {
		var events []trace.Event
		if ring != nil {
			events = ring.Snapshot()
		}
		ticks, taskPolls, ioEvents := 0, 0, 0
		for _, ev := range events {
			if ev.Kind != trace.KindSpanBegin {
				continue
			}
			switch ev.Scope {
			case trace.ScopeTick:
				ticks++
			case trace.ScopeTask:
				taskPolls++
			case trace.ScopeIO:
				ioEvents++
			}
		}
		return ui.Stats{
			Addr:         ln.Addr().String(),
			Ticks:        ticks,
			TaskPolls:    taskPolls,
			IOEvents:     ioEvents,
			Connections:  atomic.LoadInt64(&srv.connections),
			BytesEchoed:  atomic.LoadInt64(&srv.bytesEchoed),
			RecentEvents: events,
		}
	}

	mode, err := readUIMode(monitorUIMode)
	if err != nil {
		return err
	}

	if shouldUseTUI(mode) {
		program := tea.NewProgram(ui.New(snapshot))
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("riomon: tui: %w", err)
		}
	} else {
		runPlainMonitor(snapshot, serverErrCh)
	}

	if monitorDumpFile != "" && ring != nil {
		if err := dumpRingToFile(ring, monitorDumpFile); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "riomon: wrote trace dump to %s\n", monitorDumpFile)
	}

	return nil
}

// runPlainMonitor is the non-TTY fallback: print a colorized one-line
// summary on an interval until interrupted.
func runPlainMonitor(snapshot func() ui.Stats, serverErrCh chan error) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)

	for {
		select {
		case <-sigCh:
			return
		case err := <-serverErrCh:
			bold.Fprintln(os.Stderr, err)
			return
		case <-ticker.C:
			s := snapshot()
			bold.Fprintf(os.Stdout, "riomon %s  ", s.Addr)
			green.Fprintf(os.Stdout, "conns=%d bytes=%d ticks=%d polls=%d io=%d\n",
				s.Connections, s.BytesEchoed, s.Ticks, s.TaskPolls, s.IOEvents)
		}
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
