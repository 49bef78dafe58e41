// Package ui renders a live dashboard of a running rio server: tick
// counts, task polls, io events, and connection counters, sourced from
// a trace.RingTracer snapshot and a handful of atomic counters the
// demo server maintains alongside it.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/hmunye/rio/internal/trace"
)

// numberPrinter renders counters with thousands separators, matching
// a dashboard meant to be read at a glance rather than parsed.
var numberPrinter = message.NewPrinter(language.English)

// Stats is one refresh's worth of server counters, computed by the
// caller from a trace.RingTracer snapshot plus server-maintained
// atomic counters.
type Stats struct {
	Addr         string
	Ticks        int
	TaskPolls    int
	IOEvents     int
	Connections  int64
	BytesEchoed  int64
	RecentEvents []trace.Event
}

// SnapshotFunc computes a fresh Stats reading. The model calls it on
// every refresh tick rather than holding a reference to the server's
// internals directly.
type SnapshotFunc func() Stats

type refreshMsg struct{ stats Stats }

type model struct {
	snapshot SnapshotFunc
	spinner  spinner.Model
	stats    Stats
	width    int
	quitting bool
}

// New returns a Bubble Tea model that polls snapshot every interval.
func New(snapshot SnapshotFunc) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	return &model{snapshot: snapshot, spinner: sp, width: 80}
}

const refreshInterval = 250 * time.Millisecond

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.tick(), m.refresh())
}

func (m *model) tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg { return refreshMsg{m.snapshot()} })
}

func (m *model) refresh() tea.Cmd {
	return func() tea.Msg { return refreshMsg{m.snapshot()} }
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case refreshMsg:
		m.stats = msg.stats
		return m, m.tick()
	case spinner.TickMsg:
		if m.quitting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
		}
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
	}
	return m, nil
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func (m *model) View() string {
	var b strings.Builder

	header := fmt.Sprintf("%s riomon — %s", m.spinner.View(), m.stats.Addr)
	if m.quitting {
		header = fmt.Sprintf("riomon — %s (stopped)", m.stats.Addr)
	}
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	rows := [][2]string{
		{"ticks", numberPrinter.Sprintf("%d", m.stats.Ticks)},
		{"task polls", numberPrinter.Sprintf("%d", m.stats.TaskPolls)},
		{"io events", numberPrinter.Sprintf("%d", m.stats.IOEvents)},
		{"connections", numberPrinter.Sprintf("%d", m.stats.Connections)},
		{"bytes echoed", numberPrinter.Sprintf("%d", m.stats.BytesEchoed)},
	}
	labelWidth := 0
	for _, r := range rows {
		if w := runewidth.StringWidth(r[0]); w > labelWidth {
			labelWidth = w
		}
	}
	for _, r := range rows {
		pad := strings.Repeat(" ", labelWidth-runewidth.StringWidth(r[0]))
		b.WriteString(fmt.Sprintf("  %s%s  %s\n", labelStyle.Render(r[0]), pad, valueStyle.Render(r[1])))
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("last %d trace events:", len(m.stats.RecentEvents))))
	b.WriteString("\n")
	for _, ev := range tailEvents(m.stats.RecentEvents, 8) {
		line := fmt.Sprintf("  %-6s %-6s %s", ev.Scope, ev.Kind, ev.Name)
		b.WriteString(truncate(line, m.width))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("press q to quit"))
	b.WriteString("\n")

	return b.String()
}

func tailEvents(events []trace.Event, n int) []trace.Event {
	if len(events) <= n {
		return events
	}
	return events[len(events)-n:]
}

func truncate(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
