package tui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cbegin/layerloop/internal/channel"
	"github.com/cbegin/layerloop/internal/control"
	"github.com/cbegin/layerloop/internal/engine"
)

var (
	nord0  = lipgloss.Color("#2E3440")
	nord3  = lipgloss.Color("#4C566A")
	nord4  = lipgloss.Color("#D8DEE9")
	nord8  = lipgloss.Color("#88C0D0")
	nord9  = lipgloss.Color("#81A1C1")
	nord11 = lipgloss.Color("#BF616A")
	nord12 = lipgloss.Color("#D08770")
	nord13 = lipgloss.Color("#EBCB8B")
	nord14 = lipgloss.Color("#A3BE8C")

	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(nord8)
	dimStyle      = lipgloss.NewStyle().Foreground(nord3)
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(nord4)
	panelStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(nord3).Padding(0, 1)
	errStyle      = lipgloss.NewStyle().Padding(0, 1).Foreground(nord0).Background(nord11)
	okStyle       = lipgloss.NewStyle().Foreground(nord14)
)

// Options wires the UI to the engine.
type Options struct {
	Target control.Target
	// Handle applies an action; it defaults to control.Dispatch on Target.
	Handle func(control.Action) error
	// Export writes the current layers and mix, returning what was written.
	// Nil hides the export key.
	Export func() ([]string, error)
	// Stats returns an extra status line, for backend health.
	Stats    func() string
	Interval time.Duration
}

type tickMsg time.Time

type exportedMsg struct {
	paths []string
	err   error
}

// Model is the bubbletea model for the looper status screen. It polls the
// engine snapshot on a timer and never blocks the audio path.
type Model struct {
	target   control.Target
	handle   func(control.Action) error
	export   func() ([]string, error)
	stats    func() string
	interval time.Duration

	keys     keyMap
	help     help.Model
	snap     engine.Snapshot
	selected int
	status   string
	failed   bool
	width    int
}

func New(opts Options) *Model {
	m := &Model{
		target:   opts.Target,
		handle:   opts.Handle,
		export:   opts.Export,
		stats:    opts.Stats,
		interval: opts.Interval,
		keys:     defaultKeyMap(),
		help:     help.New(),
	}
	if m.handle == nil {
		m.handle = func(a control.Action) error { return control.Dispatch(m.target, a) }
	}
	if m.interval <= 0 {
		m.interval = 50 * time.Millisecond
	}
	m.keys.Export.SetEnabled(m.export != nil)
	m.snap = m.target.Snapshot()
	return m
}

func (m *Model) Init() tea.Cmd { return m.tick() }

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.snap = m.target.Snapshot()
		return m, m.tick()
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
	case exportedMsg:
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("export failed: %v", msg.err), true)
		} else {
			m.setStatus(fmt.Sprintf("exported %s", strings.Join(msg.paths, ", ")), false)
		}
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	slots := len(m.snap.Channels)
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}
	case key.Matches(msg, m.keys.Down):
		if m.selected < slots-1 {
			m.selected++
		}
	case key.Matches(msg, m.keys.Slot):
		slot := int(msg.String()[0] - '1')
		if slot < slots {
			m.selected = slot
			m.apply(control.Action{Kind: control.ActionToggle, Slot: slot})
		}
	case key.Matches(msg, m.keys.Toggle):
		m.apply(control.Action{Kind: control.ActionToggle, Slot: m.selected})
	case key.Matches(msg, m.keys.Record):
		m.apply(control.Action{Kind: control.ActionRecord, Slot: m.selected})
	case key.Matches(msg, m.keys.Close):
		m.apply(control.Action{Kind: control.ActionClose, Slot: m.selected})
	case key.Matches(msg, m.keys.Overdub):
		m.apply(control.Action{Kind: control.ActionOverdub, Slot: m.selected})
	case key.Matches(msg, m.keys.StopOverdub):
		m.apply(control.Action{Kind: control.ActionStopOverdub, Slot: m.selected})
	case key.Matches(msg, m.keys.Mute):
		m.apply(control.Action{Kind: control.ActionToggleMute, Slot: m.selected})
	case key.Matches(msg, m.keys.Evict):
		m.apply(control.Action{Kind: control.ActionEvict})
	case key.Matches(msg, m.keys.Undo):
		m.apply(control.Action{Kind: control.ActionUndo})
	case key.Matches(msg, m.keys.Reset):
		m.apply(control.Action{Kind: control.ActionReset})
	case key.Matches(msg, m.keys.Export):
		m.setStatus("exporting...", false)
		export := m.export
		return func() tea.Msg {
			paths, err := export()
			return exportedMsg{paths: paths, err: err}
		}
	}
	return nil
}

func (m *Model) apply(a control.Action) {
	if err := m.handle(a); err != nil {
		m.setStatus(err.Error(), true)
	} else {
		m.setStatus(a.String(), false)
	}
	m.snap = m.target.Snapshot()
}

func (m *Model) setStatus(s string, failed bool) {
	m.status = s
	m.failed = failed
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("layerloop"))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %d Hz · block %d · window %d/%d",
		m.snap.SampleRate, m.snap.BlockSize, len(m.snap.Window), m.snap.WindowLimit)))
	b.WriteString("\n\n")
	b.WriteString(m.transportView())
	b.WriteString("\n")

	var rows []string
	for _, cs := range m.snap.Channels {
		rows = append(rows, m.channelRow(cs))
	}
	b.WriteString(panelStyle.Render(strings.Join(rows, "\n")))
	b.WriteString("\n")

	if m.snap.Faults > 0 {
		b.WriteString(errStyle.Render(fmt.Sprintf("%d buffer faults", m.snap.Faults)))
		b.WriteString("\n")
	}
	if m.stats != nil {
		if s := m.stats(); s != "" {
			b.WriteString(dimStyle.Render(s))
			b.WriteString("\n")
		}
	}
	if m.status != "" {
		if m.failed {
			b.WriteString(errStyle.Render(m.status))
		} else {
			b.WriteString(okStyle.Render(m.status))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) transportView() string {
	width := 40
	if m.width > 30 {
		width = min(m.width-30, 80)
	}
	if !m.snap.Established() {
		return renderBar(0, width, "no loop yet", nord3)
	}
	label := fmt.Sprintf("%5.2fs / %.2fs",
		m.snap.Progress()*m.snap.LoopDuration().Seconds(), m.snap.LoopDuration().Seconds())
	return renderBar(m.snap.Progress(), width, label, nord9)
}

func (m *Model) channelRow(cs engine.ChannelSnapshot) string {
	cursor := "  "
	if cs.Index == m.selected {
		cursor = "▶ "
	}
	state := stateStyle(cs.State).Render(fmt.Sprintf("%-11s", stateLabel(cs)))
	var flags []string
	if cs.Muted {
		flags = append(flags, "muted")
	}
	if age := windowAge(m.snap.Window, cs.Index); age >= 0 {
		flags = append(flags, fmt.Sprintf("layer %d", age+1))
	}
	if cs.PendingClear {
		flags = append(flags, "clearing")
	}
	row := fmt.Sprintf("%s%d  %s %s", cursor, cs.Index+1, state, dimStyle.Render(strings.Join(flags, " ")))
	if cs.State == channel.Recording && m.snap.SampleRate > 0 {
		row += dimStyle.Render(fmt.Sprintf(" %.2fs", float64(cs.RecordedLength)/float64(m.snap.SampleRate)))
	}
	if cs.Index == m.selected {
		return selectedStyle.Render(row)
	}
	return row
}

func stateLabel(cs engine.ChannelSnapshot) string {
	switch cs.State {
	case channel.Recording:
		if cs.Establishing {
			return "REC first"
		}
		return "REC"
	case channel.Playing:
		return "PLAY"
	case channel.Overdubbing:
		return "OVERDUB"
	case channel.Retired:
		return "retired"
	}
	return "empty"
}

func stateStyle(s channel.State) lipgloss.Style {
	switch s {
	case channel.Recording:
		return lipgloss.NewStyle().Foreground(nord11).Bold(true)
	case channel.Playing:
		return lipgloss.NewStyle().Foreground(nord14)
	case channel.Overdubbing:
		return lipgloss.NewStyle().Foreground(nord12).Bold(true)
	case channel.Retired:
		return lipgloss.NewStyle().Foreground(nord3)
	}
	return lipgloss.NewStyle().Foreground(nord13)
}

// windowAge is the slot's position in the window, oldest first, or -1.
func windowAge(window []int, slot int) int {
	for i, idx := range window {
		if idx == slot {
			return i
		}
	}
	return -1
}

func renderBar(ratio float64, width int, label string, color lipgloss.Color) string {
	if width < 10 {
		width = 10
	}
	r := math.Max(0, math.Min(1, ratio))
	filled := min(int(math.Round(r*float64(width))), width)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return lipgloss.NewStyle().Foreground(color).Render(fmt.Sprintf("[%s] %s", bar, label))
}

// Run shows the UI full-screen until the user quits or ctx is done.
func Run(ctx context.Context, m *Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
