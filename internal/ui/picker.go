package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lakshaymaurya-felt/purger/internal/progress"
	"github.com/lakshaymaurya-felt/purger/internal/project"
)

// ErrPickerAborted is returned when the user quits the picker without
// confirming a selection.
var ErrPickerAborted = errors.New("selection aborted")

// sizeBarWidth is the width of the per-row size proportion bar.
const sizeBarWidth = 12

// PickerModel is an interactive multi-select over discovered projects.
// Size resolution keeps running in the background; resolved sizes appear
// in place as their events arrive.
type PickerModel struct {
	items    []*project.Project
	base     string
	selected map[int]bool
	cursor   int
	pending  int
	events   <-chan progress.Event
	spin     spinner.Model
	confirm  bool
	quitting bool
}

type sizeEventMsg progress.Event

type eventsClosedMsg struct{}

func NewPicker(records []*project.Project, base string, events <-chan progress.Event) PickerModel {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(ColorPrimary)

	pending := 0
	for _, p := range records {
		if state, _, _ := p.Size(); state != project.SizeKnown {
			pending++
		}
	}
	return PickerModel{
		items:    records,
		base:     base,
		selected: make(map[int]bool, len(records)),
		pending:  pending,
		events:   events,
		spin:     sp,
	}
}

func (m PickerModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.waitForEvent())
}

func (m PickerModel) waitForEvent() tea.Cmd {
	if m.events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return eventsClosedMsg{}
		}
		return sizeEventMsg(ev)
	}
}

// ─── Update ──────────────────────────────────────────────────────────────────

func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case " ":
			m.selected[m.cursor] = !m.selected[m.cursor]
		case "a":
			for i := range m.items {
				m.selected[i] = true
			}
		case "n":
			for i := range m.items {
				m.selected[i] = false
			}
		case "enter":
			m.confirm = true
			m.quitting = true
			return m, tea.Quit
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case sizeEventMsg:
		if msg.Kind == progress.KindSizeResolved && m.pending > 0 {
			m.pending--
		}
		return m, m.waitForEvent()

	case eventsClosedMsg:
		m.pending = 0
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

// ─── View ────────────────────────────────────────────────────────────────────

func (m PickerModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	title := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).
		Render("  " + IconDiamond + " Select projects to clean")
	b.WriteString(title + "\n\n")

	var maxKnown int64
	for _, p := range m.items {
		if n := p.KnownSize(); n > maxKnown {
			maxKnown = n
		}
	}
	for i, p := range m.items {
		b.WriteString(m.renderRow(i, p, maxKnown) + "\n")
	}

	b.WriteString("\n")
	if m.pending > 0 {
		b.WriteString(fmt.Sprintf("  %s resolving %d size(s)\n", m.spin.View(), m.pending))
	}
	b.WriteString(HintBarStyle().Render(
		"  ↑/↓ move " + IconPipe + " space select " + IconPipe +
			" a all " + IconPipe + " n none " + IconPipe +
			" enter confirm " + IconPipe + " q abort"))
	b.WriteString("\n")
	return b.String()
}

func (m PickerModel) renderRow(i int, p *project.Project, maxKnown int64) string {
	mark := "[ ]"
	if m.selected[i] {
		mark = "[" + IconCheck + "]"
	}

	sizeStr := m.spin.View()
	switch state, n, _ := p.Size(); state {
	case project.SizeKnown:
		sizeStr = FormatSize(n)
	case project.SizeError:
		sizeStr = lipgloss.NewStyle().Foreground(ColorError).Render("error")
	}

	bar := strings.Repeat(" ", sizeBarWidth)
	if maxKnown > 0 {
		bar = GradientBar(float64(p.KnownSize())/float64(maxKnown), sizeBarWidth)
	}

	age := ""
	if !p.LastModified.IsZero() && time.Since(p.LastModified) > 180*24*time.Hour {
		age = " " + TagWarningStyle().Render(" >6mo ")
	}

	name := lipgloss.NewStyle().Foreground(ColorText).Render(fmt.Sprintf("%-24s", p.Name))
	line := fmt.Sprintf("%s %s %s %10s  %s  %s%s",
		mark, IconFolder, name, sizeStr, bar, p.RelPath(m.base), age)
	if i == m.cursor {
		cursor := lipgloss.NewStyle().Foreground(ColorPrimary).Render(IconChevron)
		return "  " + cursor + " " + line
	}
	return "    " + line
}

// RunPicker drives the picker to completion and returns the selection.
func RunPicker(records []*project.Project, base string, events <-chan progress.Event) ([]*project.Project, error) {
	prog := tea.NewProgram(NewPicker(records, base, events))
	final, err := prog.Run()
	if err != nil {
		return nil, fmt.Errorf("interactive selection: %w", err)
	}
	m, ok := final.(PickerModel)
	if !ok || !m.confirm {
		return nil, ErrPickerAborted
	}
	var out []*project.Project
	for i, p := range m.items {
		if m.selected[i] {
			out = append(out, p)
		}
	}
	return out, nil
}
