// Package tui implements a terminal progress monitor for an in-flight
// render: a peak meter for the latest block and a block/sample counter, driven by
// progress ticks read off a channel fed from engine.Scheduler.Render.
// Adapted from the teacher's pattern-editor Model (Init/Update/View over
// tea.Model, tickCmd-driven refresh, lipgloss styling), generalized from
// a tracker pattern grid to a render progress readout since there is no
// pattern data left to edit in an offline renderer.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Progress is one snapshot of render state, sent by the caller as blocks
// complete. TotalEstimate may be 0 if the renderer can't estimate length
// up front (§4.5: duration isn't known until the terminal tail is found).
type Progress struct {
	BlocksRendered int
	FramesRendered int
	TotalEstimate  int
	PeakLevel      float64 // 0..1, max |sample| seen in the most recent block
	Done           bool
}

// progressMsg wraps a Progress for tea.Model.Update.
type progressMsg Progress

// Model is the render-progress TUI model.
type Model struct {
	TrackName  string
	SampleRate int

	progress Progress
	updates  <-chan Progress
	width    int
}

// NewModel builds a progress monitor that reads snapshots from updates
// until the channel closes.
func NewModel(trackName string, sampleRate int, updates <-chan Progress) Model {
	return Model{
		TrackName:  trackName,
		SampleRate: sampleRate,
		updates:    updates,
		width:      80,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tea.EnterAltScreen, waitForProgress(m.updates))
}

func waitForProgress(updates <-chan Progress) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-updates
		if !ok {
			return progressMsg(Progress{Done: true})
		}
		return progressMsg(p)
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
		return m, nil
	case progressMsg:
		m.progress = Progress(msg)
		if m.progress.Done {
			return m, tea.Quit
		}
		return m, waitForProgress(m.updates)
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("14")).
		Render(fmt.Sprintf(" rendering %s ", m.TrackName))
	b.WriteString(title + "\n\n")

	seconds := 0.0
	if m.SampleRate > 0 {
		seconds = float64(m.progress.FramesRendered) / float64(m.SampleRate)
	}
	b.WriteString(fmt.Sprintf("blocks: %-6d frames: %-10d %.2fs\n",
		m.progress.BlocksRendered, m.progress.FramesRendered, seconds))

	if m.progress.TotalEstimate > 0 {
		b.WriteString(m.barView(m.progress.BlocksRendered, m.progress.TotalEstimate) + "\n")
	}
	b.WriteString(m.meterView(m.progress.PeakLevel) + "\n")

	footer := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("q to quit")
	b.WriteString("\n" + footer)
	return b.String()
}

func (m Model) barView(done, total int) string {
	width := 40
	filled := 0
	if total > 0 {
		filled = width * done / total
		if filled > width {
			filled = width
		}
	}
	bar := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(strings.Repeat("█", filled))
	rest := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(strings.Repeat("░", width-filled))
	return bar + rest
}

func (m Model) meterView(peak float64) string {
	width := 40
	filled := int(peak * float64(width))
	if filled > width {
		filled = width
	}
	color := lipgloss.Color("10")
	if peak > 0.9 {
		color = lipgloss.Color("9")
	} else if peak > 0.7 {
		color = lipgloss.Color("11")
	}
	meter := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("▮", filled))
	rest := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(strings.Repeat("▯", width-filled))
	return "peak " + meter + rest
}

// tickCmd is kept for callers that want a periodic redraw independent of
// progress arrival; unused by the default Init but available to embed in
// a custom Update loop.
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return nil
	})
}
