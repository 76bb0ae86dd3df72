package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tendant/simple-converter/internal/batch"
	"github.com/tendant/simple-converter/internal/convert"
	"github.com/tendant/simple-converter/internal/process"
)

// Update is one message from a running batch: either item progress or an
// item state change.
type Update struct {
	Progress *convert.Event
	Item     *batch.Item
}

// Hooks returns batch hooks that forward everything to updates.
func Hooks(updates chan<- Update) batch.Hooks {
	return batch.Hooks{
		Progress: convert.ObserverFunc(func(e convert.Event) {
			updates <- Update{Progress: &e}
		}),
		OnItem: func(it batch.Item) {
			updates <- Update{Item: &it}
		},
	}
}

type Model struct {
	updates  <-chan Update
	title    string
	started  time.Time
	width    int
	total    int
	done     int
	failed   int
	current  string
	percent  int
	saved    int64
	quitting bool
}

type doneMsg struct{}

type updateMsg Update

func NewModel(title string, total int, updates <-chan Update) Model {
	return Model{title: title, total: total, updates: updates, started: time.Now()}
}

func (m Model) Init() tea.Cmd {
	return listenForUpdates(m.updates)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case updateMsg:
		if msg.Progress != nil {
			m.percent = msg.Progress.Percent
		}
		if it := msg.Item; it != nil {
			switch it.Status {
			case process.JobStatusCompleted:
				m.done++
				m.saved += it.Size - it.OutputSize
			case process.JobStatusError:
				m.failed++
			default:
				m.current = it.Name
				m.percent = 0
			}
		}
		return m, listenForUpdates(m.updates)
	case doneMsg:
		m.quitting = true
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	default:
		return m, nil
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	barWidth := 40
	if m.width > 0 {
		barWidth = int(math.Min(60, float64(m.width-10)))
		if barWidth < 20 {
			barWidth = 20
		}
	}

	ratio := 0.0
	if m.total > 0 {
		ratio = float64(m.done+m.failed) / float64(m.total)
		if ratio > 1 {
			ratio = 1
		}
	}

	elapsed := time.Since(m.started).Round(time.Millisecond)
	lines := []string{
		titleStyle.Render(m.title),
		labelStyle.Render(fmt.Sprintf("Files: %d/%d", m.done+m.failed, m.total)) + dimStyle.Render(fmt.Sprintf("  errors:%d", m.failed)),
	}
	if m.current != "" {
		lines = append(lines, labelStyle.Render(fmt.Sprintf("Current: %s %d%%", m.current, m.percent)))
	}
	lines = append(lines,
		labelStyle.Render("Saved: "+FormatBytes(m.saved)),
		dimStyle.Render(fmt.Sprintf("Elapsed: %s", elapsed)),
		barStyle.Render(renderBar(barWidth, ratio)),
	)
	return strings.Join(lines, "\n")
}

func listenForUpdates(updates <-chan Update) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-updates
		if !ok {
			return doneMsg{}
		}
		return updateMsg(update)
	}
}

func renderBar(width int, ratio float64) string {
	filled := int(math.Round(ratio * float64(width)))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	labelStyle = lipgloss.NewStyle().Foreground(ColorInk)
	barStyle   = lipgloss.NewStyle().Foreground(ColorAccent)
	dimStyle   = lipgloss.NewStyle().Foreground(ColorDim)
)
