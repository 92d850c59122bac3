// Package gridding is the bubbletea view shown while grid calculations
// run on a terminal.
package gridding

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
)

// ProgressMsg reports done of total points of one section.
type ProgressMsg struct {
	Section int
	Done    int
	Total   int
}

// DoneMsg ends the view with the calculation log and error.
type DoneMsg struct {
	Log []string
	Err error
}

type sectionState struct {
	name  string
	done  int
	total int
	bar   progress.Model
}

// Model is the bubbletea model of the gridding progress view.
type Model struct {
	title    string
	sections []sectionState
	cancel   func()
	start    time.Time

	finished  bool
	cancelled bool
	log       []string
	err       error

	keys     KeyMap
	help     help.Model
	showHelp bool
	width    int
}

// New returns a model with one bar per section name. cancel is called
// when the user quits before the calculation ends.
func New(title string, names []string, cancel func()) Model {
	m := Model{
		title:  title,
		cancel: cancel,
		start:  time.Now(),
		keys:   DefaultKeyMap(),
		help:   help.New(),
	}
	for _, n := range names {
		m.sections = append(m.sections, sectionState{
			name: n,
			bar:  progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		})
	}
	return m
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		for i := range m.sections {
			m.sections[i].bar.Width = barWidth(msg.Width)
		}
		return m, nil

	case ProgressMsg:
		if msg.Section >= 0 && msg.Section < len(m.sections) {
			s := &m.sections[msg.Section]
			s.done, s.total = msg.Done, msg.Total
		}
		return m, nil

	case DoneMsg:
		m.finished = true
		m.log = msg.Log
		m.err = msg.Err
		return m, tea.Quit

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.cancelled = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			return m, nil
		}
	}
	return m, nil
}

// Cancelled reports whether the user quit the view.
func (m Model) Cancelled() bool { return m.cancelled }

// Result returns the final log and error once DoneMsg arrived.
func (m Model) Result() ([]string, bool, error) { return m.log, m.finished, m.err }

// Fraction returns the overall done fraction.
func (m Model) Fraction() float64 {
	done, total := 0, 0
	for _, s := range m.sections {
		done += s.done
		total += s.total
	}
	if total == 0 {
		return 0
	}
	return float64(done) / float64(total)
}

func barWidth(width int) int {
	return min(max(width-40, 10), 60)
}

// View renders the model.
func (m Model) View() string {
	return m.renderView()
}
