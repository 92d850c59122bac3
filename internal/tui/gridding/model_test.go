package gridding

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestProgress(t *testing.T) {
	m := New("Gridding garnet", []string{"garnet.psb", "garnet2.psb"}, nil)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 20})
	m, _ = update(t, m, ProgressMsg{Section: 0, Done: 3, Total: 4})
	m, _ = update(t, m, ProgressMsg{Section: 1, Done: 1, Total: 4})
	m, _ = update(t, m, ProgressMsg{Section: 7, Done: 1, Total: 1})

	if got := m.Fraction(); got != 0.5 {
		t.Errorf("Fraction() = %v, want 0.5", got)
	}
	view := m.View()
	for _, want := range []string{"Gridding garnet", "garnet.psb", "3/4", "1/4", "50%"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}
}

func TestDone(t *testing.T) {
	m := New("g", []string{"a"}, nil)
	m, cmd := update(t, m, DoneMsg{Log: []string{"Fix done."}})
	if cmd == nil {
		t.Fatal("DoneMsg should quit")
	}
	log, ok, err := m.Result()
	if !ok || err != nil || len(log) != 1 {
		t.Errorf("Result() = %v, %v, %v", log, err, ok)
	}
	if !strings.Contains(m.View(), "done in") {
		t.Errorf("View() = %q", m.View())
	}

	m, _ = update(t, m, DoneMsg{Err: errors.New("Bombed")})
	if !strings.Contains(m.View(), "Error: Bombed") {
		t.Errorf("View() = %q", m.View())
	}
}

func TestQuitCancels(t *testing.T) {
	called := false
	m := New("g", []string{"a"}, func() { called = true })
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !called || !m.Cancelled() || cmd == nil {
		t.Errorf("quit: called=%v cancelled=%v cmd=%v", called, m.Cancelled(), cmd != nil)
	}
}

func TestHelpToggle(t *testing.T) {
	m := New("g", nil, nil)
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	if !m.showHelp {
		t.Error("? should toggle help")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("pseudosection.psb", 8); got != "pseudos…" {
		t.Errorf("truncate() = %q", got)
	}
}
