package gridding

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/petrolab/psb/internal/ui"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(ui.ColorAccent)
	nameStyle  = lipgloss.NewStyle().Width(16)
	countStyle = lipgloss.NewStyle().Foreground(ui.ColorMuted)
	doneStyle  = lipgloss.NewStyle().Foreground(ui.ColorPass)
	errorStyle = lipgloss.NewStyle().Foreground(ui.ColorFail)
)

func (m Model) renderView() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")

	for _, s := range m.sections {
		frac := 0.0
		if s.total > 0 {
			frac = float64(s.done) / float64(s.total)
		}
		b.WriteString(nameStyle.Render(truncate(s.name, 15)))
		b.WriteString(s.bar.ViewAs(frac))
		b.WriteString(countStyle.Render(fmt.Sprintf(" %d/%d", s.done, s.total)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	elapsed := time.Since(m.start).Truncate(time.Second)
	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	case m.finished:
		b.WriteString(doneStyle.Render(fmt.Sprintf("%s done in %s", ui.IconPass, elapsed)))
	case m.cancelled:
		b.WriteString(errorStyle.Render("cancelling..."))
	default:
		b.WriteString(countStyle.Render(fmt.Sprintf("%3.0f%%  %s", 100*m.Fraction(), elapsed)))
	}
	b.WriteString("\n")

	if m.showHelp {
		b.WriteString(m.help.FullHelpView(m.keys.FullHelp()))
	} else {
		b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
	}
	b.WriteString("\n")
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
