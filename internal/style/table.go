package style

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/petrolab/psb/internal/ui"
)

// Column defines a table column. A zero Width fits the widest cell.
// Render, when set, styles every cell of the column.
type Column struct {
	Name   string
	Width  int
	Align  Alignment
	Render func(string) string
}

// Alignment specifies column text alignment.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
	AlignCenter
)

// Table provides styled table rendering.
type Table struct {
	columns     []Column
	rows        [][]string
	headerSep   bool
	indent      string
	headerStyle lipgloss.Style
}

// NewTable creates a new table with the given columns.
func NewTable(columns ...Column) *Table {
	return &Table{
		columns:     columns,
		headerSep:   true,
		indent:      "  ",
		headerStyle: ui.BoldStyle,
	}
}

// SetIndent sets the left indent for the table.
func (t *Table) SetIndent(indent string) *Table {
	t.indent = indent
	return t
}

// SetHeaderSeparator enables/disables the header separator line.
func (t *Table) SetHeaderSeparator(enabled bool) *Table {
	t.headerSep = enabled
	return t
}

// AddRow adds a row of values to the table.
func (t *Table) AddRow(values ...string) *Table {
	for len(values) < len(t.columns) {
		values = append(values, "")
	}
	t.rows = append(t.rows, values)
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

func (t *Table) widths() []int {
	widths := make([]int, len(t.columns))
	for i, col := range t.columns {
		if col.Width > 0 {
			widths[i] = col.Width
			continue
		}
		widths[i] = lipgloss.Width(col.Name)
		for _, row := range t.rows {
			widths[i] = max(widths[i], lipgloss.Width(row[i]))
		}
	}
	return widths
}

// Render returns the formatted table string.
func (t *Table) Render() string {
	if len(t.columns) == 0 {
		return ""
	}
	widths := t.widths()

	var sb strings.Builder
	sb.WriteString(t.indent)
	for i, col := range t.columns {
		sb.WriteString(pad(t.headerStyle.Render(col.Name), widths[i], col.Align, i == len(t.columns)-1))
	}
	sb.WriteString("\n")

	if t.headerSep {
		total := len(widths) - 1
		for _, w := range widths {
			total += w
		}
		sb.WriteString(t.indent)
		sb.WriteString(Dim.Render(strings.Repeat("─", total)))
		sb.WriteString("\n")
	}

	for _, row := range t.rows {
		sb.WriteString(t.indent)
		for i, col := range t.columns {
			val := row[i]
			if w := lipgloss.Width(val); w > widths[i] {
				val = truncate(val, widths[i])
			}
			if col.Render != nil {
				val = col.Render(val)
			}
			sb.WriteString(pad(val, widths[i], col.Align, i == len(t.columns)-1))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// truncate shortens plain text to width runes with an ellipsis.
func truncate(s string, width int) string {
	r := []rune(s)
	if width < 4 || len(r) <= width {
		return string(r[:min(width, len(r))])
	}
	return string(r[:width-3]) + "..."
}

// pad pads styled text to width display cells, followed by a column
// separator unless last. The last left aligned column is not padded.
func pad(text string, width int, align Alignment, last bool) string {
	padding := max(width-lipgloss.Width(text), 0)
	var out string
	switch align {
	case AlignRight:
		out = strings.Repeat(" ", padding) + text
	case AlignCenter:
		left := padding / 2
		out = strings.Repeat(" ", left) + text + strings.Repeat(" ", padding-left)
	default:
		if last {
			return text
		}
		out = text + strings.Repeat(" ", padding)
	}
	if last {
		return out
	}
	return out + " "
}
