package style

import (
	"bytes"
	"strings"
	"testing"
)

func TestStyleVariables(t *testing.T) {
	tests := []struct {
		name   string
		render func(...string) string
	}{
		{"Success", Success.Render},
		{"Warning", Warning.Render},
		{"Error", Error.Render},
		{"Info", Info.Render},
		{"Dim", Dim.Render},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.Contains(tt.render("test"), "test") {
				t.Errorf("Style %s.Render() lost its text", tt.name)
			}
		})
	}
}

func TestPrefixVariables(t *testing.T) {
	for name, prefix := range map[string]string{
		"SuccessPrefix": SuccessPrefix,
		"WarningPrefix": WarningPrefix,
		"ErrorPrefix":   ErrorPrefix,
		"ArrowPrefix":   ArrowPrefix,
	} {
		if prefix == "" {
			t.Errorf("Prefix variable %s should not be empty", name)
		}
	}
}

func TestPrintWarning(t *testing.T) {
	var buf bytes.Buffer
	PrintWarning(&buf, "line %d without end point", 3)
	if !strings.Contains(buf.String(), "Warning:") || !strings.Contains(buf.String(), "line 3 without end point") {
		t.Errorf("PrintWarning() = %q", buf.String())
	}

	buf.Reset()
	PrintSuccess(&buf, "grid saved")
	if !strings.HasSuffix(buf.String(), "grid saved\n") {
		t.Errorf("PrintSuccess() = %q", buf.String())
	}
}

func TestTableRender(t *testing.T) {
	tbl := NewTable(
		Column{Name: "ID", Align: AlignRight},
		Column{Name: "LABEL"},
		Column{Name: "STATUS", Width: 6},
	).SetIndent("").SetHeaderSeparator(false)
	tbl.AddRow("1", "bi g st - g st", "ok")
	tbl.AddRow("12", "bi mu", "bombed!")

	want := strings.Join([]string{
		"ID LABEL          STATUS",
		" 1 bi g st - g st ok",
		"12 bi mu          bom...",
		"",
	}, "\n")
	if got := tbl.Render(); got != want {
		t.Errorf("Render() =\n%q\nwant\n%q", got, want)
	}
	if tbl.Len() != 2 {
		t.Errorf("Len() = %d", tbl.Len())
	}
}

func TestTableSeparatorAndPadding(t *testing.T) {
	tbl := NewTable(Column{Name: "T(°C)"}, Column{Name: "p"})
	tbl.AddRow("600")
	out := tbl.Render()
	lines := strings.Split(out, "\n")
	if len(lines) != 4 {
		t.Fatalf("Render() lines = %d: %q", len(lines), out)
	}
	if !strings.Contains(lines[1], strings.Repeat("─", 7)) {
		t.Errorf("separator = %q", lines[1])
	}
	if lines[2] != "  600   " {
		t.Errorf("row = %q", lines[2])
	}
}

func TestTableEmpty(t *testing.T) {
	if NewTable().Render() != "" {
		t.Error("table without columns should render empty")
	}
}
