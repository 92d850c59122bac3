package tc

import (
	"errors"
	"strings"
	"testing"

	"github.com/petrolab/psb/internal/tc/tctest"
)

func always(string) bool { return true }

func TestParseScript(t *testing.T) {
	sc, err := ParseScript(tctest.Script, always)
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	if sc.AxName != "mp50" {
		t.Errorf("AxName = %q", sc.AxName)
	}
	if sc.TRange != [2]float64{400, 800} {
		t.Errorf("TRange = %v", sc.TRange)
	}
	if sc.PRange != [2]float64{2, 12} {
		t.Errorf("PRange = %v", sc.PRange)
	}
	if got := sc.Excess.Key(); got != "H2O q" {
		t.Errorf("Excess = %q", got)
	}
	if len(sc.Bulk) != 2 || strings.Join(sc.Bulk[0], " ") != "55.0 10.0 5.0 3.0" {
		t.Errorf("Bulk = %v", sc.Bulk)
	}
}

func TestParseScriptRules(t *testing.T) {
	base := tctest.Script
	tests := []struct {
		name    string
		script  string
		wantMsg string
	}{
		{"missing axfile", strings.Replace(base, "axfile mp50\n", "", 1), "Axfile name must be provided"},
		{"missing setbulk", strings.ReplaceAll(base, "setbulk yes", "% setbulk yes"), "Setbulk must be provided"},
		{"excess ask", strings.Replace(base, "setexcess q H2O", "setexcess ask", 1), "Setexcess must not be set to ask."},
		{"calctatp", strings.Replace(base, "calctatp ask", "calctatp yes", 1), "Calctatp must be set to ask."},
		{"printxyz no", strings.Replace(base, "printxyz yes", "printxyz no", 1), "Printxyz must be set to yes."},
		{"dogmin", strings.Replace(base, "dogmin no", "dogmin yes", 1), "Dogmin must be set to no."},
		{"fluidpresent", strings.Replace(base, "dogmin no", "fluidpresent yes", 1), "Fluidpresent must be deleted"},
		{"convliq", strings.Replace(base, "dogmin no", "convliq yes", 1), "Convliq not yet supported."},
		{"no guess tags", strings.Replace(base, "{PSBGUESS-END}", "", 1), "There are not {PSBGUESS-BEGIN}"},
		{"bad window", strings.Replace(base, "setdefTwindow yes 400 800", "setdefTwindow yes 400 hot", 1), "Wrong arguments for setdefTwindow"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScript(tt.script, always)
			var se *ScriptfileError
			if !errors.As(err, &se) {
				t.Fatalf("expected ScriptfileError, got %v", err)
			}
			if !strings.Contains(se.Msg, tt.wantMsg) {
				t.Errorf("message %q does not contain %q", se.Msg, tt.wantMsg)
			}
		})
	}
}

func TestParseScriptMissingAxfile(t *testing.T) {
	_, err := ParseScript(tctest.Script, func(string) bool { return false })
	if err == nil || !strings.Contains(err.Error(), "tc-mp50.txt does not exists") {
		t.Fatalf("expected axfile error, got %v", err)
	}
}

func TestParseScriptExcessNo(t *testing.T) {
	sc, err := ParseScript(strings.Replace(tctest.Script, "setexcess q H2O", "setexcess no", 1), always)
	if err != nil {
		t.Fatal(err)
	}
	if sc.Excess.Len() != 0 {
		t.Errorf("Excess = %v, want empty", sc.Excess)
	}
}

func TestReplaceGuesses(t *testing.T) {
	out := ReplaceGuesses(tctest.Script, []string{"ptguess 8 650", "xyzguess x(g) 0.8"})
	want := "% {PSBGUESS-BEGIN}\nptguess 8 650\nxyzguess x(g) 0.8\n% {PSBGUESS-END}\n"
	if !strings.Contains(out, want) {
		t.Errorf("guess block not replaced:\n%s", out)
	}
	if strings.Contains(out, "ptguess 6 600") {
		t.Error("old guesses should be gone")
	}
	if !strings.HasSuffix(out, "trailing text ignored\n") {
		t.Error("content after the block must be kept")
	}
}

func TestReplaceGuessesWithoutTags(t *testing.T) {
	in := "axfile x\n*\n"
	if got := ReplaceGuesses(in, []string{"ptguess 1 2"}); got != in {
		t.Errorf("content without tags should be unchanged, got %q", got)
	}
}

func TestReplaceBulk(t *testing.T) {
	out := ReplaceBulk(tctest.Script, []string{"57.5", "11.0", "4.5", "2.5"})
	if !strings.Contains(out, "setbulk yes 57.5 11.0 4.5 2.5\n") {
		t.Errorf("first setbulk not replaced:\n%s", out)
	}
	if !strings.Contains(out, "% setbulk yes 60.0 12.0 4.0 2.0\n") {
		t.Errorf("second setbulk should be commented out:\n%s", out)
	}
	sc, err := ParseScript(out, always)
	if err != nil {
		t.Fatal(err)
	}
	if len(sc.Bulk) != 1 {
		t.Errorf("Bulk rows = %d, want 1", len(sc.Bulk))
	}
}

func TestInterpolateBulk(t *testing.T) {
	bulk := [][]string{{"50", "10"}, {"60", "20"}}
	got, err := InterpolateBulk(bulk, 0.25)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(got, " ") != "52.500000 12.500000" {
		t.Errorf("InterpolateBulk = %v", got)
	}

	single, err := InterpolateBulk(bulk[:1], 0.5)
	if err != nil || strings.Join(single, " ") != "50 10" {
		t.Errorf("single bulk = %v, %v", single, err)
	}

	if _, err := InterpolateBulk([][]string{{"1"}, {"1", "2"}}, 0.5); err == nil {
		t.Error("expected length mismatch error")
	}
}
