package tc

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/petrolab/psb/internal/phase"
)

// Guess block markers in the scriptfile.
const (
	GuessBegin = "{PSBGUESS-BEGIN}"
	GuessEnd   = "{PSBGUESS-END}"
)

// Default section windows used when the scriptfile sets none.
var (
	DefaultTRange = [2]float64{200, 1000}
	DefaultPRange = [2]float64{0.1, 20}
)

// Script holds the scriptfile settings psb depends on.
type Script struct {
	AxName string
	TRange [2]float64
	PRange [2]float64
	// Bulk holds one composition per setbulk line. T-X and P-X sections
	// interpolate between the first two.
	Bulk   [][]string
	Excess phase.Set
}

// ParseScript validates scriptfile content. axExists reports whether the
// named a-x file (tc-<name>.txt) is present.
func ParseScript(content string, axExists func(name string) bool) (*Script, error) {
	sc := &Script{
		TRange: DefaultTRange,
		PRange: DefaultPRange,
	}
	check := map[string]bool{
		"axfile": false, "setbulk": false, "printbulkinfo": false,
		"setexcess": false, "printxyz": false,
	}
	var gsb, gse bool

	for _, line := range strings.Split(content, "\n") {
		kw := strings.Fields(strings.SplitN(line, "%", 2)[0])
		if strings.Contains(line, GuessBegin) {
			gsb = true
		}
		if strings.Contains(line, GuessEnd) {
			gse = true
		}
		if len(kw) == 1 && kw[0] == "*" {
			break
		}
		if len(kw) == 0 {
			continue
		}
		if err := sc.apply(kw, check, axExists); err != nil {
			return nil, err
		}
	}

	switch {
	case !check["axfile"]:
		return nil, &ScriptfileError{"Axfile name must be provided in scriptfile."}
	case !check["setbulk"]:
		return nil, &ScriptfileError{"Setbulk must be provided in scriptfile."}
	case !check["setexcess"]:
		return nil, &ScriptfileError{"Setexcess must not be set to ask. To suppress this error put empty setexcess keyword to your scriptfile."}
	case !check["printbulkinfo"]:
		return nil, &ScriptfileError{"Printbulkinfo must be set to yes. To suppress this error put printbulkinfo yes keyword to your scriptfile."}
	case !check["printxyz"]:
		return nil, &ScriptfileError{"Printxyz must be set to yes. To suppress this error put printxyz yes keyword to your scriptfile."}
	case !(gsb && gse):
		return nil, &ScriptfileError{"There are not {PSBGUESS-BEGIN} and {PSBGUESS-END} tags in your scriptfile."}
	}
	return sc, nil
}

func (sc *Script) apply(kw []string, check map[string]bool, axExists func(string) bool) error {
	wrong := func() error {
		return &ScriptfileError{fmt.Sprintf("Wrong argument for %s keyword in scriptfile.", kw[0])}
	}
	// arg returns the first argument or "" when missing.
	arg := ""
	if len(kw) > 1 {
		arg = kw[1]
	}
	mustBe := func(want, msg string) error {
		if arg == "" {
			return wrong()
		}
		if arg != want {
			return &ScriptfileError{msg}
		}
		return nil
	}
	mustNotBe := func(bad, msg string) error {
		if arg == "" {
			return wrong()
		}
		if arg == bad {
			return &ScriptfileError{msg}
		}
		return nil
	}

	switch kw[0] {
	case "axfile":
		if arg == "" {
			return wrong()
		}
		sc.AxName = arg
		if axExists != nil && !axExists(arg) {
			return &ScriptfileError{fmt.Sprintf("Axfile tc-%s.txt does not exists in working directory", arg)}
		}
		check["axfile"] = true
	case "setdefTwindow", "setdefPwindow":
		if len(kw) < 3 {
			return &ScriptfileError{fmt.Sprintf("Wrong arguments for %s keyword in scriptfile.", kw[0])}
		}
		lo, err1 := strconv.ParseFloat(kw[len(kw)-2], 64)
		hi, err2 := strconv.ParseFloat(kw[len(kw)-1], 64)
		if err1 != nil || err2 != nil {
			return &ScriptfileError{fmt.Sprintf("Wrong arguments for %s keyword in scriptfile.", kw[0])}
		}
		if kw[0] == "setdefTwindow" {
			sc.TRange = [2]float64{lo, hi}
		} else {
			sc.PRange = [2]float64{lo, hi}
		}
	case "setbulk":
		var bulk []string
		for _, v := range kw[1:] {
			if v != "yes" {
				bulk = append(bulk, v)
			}
		}
		sc.Bulk = append(sc.Bulk, bulk)
		check["setbulk"] = true
	case "setexcess":
		ex := phase.NewSet(kw[1:]...)
		if ex.Contains("ask") {
			return &ScriptfileError{"Setexcess must not be set to ask."}
		}
		if ex.Contains("no") {
			ex = phase.Set{}
		}
		sc.Excess = ex.Minus(phase.NewSet("yes"))
		check["setexcess"] = true
	case "calctatp":
		return mustBe("ask", "Calctatp must be set to ask.")
	case "printbulkinfo":
		if err := mustNotBe("no", "Printbulkinfo must be set to yes."); err != nil {
			return err
		}
		check["printbulkinfo"] = true
	case "printxyz":
		if err := mustNotBe("no", "Printxyz must be set to yes."); err != nil {
			return err
		}
		check["printxyz"] = true
	case "dogmin":
		return mustBe("no", "Dogmin must be set to no.")
	case "fluidpresent":
		return &ScriptfileError{"Fluidpresent must be deleted from scriptfile."}
	case "seta":
		return mustBe("no", "Seta must be set to no.")
	case "setmu":
		return mustBe("no", "Setmu must be set to no.")
	case "usecalcq":
		return mustNotBe("ask", "Usecalcq must be yes or no.")
	case "pseudosection":
		return mustNotBe("ask", "Pseudosection must be yes or no.")
	case "zeromodeiso":
		return mustBe("yes", "Zeromodeiso must be set to yes.")
	case "setmodeiso":
		return mustBe("yes", "Setmodeiso must be set to yes.")
	case "convliq":
		return &ScriptfileError{"Convliq not yet supported."}
	case "setiso":
		return mustBe("no", "Setiso must be set to no.")
	}
	return nil
}

// ReplaceGuesses returns content with the lines between the guess markers
// replaced by guesses. Content without both markers is returned unchanged.
func ReplaceGuesses(content string, guesses []string) string {
	lines := strings.SplitAfter(content, "\n")
	gsb, gse := -1, -1
	for i, ln := range lines {
		if gsb < 0 && strings.Contains(ln, GuessBegin) {
			gsb = i
		}
		if gse < 0 && strings.Contains(ln, GuessEnd) {
			gse = i
		}
	}
	if gsb < 0 || gse < 0 || gse < gsb {
		return content
	}

	var b strings.Builder
	for _, ln := range lines[:gsb+1] {
		b.WriteString(ln)
	}
	for _, g := range guesses {
		b.WriteString(g)
		b.WriteString("\n")
	}
	for _, ln := range lines[gse:] {
		b.WriteString(ln)
	}
	return b.String()
}

// ReplaceBulk returns content with the first setbulk line set to values.
// Additional setbulk lines are commented out so THERMOCALC sees a single
// composition.
func ReplaceBulk(content string, values []string) string {
	lines := strings.SplitAfter(content, "\n")
	seen := false
	for i, ln := range lines {
		kw := strings.Fields(strings.SplitN(ln, "%", 2)[0])
		if len(kw) == 1 && kw[0] == "*" {
			break
		}
		if len(kw) == 0 || kw[0] != "setbulk" {
			continue
		}
		nl := ""
		if strings.HasSuffix(ln, "\n") {
			nl = "\n"
		}
		if !seen {
			lines[i] = "setbulk yes " + strings.Join(values, " ") + nl
			seen = true
		} else {
			lines[i] = "% " + strings.TrimRight(ln, "\r\n") + nl
		}
	}
	return strings.Join(lines, "")
}

// InterpolateBulk returns the composition at fraction x between the first
// two bulk rows. Values are formatted with 6 decimals. A single bulk is
// returned unchanged.
func InterpolateBulk(bulk [][]string, x float64) ([]string, error) {
	if len(bulk) == 0 {
		return nil, fmt.Errorf("no bulk composition")
	}
	if len(bulk) == 1 {
		return bulk[0], nil
	}
	a, b := bulk[0], bulk[1]
	if len(a) != len(b) {
		return nil, fmt.Errorf("bulk rows differ in length: %d vs %d", len(a), len(b))
	}
	out := make([]string, len(a))
	for i := range a {
		va, err := strconv.ParseFloat(a[i], 64)
		if err != nil {
			// non-numeric trailing entries (e.g. "%") are kept as-is
			out[i] = a[i]
			continue
		}
		vb, err := strconv.ParseFloat(b[i], 64)
		if err != nil {
			return nil, fmt.Errorf("bulk value %q: %w", b[i], err)
		}
		out[i] = strconv.FormatFloat(va+x*(vb-va), 'f', 6, 64)
	}
	return out, nil
}

// UpdateGuesses rewrites the scriptfile guess block.
func (s *Settings) UpdateGuesses(guesses []string) error {
	return s.editScript(func(content string) string {
		return ReplaceGuesses(content, guesses)
	})
}

// UpdateBulk rewrites the scriptfile bulk composition.
func (s *Settings) UpdateBulk(values []string) error {
	return s.editScript(func(content string) string {
		return ReplaceBulk(content, values)
	})
}

func (s *Settings) editScript(edit func(string) string) error {
	raw, err := os.ReadFile(s.Scriptfile())
	if err != nil {
		return fmt.Errorf("reading scriptfile: %w", err)
	}
	content, err := s.decode(raw)
	if err != nil {
		return fmt.Errorf("decoding scriptfile: %w", err)
	}
	out, err := s.encode(edit(content))
	if err != nil {
		return fmt.Errorf("encoding scriptfile: %w", err)
	}
	if err := os.WriteFile(s.Scriptfile(), out, 0644); err != nil {
		return fmt.Errorf("writing scriptfile: %w", err)
	}
	return nil
}
