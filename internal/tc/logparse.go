package tc

import (
	"fmt"
	"strconv"
	"strings"
)

// CalcStatus classifies a THERMOCALC calculation.
type CalcStatus string

const (
	StatusOK     CalcStatus = "ok"
	StatusNIR    CalcStatus = "nir" // ran, but no result block
	StatusBombed CalcStatus = "bombed"
)

// Point is a calculated p-T coordinate.
type Point struct {
	P float64 `json:"p"`
	T float64 `json:"T"`
}

// Result holds the calculated variables of every phase at one point and
// the starting guesses that reproduce it.
type Result struct {
	// Data maps phase (or end-member) to variable name to value.
	// Modes are stored under "mode".
	Data    map[string]map[string]float64 `json:"data"`
	PtGuess []string                      `json:"ptguess"`
}

// LogResult is a parsed tc-log.txt.
type LogResult struct {
	Status   CalcStatus
	Variance int
	Points   []Point
	Results  []Result
	// Output is the raw log, Stdout the THERMOCALC console output.
	Output string
	Stdout string
}

const varianceMarker = "variance of required equilibrium"

// ParseLog parses THERMOCALC log output.
func ParseLog(output string) (*LogResult, error) {
	var lines []string
	for _, ln := range strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n") {
		if ln == "" {
			continue
		}
		lines = append(lines, asciiOnly(ln))
	}

	res := &LogResult{Variance: -1, Output: output}
	for _, ln := range lines {
		if strings.Contains(ln, "BOMBED") {
			res.Status = StatusBombed
			return res, nil
		}
	}
	if v, ok := parseVariance(lines); ok {
		res.Variance = v
	}

	var starts []int
	for i, ln := range lines {
		if strings.HasPrefix(ln, " P(kbar)") {
			starts = append(starts, i)
		}
	}
	starts = append(starts, len(lines))
	for i := 0; i+1 < len(starts); i++ {
		pt, r, err := parseBlock(lines[starts[i]:starts[i+1]])
		if err != nil {
			return nil, err
		}
		res.Points = append(res.Points, pt)
		res.Results = append(res.Results, r)
	}

	if len(res.Results) > 0 {
		res.Status = StatusOK
	} else {
		res.Status = StatusNIR
	}
	return res, nil
}

func parseVariance(lines []string) (int, bool) {
	for _, ln := range lines {
		if !strings.Contains(ln, varianceMarker) {
			continue
		}
		open := strings.Index(ln, "(")
		q := strings.Index(ln, "?")
		if open < 0 || q <= open {
			return 0, false
		}
		v, err := strconv.Atoi(strings.TrimSpace(ln[open+1 : q]))
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

func parseBlock(block []string) (Point, Result, error) {
	var pt Point
	r := Result{Data: make(map[string]map[string]float64)}
	bad := func(what string) error {
		return fmt.Errorf("malformed THERMOCALC log block: %s", what)
	}

	if len(block) < 2 {
		return pt, r, bad("missing p-T line")
	}
	nums, err := floats(strings.Fields(block[1]), 2)
	if err != nil {
		return pt, r, bad("p-T line: " + err.Error())
	}
	pt = Point{P: nums[0], T: nums[1]}

	var xyz []int
	ptg, rbix := -1, -1
	for i, ln := range block {
		switch {
		case strings.HasPrefix(ln, "xyzguess"):
			xyz = append(xyz, i)
		case strings.HasPrefix(ln, "ptguess") && ptg < 0:
			ptg = i
		case strings.HasPrefix(ln, "rbi yes") && rbix < 0:
			rbix = i
		}
	}
	if ptg < 0 || len(xyz) == 0 || rbix < 1 {
		return pt, r, bad("missing ptguess, xyzguess or rbi section")
	}
	gs, ge := max(ptg-3, 0), min(xyz[len(xyz)-1]+2, len(block))
	r.PtGuess = append([]string(nil), block[gs:ge]...)

	header := strings.Fields(block[rbix-1])
	if len(header) < 1 {
		return pt, r, bad("rbi header")
	}
	phases := header[1:]
	modes := strings.Fields(block[rbix])
	for i, ph := range phases {
		if 2+i >= len(modes) {
			break
		}
		v, err := strconv.ParseFloat(modes[2+i], 64)
		if err != nil {
			return pt, r, bad("mode of " + ph)
		}
		r.Data[ph] = map[string]float64{"mode": v}
	}

	for _, ix := range xyz {
		f := strings.Fields(block[ix])
		if len(f) < 3 {
			return pt, r, bad("xyzguess line")
		}
		lbl := f[1]
		open, closing := strings.Index(lbl, "("), strings.Index(lbl, ")")
		if open < 0 || closing <= open {
			return pt, r, bad("xyzguess label " + lbl)
		}
		ph, comp := lbl[open+1:closing], lbl[:open]
		d, ok := r.Data[ph]
		if !ok {
			return pt, r, fmt.Errorf("Check model %s in your ax file. Commonly liq coded as L for starting guesses.", ph) //nolint:staticcheck // user facing message
		}
		v, err := strconv.ParseFloat(f[2], 64)
		if err != nil {
			return pt, r, bad("xyzguess value " + f[2])
		}
		d[comp] = v
	}

	if rbix+1 >= len(block) {
		return pt, r, bad("missing oxide header")
	}
	oxides := strings.Fields(block[rbix+1])
	if len(oxides) >= 2 {
		oxides = oxides[2:]
	}
	for delta, ph := range phases {
		if rbix+2+delta >= len(block) {
			return pt, r, bad("missing oxide row for " + ph)
		}
		row := strings.Fields(block[rbix+2+delta])
		if len(row) < 2 {
			return pt, r, bad("oxide row for " + ph)
		}
		d := r.Data[ph]
		if d == nil {
			d = make(map[string]float64)
			r.Data[ph] = d
		}
		vals := row[2:max(len(row)-2, 2)]
		for i, ox := range oxides {
			if i >= len(vals) {
				break
			}
			v, err := strconv.ParseFloat(vals[i], 64)
			if err != nil {
				return pt, r, bad("oxide value " + vals[i])
			}
			d[ox] = v
		}
		h2o, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return pt, r, bad("H2O value " + row[1])
		}
		d["H2O"] = h2o
	}
	return pt, r, nil
}

func floats(fields []string, n int) ([]float64, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("want %d numbers, got %d", n, len(fields))
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func asciiOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 128 {
			b.WriteRune(r)
		}
	}
	return b.String()
}
