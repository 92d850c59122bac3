// Package export writes sections and calculated data in formats read by
// other programs: drawpd, Perple_X tab files, SQLite and plain tables.
package export

import (
	"context"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/petrolab/psb/internal/phase"
	"github.com/petrolab/psb/internal/section"
	"github.com/petrolab/psb/internal/tc"
	"github.com/petrolab/psb/internal/topology"
)

// AssemblagesFile lists the field assemblages next to the drawpd file.
const AssemblagesFile = "assemblages.txt"

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// Drawpd writes a drawpd input file for s. With areas, the constructed
// fields are included and their assemblages returned, one per line with
// the excess phases.
func Drawpd(w io.Writer, s *section.Section, areas *topology.Areas, withAreas bool) ([]string, error) {
	keys := make([]phase.Set, 0, len(areas.Full)+len(areas.Partial))
	for _, a := range areas.Full {
		keys = append(keys, a.Key)
	}
	for _, a := range areas.Partial {
		keys = append(keys, a.Key)
	}
	var common, all phase.Set
	for i, k := range keys {
		if i == 0 {
			common = k
		} else {
			common = common.Intersect(k)
		}
		all = all.Union(k)
	}
	if len(keys) == 0 {
		all = s.AllPhases()
		common = s.Excess
	}

	var b strings.Builder
	b.WriteString("% Generated by psb\n")
	b.WriteString("2    % no. of variables in each line of data, in this case P, T\n")
	fmt.Fprintf(&b, "%d\n", all.Len()-common.Len())
	b.WriteString("2 1  % which columns to be x,y in phase diagram\n\n")

	b.WriteString("% Points\n")
	for _, id := range s.InvIDs() {
		p := s.Invs[id]
		b.WriteString("% ------------------------------\n")
		fmt.Fprintf(&b, "i%d   %s\n\n", p.ID, p.Label(s.Excess))
		fmt.Fprintf(&b, "%s %s\n\n", num(p.Y), num(p.X))
	}

	b.WriteString("% Lines\n")
	for _, id := range s.UniIDs() {
		u := s.Unis[id]
		b.WriteString("% ------------------------------\n")
		fmt.Fprintf(&b, "u%d   %s\n\n", u.ID, u.Label(s.Excess))
		begin, end := "begin", "end"
		if u.Begin != 0 {
			begin = "i" + strconv.Itoa(u.Begin)
		}
		if u.End != 0 {
			end = "i" + strconv.Itoa(u.End)
		}
		if u.Manual {
			fmt.Fprintf(&b, "%s %s connect\n\n", begin, end)
			continue
		}
		fmt.Fprintf(&b, "%s %s\n\n", begin, end)
		for i := range u.X {
			fmt.Fprintf(&b, "%s %s\n", num(u.Y[i]), num(u.X[i]))
		}
		b.WriteString("\n")
	}
	b.WriteString("*\n")
	b.WriteString("% ----------------------------------------------\n\n")

	var assemblages []string
	if withAreas {
		// shades scale with the size of the largest full field
		maxpf := 0
		for _, a := range areas.Full {
			maxpf = max(maxpf, a.Key.Len()+1)
		}
		if maxpf == 0 {
			for _, a := range areas.Partial {
				maxpf = max(maxpf, a.Key.Len()+1)
			}
		}
		area := func(a topology.Area, marker string) {
			ids := make([]string, len(a.Edges))
			for i, e := range a.Edges {
				ids[i] = "u" + strconv.Itoa(e)
			}
			fmt.Fprintf(&b, "%.2f %s %s %s\n", float64(a.Key.Len())/float64(maxpf), strings.Join(ids, " "), marker, a.Key.Key())
			assemblages = append(assemblages, a.Key.Union(common).Key())
		}
		b.WriteString("% Areas\n")
		b.WriteString("% ------------------------------\n")
		for _, a := range areas.Full {
			if !outside(s, a.Coords) {
				area(a, "%")
			}
		}
		for _, a := range areas.Partial {
			area(a, "%-")
		}
	}
	b.WriteString("\n*\n\n")

	fmt.Fprintf(&b, "window %s %s %s %s\n\n", num(s.XRange[0]), num(s.XRange[1]), num(s.YRange[0]), num(s.YRange[1]))
	b.WriteString("darkcolour  56 16 101\n\n")
	xstep, xfirst := ticks(s.XRange)
	ystep, yfirst := ticks(s.YRange)
	fmt.Fprintf(&b, "bigticks %s %s %s %s\n\n", num(xstep), num(xfirst), num(ystep), num(yfirst))
	fmt.Fprintf(&b, "smallticks %s %s\n\n", num(xstep/10), num(ystep/10))
	b.WriteString("numbering yes\n\n")
	if withAreas {
		b.WriteString("doareas yes\n\n")
	}
	b.WriteString("*\n")

	_, err := io.WriteString(w, b.String())
	return assemblages, err
}

// outside reports whether all coordinates lie beyond one window side.
func outside(s *section.Section, coords [][2]float64) bool {
	if len(coords) == 0 {
		return false
	}
	left, right, below, above := true, true, true, true
	for _, c := range coords {
		left = left && c[0] < s.XRange[0]
		right = right && c[0] > s.XRange[1]
		below = below && c[1] < s.YRange[0]
		above = above && c[1] > s.YRange[1]
	}
	return left || right || below || above
}

// ticks returns the big tick spacing, a power of ten below the range
// span, and the first tick inside the range.
func ticks(r [2]float64) (step, first float64) {
	span := r[1] - r[0]
	if span <= 0 {
		return 1, r[0]
	}
	step = math.Pow(10, math.Trunc(math.Log10(span)))
	first = math.Max(math.Ceil(r[0]/step)*step, 0)
	if first < r[0] {
		first += step
	}
	return step, first
}

// WriteDrawpd writes the drawpd file and assemblages into the working
// directory and runs drawpd when installed. The drawpd output is returned.
func WriteDrawpd(ctx context.Context, st *tc.Settings, s *section.Section, areas *topology.Areas, withAreas bool) (string, error) {
	var b strings.Builder
	assemblages, err := Drawpd(&b, s, areas, withAreas)
	if err != nil {
		return "", err
	}
	if err := st.WriteText(st.DrawpdFile(), b.String()); err != nil {
		return "", fmt.Errorf("writing drawpd file: %w", err)
	}
	if withAreas {
		text := strings.Join(assemblages, "\n")
		if text != "" {
			text += "\n"
		}
		if err := st.WriteText(filepath.Join(st.Workdir, AssemblagesFile), text); err != nil {
			return "", fmt.Errorf("writing assemblages: %w", err)
		}
	}
	return st.RunDrawpd(ctx)
}
