package export

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/petrolab/psb/internal/explorer"
	"github.com/petrolab/psb/internal/interp"
	"github.com/petrolab/psb/internal/section"
)

// Tab writes interpolated fields in the Perple_X tab format. All fields
// must share one grid.
func Tab(w io.Writer, name string, kind section.Kind, fields []*interp.Field) error {
	if len(fields) == 0 {
		return fmt.Errorf("tab: no data")
	}
	g := fields[0].Grid
	rows, cols := g.Shape()
	for _, f := range fields[1:] {
		if r, c := f.Grid.Shape(); r != rows || c != cols {
			return fmt.Errorf("tab: %s has a %dx%d grid, want %dx%d", f.Label(), c, r, cols, rows)
		}
	}
	ext := g.Extent()

	bw := bufio.NewWriter(w)
	var labels strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&labels, "%-15s", f.Label())
	}
	head := []string{
		"ptbuilder",
		name + ".tab",
		fmt.Sprintf("%12d", 2),
		kind.XVar(), fixed19(ext[0]), fixed19(g.XStep()), fmt.Sprintf("%12d", cols),
		kind.YVar(), fixed19(ext[2]), fixed19(g.YStep()), fmt.Sprintf("%12d", rows),
		fmt.Sprintf("%12d", len(fields)),
		labels.String(),
	}
	for _, ln := range head {
		bw.WriteString(ln)
		bw.WriteByte('\n')
	}
	for r := range rows {
		for c := range cols {
			for _, f := range fields {
				writeValue(bw, f.Values[r][c])
			}
			bw.WriteByte('\n')
		}
	}
	return bw.Flush()
}

// fixed19 renders v with 16 decimals after three spaces, cut to 19
// characters.
func fixed19(v float64) string {
	s := fmt.Sprintf("   %.16f", v)
	if len(s) > 19 {
		s = s[:19]
	}
	return s
}

func writeValue(w *bufio.Writer, v float64) {
	if math.IsNaN(v) {
		fmt.Fprintf(w, "%15s", "nan")
		return
	}
	fmt.Fprintf(w, "%15.6f", v)
}

// Table writes one interpolated field as whitespace separated x, y, value
// rows. Cells without value are skipped.
func Table(w io.Writer, kind section.Kind, f *interp.Field) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s %s %s\n", kind.XVar(), kind.YVar(), f.Label())
	for r, row := range f.Values {
		for c, v := range row {
			if math.IsNaN(v) {
				continue
			}
			x, y := f.Grid.Point(r, c)
			fmt.Fprintf(bw, "%g %g %g\n", x, y, v)
		}
	}
	return bw.Flush()
}

// Records writes collected data as field, x, y, value rows, fields in
// sorted order.
func Records(w io.Writer, kind section.Kind, label string, recs map[string]*explorer.Record) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "field\t%s\t%s\t%s\n", kind.XVar(), kind.YVar(), label)
	for _, key := range sortedKeys(recs) {
		r := recs[key]
		for i := range r.Values {
			fmt.Fprintf(bw, "%s\t%g\t%g\t%g\n", key, r.Xs[i], r.Ys[i], r.Values[i])
		}
	}
	return bw.Flush()
}
