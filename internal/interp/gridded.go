package interp

import (
	"fmt"
	"math"

	"github.com/petrolab/psb/internal/explorer"
	"github.com/petrolab/psb/internal/expr"
	"github.com/petrolab/psb/internal/grid"
)

// Options configures Gridded.
type Options struct {
	// Which selects the data sources, explorer.FromAll when zero.
	Which explorer.Which
	// Smooth relaxes the interpolation.
	Smooth float64
	// NX and NY size the common grid; zero follows the section grids.
	NX, NY int
}

// Field is an expression interpolated over the common grid of an
// explorer. Cells outside every field with data hold NaN.
type Field struct {
	Phase  string
	Expr   string
	Grid   *grid.Data
	Values [][]float64
	Min    float64
	Max    float64
}

// Gridded evaluates ex for phase in every field and interpolates the
// values on the masked cells of the common grid. y is scaled by the
// diagram aspect ratio before interpolation.
func Gridded(e *explorer.Explorer, phase string, ex *expr.Expr, opts Options) (*Field, error) {
	which := opts.Which
	if which == 0 {
		which = explorer.FromAll
	}
	recs, lo, hi, err := e.Records(phase, ex, which)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("no data for %s(%s)", phase, ex)
	}

	g := e.CommonGrid(opts.NX, opts.NY)
	rows, cols := g.Shape()
	values := make([][]float64, rows)
	for r := range values {
		values[r] = make([]float64, cols)
		for c := range values[r] {
			values[r][c] = math.NaN()
		}
	}

	ratio := e.Ratio()
	for _, key := range e.Keys() {
		rec, ok := recs[key]
		if !ok {
			continue
		}
		ys := make([]float64, len(rec.Ys))
		for i, y := range rec.Ys {
			ys[i] = ratio * y
		}
		rbf, err := NewRBF(rec.Xs, ys, rec.Values, opts.Smooth)
		if err != nil {
			return nil, fmt.Errorf("interpolating %s: %w", key, err)
		}
		for r, row := range g.Masks[key] {
			for c, in := range row {
				if in {
					x, y := g.Point(r, c)
					values[r][c] = rbf.At(x, ratio*y)
				}
			}
		}
	}
	return &Field{Phase: phase, Expr: ex.String(), Grid: g, Values: values, Min: lo, Max: hi}, nil
}

// Label renders "phase(expr)".
func (f *Field) Label() string { return fmt.Sprintf("%s(%s)", f.Phase, f.Expr) }
