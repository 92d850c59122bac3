package explorer

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/petrolab/psb/internal/expr"
	"github.com/petrolab/psb/internal/geometry"
	"github.com/petrolab/psb/internal/grid"
)

// Which selects data sources for Collect.
type Which uint8

const (
	FromInv Which = 1 << iota
	FromUni
	FromGrid

	FromAll = FromInv | FromUni | FromGrid
)

// Record holds evaluated values at diagram points.
type Record struct {
	Xs     []float64 `json:"x"`
	Ys     []float64 `json:"y"`
	Values []float64 `json:"values"`
}

// Len returns the number of values.
func (r *Record) Len() int { return len(r.Values) }

func (r *Record) add(x, y, v float64) {
	r.Xs = append(r.Xs, x)
	r.Ys = append(r.Ys, y)
	r.Values = append(r.Values, v)
}

// Collect evaluates ex for phase at the invariant points and univariant
// line vertices bounding field key and at the calculated grid points
// inside it.
func (e *Explorer) Collect(key, phase string, ex *expr.Expr, which Which) (*Record, error) {
	rec := &Record{}
	if _, ok := e.DataKeys()[phase]; !ok {
		return rec, nil
	}
	shape, ok := e.shapes.Shapes[key]
	if !ok {
		return rec, nil
	}
	for _, s := range e.Sections {
		own, ok := s.Shapes.Shapes[key]
		if !ok {
			continue
		}
		if which&FromInv != 0 {
			if err := e.collectInv(rec, s, own, shape, phase, ex); err != nil {
				return nil, err
			}
		}
		if which&FromUni != 0 {
			if err := e.collectUni(rec, s, own, shape, phase, ex); err != nil {
				return nil, err
			}
		}
		if which&FromGrid != 0 {
			if err := collectGrid(rec, s.Grid(), key, phase, ex); err != nil {
				return nil, err
			}
		}
	}
	return rec, nil
}

func (e *Explorer) collectInv(rec *Record, s *Section, own, shape *geometry.Shape, phase string, ex *expr.Expr) error {
	sec := s.Project.Section
	seen := make(map[int]bool)
	for _, id := range own.Edges {
		u, ok := sec.Unis[id]
		if !ok {
			continue
		}
		for _, pid := range []int{u.Begin, u.End} {
			if pid == 0 || seen[pid] {
				continue
			}
			seen[pid] = true
			p, ok := sec.Invs[pid]
			if !ok || p.Manual {
				continue
			}
			vars, ok := p.Data()[phase]
			if !ok || !e.intersects(shape, p.X, p.Y) {
				continue
			}
			v, err := ex.Eval(vars)
			if err != nil {
				return err
			}
			rec.add(p.X, p.Y, v)
		}
	}
	return nil
}

func (e *Explorer) collectUni(rec *Record, s *Section, own, shape *geometry.Shape, phase string, ex *expr.Expr) error {
	sec := s.Project.Section
	for _, id := range own.Edges {
		u, ok := sec.Unis[id]
		if !ok || u.Manual || len(u.Results) == 0 {
			continue
		}
		if _, ok := u.Data()[phase]; !ok {
			continue
		}
		for _, i := range u.Used() {
			if i >= len(u.Results) {
				continue
			}
			vars, ok := u.Results[i].Data[phase]
			if !ok || !e.intersects(shape, u.X[i], u.Y[i]) {
				continue
			}
			v, err := ex.Eval(vars)
			if err != nil {
				return err
			}
			rec.add(u.X[i], u.Y[i], v)
		}
	}
	return nil
}

func collectGrid(rec *Record, g *grid.Data, key, phase string, ex *expr.Expr) error {
	if g == nil {
		return nil
	}
	xs, ys, res := g.Results(key)
	for i, r := range res {
		vars, ok := r.Data[phase]
		if !ok {
			continue
		}
		v, err := ex.Eval(vars)
		if err != nil {
			return err
		}
		rec.add(xs[i], ys[i], v)
	}
	return nil
}

// intersects reports whether (x, y) lies in the shape or on its outline.
func (e *Explorer) intersects(s *geometry.Shape, x, y float64) bool {
	if s.Contains(x, y) {
		return true
	}
	b := e.shapes.Bound
	eps := 1e-9 * math.Max(b.Max[0]-b.Min[0], b.Max[1]-b.Min[1])
	return planar.DistanceFrom(s.Geom, orb.Point{x, y}) <= eps
}

// Records collects data for every field holding values and returns them
// with the overall value range.
func (e *Explorer) Records(phase string, ex *expr.Expr, which Which) (map[string]*Record, float64, float64, error) {
	recs := make(map[string]*Record)
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, k := range e.Keys() {
		r, err := e.Collect(k, phase, ex, which)
		if err != nil {
			return nil, 0, 0, err
		}
		if r.Len() == 0 {
			continue
		}
		recs[k] = r
		for _, v := range r.Values {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	return recs, lo, hi, nil
}
