// Package interp interpolates scattered calculated values onto grids.
package interp

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// RBF is a thin-plate radial basis function interpolant,
// phi(r) = r² ln r.
type RBF struct {
	xs, ys []float64
	w      []float64
}

// ThinPlate is the thin-plate kernel.
func ThinPlate(r float64) float64 {
	if r == 0 {
		return 0
	}
	return r * r * math.Log(r)
}

// NewRBF fits an interpolant through values at (xs, ys). A positive smooth
// relaxes the fit. Values at repeated coordinates are averaged.
func NewRBF(xs, ys, values []float64, smooth float64) (*RBF, error) {
	if len(xs) != len(ys) || len(xs) != len(values) {
		return nil, fmt.Errorf("rbf: %d x, %d y and %d values", len(xs), len(ys), len(values))
	}
	xs, ys, values = dedupe(xs, ys, values)
	n := len(xs)
	if n == 0 {
		return nil, errors.New("rbf: no data points")
	}
	if n == 1 {
		return &RBF{xs: xs, ys: ys, w: values}, nil
	}

	a := mat.NewDense(n, n, nil)
	for i := range n {
		for j := range n {
			v := ThinPlate(math.Hypot(xs[i]-xs[j], ys[i]-ys[j]))
			if i == j {
				v -= smooth
			}
			a.Set(i, j, v)
		}
	}
	b := mat.NewVecDense(n, values)
	var w mat.VecDense
	if err := w.SolveVec(a, b); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("rbf: %w", err)
		}
	}
	return &RBF{xs: xs, ys: ys, w: w.RawVector().Data}, nil
}

// At evaluates the interpolant.
func (r *RBF) At(x, y float64) float64 {
	if len(r.xs) == 1 {
		return r.w[0]
	}
	var s float64
	for i := range r.xs {
		s += r.w[i] * ThinPlate(math.Hypot(x-r.xs[i], y-r.ys[i]))
	}
	return s
}

func dedupe(xs, ys, values []float64) ([]float64, []float64, []float64) {
	type pt struct{ x, y float64 }
	index := make(map[pt]int, len(xs))
	var ox, oy, sum []float64
	var count []int
	for i := range xs {
		k := pt{xs[i], ys[i]}
		if j, ok := index[k]; ok {
			sum[j] += values[i]
			count[j]++
			continue
		}
		index[k] = len(ox)
		ox, oy = append(ox, xs[i]), append(oy, ys[i])
		sum, count = append(sum, values[i]), append(count, 1)
	}
	for j := range sum {
		sum[j] /= float64(count[j])
	}
	return ox, oy, sum
}
