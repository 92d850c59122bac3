package export

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/petrolab/psb/internal/explorer"
	"github.com/petrolab/psb/internal/expr"
	"github.com/petrolab/psb/internal/lock"
	"github.com/petrolab/psb/internal/tc"
)

// Path holds calculations along a path through the diagram.
type Path struct {
	Xs      []float64   `json:"x"`
	Ys      []float64   `json:"y"`
	Keys    []string    `json:"keys"`
	Results []tc.Result `json:"results"`
	// Failed counts resampled points without solution.
	Failed int `json:"failed"`
}

// Resample returns n points linearly interpolated along the polyline
// (xs, ys), equally spaced in vertex parameter.
func Resample(xs, ys []float64, n int) ([]float64, []float64, error) {
	if len(xs) != len(ys) {
		return nil, nil, fmt.Errorf("path: %d x and %d y values", len(xs), len(ys))
	}
	if len(xs) < 2 {
		return nil, nil, fmt.Errorf("path: need at least two points")
	}
	n = max(n, 2)
	m := len(xs) - 1
	ox, oy := make([]float64, n), make([]float64, n)
	for k := range n {
		pos := float64(k) / float64(n-1) * float64(m)
		i := min(int(math.Floor(pos)), m-1)
		f := pos - float64(i)
		ox[k] = xs[i] + f*(xs[i+1]-xs[i])
		oy[k] = ys[i] + f*(ys[i+1]-ys[i])
	}
	return ox, oy, nil
}

// CollectPath calculates the assemblage at n points along the path using
// starting guesses from the nearest grid calculation. THERMOCALC runs in a
// scratch copy of the working directory.
func CollectPath(ctx context.Context, e *explorer.Explorer, xs, ys []float64, n int) (*Path, error) {
	if !e.Gridded() {
		return nil, fmt.Errorf("path: not yet gridded")
	}
	px, py, err := Resample(xs, ys, n)
	if err != nil {
		return nil, err
	}

	root := filepath.Join(e.Settings.Workdir, lock.Dir, "scratch")
	dir := filepath.Join(root, uuid.NewString())
	st, err := e.Settings.CloneTo(dir)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = os.RemoveAll(dir)
		_ = os.Remove(root)
	}()

	sec := e.Sections[0].Project.Section
	path := &Path{}
	for i := range px {
		x, y := px[i], py[i]
		key, ok := e.Identify(x, y)
		if !ok {
			continue
		}
		calc, ok := e.NearestCalc(x, y)
		if !ok {
			path.Failed++
			continue
		}
		if err := st.UpdateGuesses(calc.PtGuess); err != nil {
			return nil, err
		}
		if comp, ok := sec.Kind.Composition(x, y); ok {
			bulk, err := tc.InterpolateBulk(e.Settings.Bulk, comp)
			if err != nil {
				return nil, err
			}
			if err := st.UpdateBulk(bulk); err != nil {
				return nil, err
			}
		}
		p, t := sec.Kind.PT(x, y, sec.Fixed)
		res, err := st.CalcAssemblage(ctx, key.Minus(e.Excess()), p, t)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			path.Failed++
			continue
		}
		if len(res.Results) != 1 {
			path.Failed++
			continue
		}
		path.Xs = append(path.Xs, x)
		path.Ys = append(path.Ys, y)
		path.Keys = append(path.Keys, key.Key())
		path.Results = append(path.Results, res.Results[0])
	}
	return path, nil
}

// Values evaluates ex for phase at every path point, NaN where the phase
// is absent.
func (p *Path) Values(phase string, ex *expr.Expr) ([]float64, error) {
	out := make([]float64, len(p.Results))
	for i, r := range p.Results {
		vars, ok := r.Data[phase]
		if !ok {
			out[i] = math.NaN()
			continue
		}
		v, err := ex.Eval(vars)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// WritePath writes x, y, field and value columns for phase and ex.
func WritePath(w io.Writer, xvar, yvar string, p *Path, phase string, ex *expr.Expr) error {
	values, err := p.Values(phase, ex)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s\t%s\tfield\t%s(%s)\n", xvar, yvar, phase, ex)
	for i := range values {
		fmt.Fprintf(bw, "%g\t%g\t%s\t%g\n", p.Xs[i], p.Ys[i], p.Keys[i], values[i])
	}
	return bw.Flush()
}
