package interp

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrolab/psb/internal/explorer"
	"github.com/petrolab/psb/internal/expr"
	"github.com/petrolab/psb/internal/phase"
	"github.com/petrolab/psb/internal/project"
	"github.com/petrolab/psb/internal/section"
	"github.com/petrolab/psb/internal/tc"
	"github.com/petrolab/psb/internal/tc/tctest"
)

func TestThinPlate(t *testing.T) {
	assert.Zero(t, ThinPlate(0))
	assert.Zero(t, ThinPlate(1))
	assert.InDelta(t, 4*math.Log(2), ThinPlate(2), 1e-12)
}

func TestRBFInterpolatesData(t *testing.T) {
	xs := []float64{0, 1, 0, 1, 0.5}
	ys := []float64{0, 0, 1, 1, 0.5}
	vs := []float64{1, 2, 3, 4, 2.5}
	rbf, err := NewRBF(xs, ys, vs, 0)
	require.NoError(t, err)
	for i := range xs {
		assert.InDelta(t, vs[i], rbf.At(xs[i], ys[i]), 1e-9)
	}
}

func TestRBFDuplicatesAndSingle(t *testing.T) {
	rbf, err := NewRBF([]float64{1, 1}, []float64{2, 2}, []float64{3, 5}, 0)
	require.NoError(t, err)
	assert.Equal(t, 4.0, rbf.At(10, 10))

	_, err = NewRBF(nil, nil, nil, 0)
	assert.Error(t, err)
	_, err = NewRBF([]float64{1}, nil, []float64{1}, 0)
	assert.Error(t, err)
}

func triangle() *section.Section {
	s := section.New(section.PT, [2]float64{400, 800}, [2]float64{2, 12}, phase.NewSet("q"))
	res := func(v float64) []tc.Result {
		return []tc.Result{{Data: map[string]map[string]float64{"bi": {"mode": v}}}}
	}
	s.AddInv(&section.InvPoint{Phases: phase.Parse("g bi st q"), Out: phase.Parse("g st"), X: 500, Y: 5, Results: res(0.1)})
	s.AddInv(&section.InvPoint{Phases: phase.Parse("g bi mu q"), Out: phase.Parse("g mu"), X: 700, Y: 5, Results: res(0.2)})
	s.AddInv(&section.InvPoint{Phases: phase.Parse("bi mu st q"), Out: phase.Parse("mu st"), X: 600, Y: 9, Results: res(0.3)})
	for _, u := range []struct {
		phases, out string
		b, e        int
		xs, ys      []float64
	}{
		{"g bi q", "g", 1, 2, []float64{500, 700}, []float64{5, 5}},
		{"bi mu q", "mu", 2, 3, []float64{700, 600}, []float64{5, 9}},
		{"bi st q", "st", 3, 1, []float64{600, 500}, []float64{9, 5}},
	} {
		s.AddUni(&section.UniLine{Phases: phase.Parse(u.phases), Out: phase.Parse(u.out),
			Begin: u.b, End: u.e, X: u.xs, Y: u.ys, Manual: true, EndIx: len(u.xs) - 1})
	}
	return s
}

func TestGridded(t *testing.T) {
	dir := tctest.Workdir(t, tctest.Options{})
	st, err := tc.Init(context.Background(), dir, tc.Options{Encoding: "utf-8"})
	require.NoError(t, err)
	p := &project.Project{Path: filepath.Join(dir, "t.psb"), Workdir: dir, Section: triangle()}
	e := explorer.New(st, []*project.Project{p}, explorer.Options{})

	ex, err := expr.Parse("mode")
	require.NoError(t, err)
	f, err := Gridded(e, "bi", ex, Options{Which: explorer.FromInv, NX: 8, NY: 10})
	require.NoError(t, err)
	assert.Equal(t, "bi(mode)", f.Label())
	assert.InDelta(t, 0.1, f.Min, 1e-12)
	assert.InDelta(t, 0.3, f.Max, 1e-12)

	rows, cols := f.Grid.Shape()
	require.Equal(t, 10, rows)
	require.Equal(t, 8, cols)
	var inside int
	for r := range rows {
		for c := range cols {
			if f.Grid.Masks["bi q"][r][c] {
				inside++
				assert.False(t, math.IsNaN(f.Values[r][c]))
			} else {
				assert.True(t, math.IsNaN(f.Values[r][c]))
			}
		}
	}
	assert.Positive(t, inside)

	_, err = Gridded(e, "mu", ex, Options{})
	assert.Error(t, err)
}
