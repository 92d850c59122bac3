package export

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrolab/psb/internal/explorer"
	"github.com/petrolab/psb/internal/expr"
	"github.com/petrolab/psb/internal/grid"
	"github.com/petrolab/psb/internal/interp"
	"github.com/petrolab/psb/internal/phase"
	"github.com/petrolab/psb/internal/project"
	"github.com/petrolab/psb/internal/section"
	"github.com/petrolab/psb/internal/tc"
	"github.com/petrolab/psb/internal/tc/tctest"
	"github.com/petrolab/psb/internal/topology"
)

func triangle() *section.Section {
	s := section.New(section.PT, [2]float64{400, 800}, [2]float64{2, 12}, phase.NewSet("q"))
	guess := []tc.Result{{PtGuess: []string{"ptguess 5 600"}, Data: map[string]map[string]float64{"bi": {"mode": 0.2}}}}
	s.AddInv(&section.InvPoint{Phases: phase.Parse("g bi st q"), Out: phase.Parse("g st"), X: 500, Y: 5, Results: guess})
	s.AddInv(&section.InvPoint{Phases: phase.Parse("g bi mu q"), Out: phase.Parse("g mu"), X: 700, Y: 5, Results: guess})
	s.AddInv(&section.InvPoint{Phases: phase.Parse("bi mu st q"), Out: phase.Parse("mu st"), X: 600, Y: 9, Results: guess})
	for _, u := range []struct {
		phases, out string
		b, e        int
		xs, ys      []float64
		manual      bool
	}{
		{"g bi q", "g", 1, 2, []float64{500, 700}, []float64{5, 5}, false},
		{"bi mu q", "mu", 2, 3, []float64{700, 600}, []float64{5, 9}, false},
		{"bi st q", "st", 3, 1, []float64{600, 500}, []float64{9, 5}, true},
	} {
		s.AddUni(&section.UniLine{Phases: phase.Parse(u.phases), Out: phase.Parse(u.out),
			Begin: u.b, End: u.e, X: u.xs, Y: u.ys, EndIx: len(u.xs) - 1, Manual: u.manual})
	}
	return s
}

func explorerFor(t *testing.T) *explorer.Explorer {
	t.Helper()
	dir := tctest.Workdir(t, tctest.Options{Drawpd: true})
	st, err := tc.Init(context.Background(), dir, tc.Options{Encoding: "utf-8"})
	require.NoError(t, err)
	p := &project.Project{Path: filepath.Join(dir, "t.psb"), Workdir: dir, Name: tctest.Name, Section: triangle()}
	return explorer.New(st, []*project.Project{p}, explorer.Options{})
}

func TestDrawpd(t *testing.T) {
	s := triangle()
	areas := topology.Construct(s)
	var b bytes.Buffer
	assemblages, err := Drawpd(&b, s, areas, true)
	require.NoError(t, err)
	out := b.String()

	for _, want := range []string{
		"i1   bi g st - g st\n\n5 500\n",
		"u1   bi g - g\n\ni1 i2\n\n5 500\n5 700\n",
		"u3   bi st - st\n\ni3 i1 connect\n",
		"% Areas\n",
		"window 400 800 2 12\n",
		"bigticks 100 400 10 10\n",
		"smallticks 10 1\n",
		"doareas yes\n",
	} {
		assert.Contains(t, out, want)
	}
	assert.Equal(t, []string{"bi q"}, assemblages)
	require.Len(t, areas.Full, 1)
	edges := make([]string, len(areas.Full[0].Edges))
	for i, e := range areas.Full[0].Edges {
		edges[i] = "u" + strconv.Itoa(e)
	}
	assert.Contains(t, out, "% Areas\n% ------------------------------\n0.67 "+strings.Join(edges, " ")+" % bi q\n\n*\n")

	b.Reset()
	assemblages, err = Drawpd(&b, s, areas, false)
	require.NoError(t, err)
	assert.Nil(t, assemblages)
	assert.NotContains(t, b.String(), "doareas")
}

func TestDrawpdAreaShades(t *testing.T) {
	areas := &topology.Areas{
		Full: []topology.Area{
			{Key: phase.Parse("bi g q"), Edges: []int{1, 2}},
			{Key: phase.Parse("bi q"), Edges: []int{2, 3}},
		},
		Partial: []topology.Area{
			{Key: phase.Parse("bi mu q"), Edges: []int{3}},
		},
	}
	var b bytes.Buffer
	assemblages, err := Drawpd(&b, triangle(), areas, true)
	require.NoError(t, err)

	want := "% Areas\n" +
		"% ------------------------------\n" +
		"0.75 u1 u2 % bi g q\n" +
		"0.50 u2 u3 % bi q\n" +
		"0.75 u3 %- bi mu q\n" +
		"\n*\n"
	assert.Contains(t, b.String(), want)
	assert.Equal(t, []string{"bi g q", "bi q", "bi mu q"}, assemblages)
	// two phases beyond the common bi q
	assert.Contains(t, b.String(), "in this case P, T\n2\n2 1")
}

func TestTicks(t *testing.T) {
	step, first := ticks([2]float64{450, 820})
	assert.Equal(t, 100.0, step)
	assert.Equal(t, 500.0, first)
	step, first = ticks([2]float64{-5, 5})
	assert.Equal(t, 10.0, step)
	assert.Equal(t, 0.0, first)
}

func TestWriteDrawpd(t *testing.T) {
	e := explorerFor(t)
	s := e.Sections[0]
	_, err := WriteDrawpd(context.Background(), e.Settings, s.Project.Section, s.Areas, true)
	require.NoError(t, err)

	raw, err := os.ReadFile(e.Settings.DrawpdFile())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "% Generated by psb\n"))
	asm, err := os.ReadFile(filepath.Join(e.Settings.Workdir, AssemblagesFile))
	require.NoError(t, err)
	assert.Equal(t, "bi q\n", string(asm))
}

func field(label string, d *grid.Data, v float64) *interp.Field {
	rows, cols := d.Shape()
	values := make([][]float64, rows)
	for r := range values {
		values[r] = make([]float64, cols)
		for c := range values[r] {
			values[r][c] = v
		}
	}
	values[0][0] = math.NaN()
	ph, ex, _ := strings.Cut(strings.TrimSuffix(label, ")"), "(")
	return &interp.Field{Phase: ph, Expr: ex, Grid: d, Values: values}
}

func TestTab(t *testing.T) {
	d := grid.New([2]float64{400, 800}, [2]float64{2, 12}, 2, 2)
	var b bytes.Buffer
	require.NoError(t, Tab(&b, "test", section.PT, []*interp.Field{field("bi(mode)", d, 0.5), field("g(x)", d, 1)}))

	lines := strings.Split(strings.TrimSuffix(b.String(), "\n"), "\n")
	require.Len(t, lines, 13+4)
	assert.Equal(t, []string{
		"ptbuilder",
		"test.tab",
		"           2",
		"T(°C)",
		"   400.000000000000",
		"   200.000000000000",
		"           2",
		"p(kbar)",
		"   2.000000000000000",
		"   5.000000000000000",
		"           2",
		"           2",
		"bi(mode)       g(x)           ",
	}, lines[:13])
	assert.Equal(t, "            nan            nan", lines[13])
	assert.Equal(t, "       0.500000       1.000000", lines[14])

	other := grid.New([2]float64{400, 800}, [2]float64{2, 12}, 3, 2)
	assert.Error(t, Tab(&b, "test", section.PT, []*interp.Field{field("a(b)", d, 0), field("c(d)", other, 0)}))
	assert.Error(t, Tab(&b, "test", section.PT, nil))
}

func TestTableAndRecords(t *testing.T) {
	d := grid.New([2]float64{0, 4}, [2]float64{0, 2}, 2, 2)
	var b bytes.Buffer
	require.NoError(t, Table(&b, section.PT, field("bi(mode)", d, 0.5)))
	assert.Equal(t, "T(°C) p(kbar) bi(mode)\n3 0.5 0.5\n1 1.5 0.5\n3 1.5 0.5\n", b.String())

	b.Reset()
	recs := map[string]*explorer.Record{
		"g q":  {Xs: []float64{1}, Ys: []float64{2}, Values: []float64{0.1}},
		"bi q": {Xs: []float64{3}, Ys: []float64{4}, Values: []float64{0.2}},
	}
	require.NoError(t, Records(&b, section.PT, "bi(mode)", recs))
	assert.Equal(t, "field\tT(°C)\tp(kbar)\tbi(mode)\nbi q\t3\t4\t0.2\ng q\t1\t2\t0.1\n", b.String())
}

func TestSQLite(t *testing.T) {
	e := explorerFor(t)
	_, err := SQLite(context.Background(), filepath.Join(t.TempDir(), "x.db"), e)
	require.Error(t, err)

	_, err = e.Calculate(context.Background(), 4, 4, 2, nil)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "grid.db")
	n, err := SQLite(context.Background(), path, e)
	require.NoError(t, err)
	assert.Equal(t, 16, n)

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var ok int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM points WHERE status = 'ok' AND key = 'bi q'`).Scan(&ok))
	assert.Equal(t, 2, ok)
	var mode float64
	require.NoError(t, db.QueryRow(`SELECT value FROM "values" WHERE phase = 'bi' AND var = 'mode' LIMIT 1`).Scan(&mode))
	assert.Equal(t, 0.35, mode)
	var kind string
	require.NoError(t, db.QueryRow(`SELECT value FROM meta WHERE key = 'kind'`).Scan(&kind))
	assert.Equal(t, "pt", kind)
}

func TestResample(t *testing.T) {
	xs, ys, err := Resample([]float64{0, 10, 10}, []float64{0, 0, 4}, 5)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 5, 10, 10, 10}, xs)
	assert.Equal(t, []float64{0, 0, 0, 2, 4}, ys)

	_, _, err = Resample([]float64{1}, []float64{1}, 3)
	assert.Error(t, err)
	_, _, err = Resample([]float64{1, 2}, []float64{1}, 3)
	assert.Error(t, err)
}

func TestCollectPath(t *testing.T) {
	e := explorerFor(t)
	_, err := CollectPath(context.Background(), e, []float64{550, 650}, []float64{5.75, 5.75}, 3)
	require.Error(t, err)

	_, err = e.Calculate(context.Background(), 4, 4, 2, nil)
	require.NoError(t, err)
	p, err := CollectPath(context.Background(), e, []float64{550, 650}, []float64{5.75, 5.75}, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{550, 600, 650}, p.Xs)
	assert.Equal(t, []string{"bi q", "bi q", "bi q"}, p.Keys)
	assert.Zero(t, p.Failed)

	mode, err := expr.Parse("mode")
	require.NoError(t, err)
	vals, err := p.Values("bi", mode)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.35, 0.35, 0.35}, vals)
	mu, err := p.Values("mu", mode)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(mu[0]))

	var b bytes.Buffer
	require.NoError(t, WritePath(&b, "T(°C)", "p(kbar)", p, "bi", mode))
	assert.True(t, strings.HasPrefix(b.String(), "T(°C)\tp(kbar)\tfield\tbi(mode)\n550\t5.75\tbi q\t0.35\n"))

	_, err = os.Stat(filepath.Join(e.Settings.Workdir, ".psb", "scratch"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
