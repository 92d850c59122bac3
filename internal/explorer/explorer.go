// Package explorer merges built sections that share a THERMOCALC working
// directory and bulk composition, and collects calculated data from them.
package explorer

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/petrolab/psb/internal/geometry"
	"github.com/petrolab/psb/internal/grid"
	"github.com/petrolab/psb/internal/logging"
	"github.com/petrolab/psb/internal/phase"
	"github.com/petrolab/psb/internal/project"
	"github.com/petrolab/psb/internal/section"
	"github.com/petrolab/psb/internal/tc"
	"github.com/petrolab/psb/internal/topology"
)

// DefaultGridSize is the grid size used before any section was gridded.
const DefaultGridSize = 50

// Options configures Open.
type Options struct {
	// Tolerance simplifies area outlines when positive.
	Tolerance float64
	// OrigWD uses the stored working directory instead of the project file
	// location.
	OrigWD bool
	TC     tc.Options
	Logger *zap.Logger
}

// Section is one project with its constructed areas.
type Section struct {
	Project *project.Project
	Areas   *topology.Areas
	Shapes  *geometry.Shapes
}

// Grid returns the calculated grid, or nil.
func (s *Section) Grid() *grid.Data { return s.Project.Grid }

// Explorer is a merged view of sections.
type Explorer struct {
	Settings *tc.Settings
	Sections []*Section
	// Log collects topology problems found while constructing areas.
	Log []string

	shapes *geometry.Shapes
	logger *zap.Logger
}

// Load reads project files and checks they can be explored together.
func Load(paths []string, origwd bool) ([]*project.Project, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no project file given")
	}
	var ps []*project.Project
	for _, path := range paths {
		p, err := project.Load(path)
		if err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}
	if err := project.Merge(ps, origwd); err != nil {
		return nil, err
	}
	return ps, nil
}

// Open loads project files and initializes THERMOCALC in their working
// directory.
func Open(ctx context.Context, paths []string, opts Options) (*Explorer, error) {
	ps, err := Load(paths, opts.OrigWD)
	if err != nil {
		return nil, err
	}
	st, err := ps[0].Settings(ctx, opts.OrigWD, opts.TC)
	if err != nil {
		return nil, fmt.Errorf("initializing THERMOCALC: %w", err)
	}
	return New(st, ps, opts), nil
}

// New builds an explorer over already loaded projects.
func New(st *tc.Settings, ps []*project.Project, opts Options) *Explorer {
	e := &Explorer{
		Settings: st,
		shapes: &geometry.Shapes{
			Shapes:  make(map[string]*geometry.Shape),
			Bad:     make(map[string][]int),
			Tangled: make(map[string][]int),
		},
		logger: logging.OrNop(opts.Logger),
	}
	for i, p := range ps {
		areas := topology.Construct(p.Section)
		shapes := geometry.Create(p.Section, areas, opts.Tolerance)
		e.Log = append(e.Log, areas.Log...)
		e.Sections = append(e.Sections, &Section{Project: p, Areas: areas, Shapes: shapes})

		b := shapes.Bound
		if i == 0 {
			e.shapes.Bound = b
		} else {
			e.shapes.Bound = e.shapes.Bound.Union(b)
		}
		for k, s := range shapes.Shapes {
			m, ok := e.shapes.Shapes[k]
			if !ok {
				m = &geometry.Shape{Key: s.Key}
				e.shapes.Shapes[k] = m
			}
			m.Edges = append(m.Edges, s.Edges...)
			m.Geom = append(m.Geom, s.Geom.Clone()...)
		}
		for k, ids := range shapes.Bad {
			e.shapes.Bad[k] = append(e.shapes.Bad[k], ids...)
		}
		for k, ids := range shapes.Tangled {
			e.shapes.Tangled[k] = append(e.shapes.Tangled[k], ids...)
		}
	}
	return e
}

// Kind returns the section kind shared by all sections.
func (e *Explorer) Kind() section.Kind { return e.Sections[0].Project.Section.Kind }

// Excess returns the excess phases of the first section.
func (e *Explorer) Excess() phase.Set { return e.Sections[0].Project.Section.Excess }

// Name is the scriptfile name.
func (e *Explorer) Name() string { return e.Sections[0].Project.Name }

// XRange spans all section windows.
func (e *Explorer) XRange() [2]float64 {
	b := e.shapes.Bound
	return [2]float64{b.Min[0], b.Max[0]}
}

// YRange spans all section windows.
func (e *Explorer) YRange() [2]float64 {
	b := e.shapes.Bound
	return [2]float64{b.Min[1], b.Max[1]}
}

// Ratio is the diagram aspect ratio (x span over y span).
func (e *Explorer) Ratio() float64 {
	xr, yr := e.XRange(), e.YRange()
	return (xr[1] - xr[0]) / (yr[1] - yr[0])
}

// Shapes returns the merged shapes of all sections.
func (e *Explorer) Shapes() *geometry.Shapes { return e.shapes }

// Keys returns the field keys of all sections in sorted order.
func (e *Explorer) Keys() []string { return e.shapes.Keys() }

// Phases returns all phases present in some field.
func (e *Explorer) Phases() phase.Set {
	var all phase.Set
	for _, s := range e.shapes.Shapes {
		all = all.Union(s.Key)
	}
	return all
}

// Gridded reports whether every section has a grid.
func (e *Explorer) Gridded() bool {
	for _, s := range e.Sections {
		if s.Grid() == nil {
			return false
		}
	}
	return true
}

// SectionAt returns the index of the section whose window holds (x, y), or
// -1.
func (e *Explorer) SectionAt(x, y float64) int {
	for i, s := range e.Sections {
		if s.Project.Section.Contains(x, y) {
			return i
		}
	}
	return -1
}

// Identify returns the field containing (x, y).
func (e *Explorer) Identify(x, y float64) (phase.Set, bool) {
	return e.shapes.Identify(x, y)
}

// Variance returns the variance of every field, calculating the missing
// ones with THERMOCALC.
func (e *Explorer) Variance(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int)
	for _, s := range e.Sections {
		p := s.Project
		if p.Variance == nil {
			p.Variance = make(map[string]int)
		}
		for _, k := range s.Shapes.Keys() {
			if _, ok := p.Variance[k]; !ok {
				v, err := e.Settings.Variance(ctx, s.Shapes.Shapes[k].Key.Minus(e.Excess()))
				if err != nil {
					return out, fmt.Errorf("variance of %s: %w", k, err)
				}
				p.Variance[k] = v
			}
			out[k] = p.Variance[k]
		}
	}
	return out, nil
}

// DataKeys maps every calculated phase or end-member to its variables.
func (e *Explorer) DataKeys() map[string][]string {
	seen := make(map[string]map[string]bool)
	add := func(data map[string]map[string]float64) {
		for ph, vars := range data {
			if seen[ph] == nil {
				seen[ph] = make(map[string]bool)
			}
			for v := range vars {
				seen[ph][v] = true
			}
		}
	}
	for _, s := range e.Sections {
		sec := s.Project.Section
		for _, id := range sec.InvIDs() {
			if p := sec.Invs[id]; !p.Manual {
				add(p.Data())
			}
		}
		for _, id := range sec.UniIDs() {
			if u := sec.Unis[id]; !u.Manual {
				add(u.Data())
			}
		}
		if g := s.Grid(); g != nil {
			for r, row := range g.Status {
				for c, st := range row {
					if st == grid.OK && g.Calcs[r][c] != nil {
						add(g.Calcs[r][c].Data)
					}
				}
			}
		}
	}
	out := make(map[string][]string, len(seen))
	for ph, vars := range seen {
		names := make([]string, 0, len(vars))
		for v := range vars {
			names = append(names, v)
		}
		sort.Strings(names)
		out[ph] = names
	}
	return out
}

// Endmembers maps phases to the end-members found in data keys such as
// "g(alm)".
func (e *Explorer) Endmembers() map[string][]string {
	out := make(map[string][]string)
	for k := range e.DataKeys() {
		open := strings.Index(k, "(")
		if open <= 0 || !strings.HasSuffix(k, ")") {
			continue
		}
		out[k[:open]] = append(out[k[:open]], k[open+1:len(k)-1])
	}
	for _, ems := range out {
		sort.Strings(ems)
	}
	return out
}

// Calculate grids every section. The grid size covers the whole explorer
// window; each section gets the share matching its window. Failed points
// are retried with neighbour guesses. The returned log lists the points
// left without solution. When ctx is cancelled the section being gridded
// keeps the points finished so far.
func (e *Explorer) Calculate(ctx context.Context, nx, ny, workers int, progress func(ix int) grid.ProgressFunc) ([]string, error) {
	var log []string
	for i, s := range e.Sections {
		sec := s.Project.Section
		sx, sy := grid.Size(nx, ny, sec.XRange, sec.YRange, e.XRange(), e.YRange())
		c := &grid.Calculator{
			Settings: e.Settings,
			Section:  sec,
			Shapes:   s.Shapes,
			Workers:  workers,
			Logger:   e.logger,
		}
		if progress != nil {
			c.Progress = progress(i)
		}
		d, err := c.Calculate(ctx, sx, sy)
		if err != nil {
			if d != nil && ctx.Err() != nil {
				// keep the points finished before the cancel
				s.Project.Grid = d
			}
			return log, fmt.Errorf("gridding section %d: %w", i+1, err)
		}
		e.logger.Info("section gridded", zap.Int("section", i+1), zap.String("grid", d.String()))
		_, fixLog, err := c.Fix(ctx, d)
		log = append(log, fixLog...)
		if err != nil {
			return log, fmt.Errorf("fixing section %d: %w", i+1, err)
		}
		s.Project.Grid = d
	}
	return log, nil
}

// Save writes every project back to its file.
func (e *Explorer) Save() error {
	for _, s := range e.Sections {
		if err := s.Project.Save(s.Project.Path); err != nil {
			return err
		}
	}
	return nil
}

// GridSteps returns the mean grid spacing of the sections, or the
// window divided by DefaultGridSize when not gridded.
func (e *Explorer) GridSteps() (float64, float64) {
	if !e.Gridded() {
		xr, yr := e.XRange(), e.YRange()
		return (xr[1] - xr[0]) / DefaultGridSize, (yr[1] - yr[0]) / DefaultGridSize
	}
	var xs, ys float64
	for _, s := range e.Sections {
		xs += s.Grid().XStep()
		ys += s.Grid().YStep()
	}
	n := float64(len(e.Sections))
	return xs / n, ys / n
}

// CommonGrid returns an empty grid over the whole window with masks for
// every merged field. Zero sizes follow the section grid spacing.
func (e *Explorer) CommonGrid(nx, ny int) *grid.Data {
	xr, yr := e.XRange(), e.YRange()
	if nx <= 0 || ny <= 0 {
		xs, ys := e.GridSteps()
		nx = int(math.Round((xr[1] - xr[0]) / xs))
		ny = int(math.Round((yr[1] - yr[0]) / ys))
	}
	d := grid.New(xr, yr, nx, ny)
	d.CreateMasks(e.shapes)
	return d
}

// NearestCalc returns the grid result at (x, y) or, when that point failed,
// the first calculated neighbour.
func (e *Explorer) NearestCalc(x, y float64) (*tc.Result, bool) {
	ix := e.SectionAt(x, y)
	if ix < 0 {
		return nil, false
	}
	g := e.Sections[ix].Grid()
	if g == nil {
		return nil, false
	}
	r, c := g.Indexes(x, y)
	if g.Status[r][c] == grid.OK && g.Calcs[r][c] != nil {
		return g.Calcs[r][c], true
	}
	for _, n := range g.Neighs(r, c) {
		if g.Status[n[0]][n[1]] == grid.OK && g.Calcs[n[0]][n[1]] != nil {
			return g.Calcs[n[0]][n[1]], true
		}
	}
	return nil, false
}

func (e *Explorer) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s explorer\n", strings.ToUpper(string(e.Kind())))
	b.WriteString(e.Settings.String())
	for _, s := range e.Sections {
		b.WriteString("\n")
		b.WriteString(s.Project.Section.String())
	}
	fmt.Fprintf(&b, "\nAreas: %d", len(e.shapes.Shapes))
	for _, s := range e.Sections {
		if g := s.Grid(); g != nil {
			b.WriteString("\n")
			b.WriteString(g.String())
		}
	}
	return b.String()
}
