package grid

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/petrolab/psb/internal/geometry"
	"github.com/petrolab/psb/internal/lock"
	"github.com/petrolab/psb/internal/logging"
	"github.com/petrolab/psb/internal/phase"
	"github.com/petrolab/psb/internal/section"
	"github.com/petrolab/psb/internal/tc"
)

// ProgressFunc receives the number of finished and total points.
type ProgressFunc func(done, total int)

// Calculator grids one section.
//
// THERMOCALC works in its current directory, so every worker calculates
// in a private copy of the working directory under .psb/scratch. The
// original scriptfile is never modified.
type Calculator struct {
	Settings *tc.Settings
	Section  *section.Section
	Shapes   *geometry.Shapes
	Workers  int
	Logger   *zap.Logger
	// Progress is called after every point, never concurrently.
	Progress ProgressFunc

	mu   sync.Mutex
	done int
}

type worker struct {
	s     *tc.Settings
	dir   string
	guess string
	bulk  string
}

// Calculate computes an nx by ny grid. On error the partially filled grid
// is returned with the error.
func (c *Calculator) Calculate(ctx context.Context, nx, ny int) (*Data, error) {
	d := New(c.Section.XRange, c.Section.YRange, nx, ny)
	rows, cols := d.Shape()

	var cells [][2]int
	for r := range rows {
		for col := range cols {
			cells = append(cells, [2]int{r, col})
		}
	}
	err := c.run(ctx, cells, func(ctx context.Context, w *worker, r, col int) error {
		x, y := d.Point(r, col)
		key, ok := c.Shapes.Identify(x, y)
		if !ok {
			return nil
		}
		res, delta, err := c.point(ctx, w, key, x, y)
		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			// a cancelled point stays uncalculated
			if ctx.Err() == nil {
				d.Status[r][col] = Failed
			}
			return err
		}
		if res == nil {
			d.Status[r][col] = Failed
			return nil
		}
		d.Status[r][col], d.Calcs[r][col], d.Delta[r][col] = OK, res, delta
		return nil
	})
	d.CreateMasks(c.Shapes)
	return d, err
}

// Fix retries failed points with the starting guesses of calculated
// neighbours and returns the number of fixed points and a log of points
// left without solution.
func (c *Calculator) Fix(ctx context.Context, d *Data) (int, []string, error) {
	var failed [][2]int
	for r, row := range d.Status {
		for col, s := range row {
			if s == Failed {
				failed = append(failed, [2]int{r, col})
			}
		}
	}
	if len(failed) == 0 {
		return 0, []string{"Fix done. 0 empty grid points left."}, nil
	}

	var fixed int
	var log []string
	err := c.run(ctx, failed, func(ctx context.Context, w *worker, r, col int) error {
		x, y := d.Point(r, col)
		key, ok := c.Shapes.Identify(x, y)
		if ok {
			for _, n := range d.Neighs(r, col) {
				c.mu.Lock()
				var guess []string
				if d.Status[n[0]][n[1]] == OK && d.Calcs[n[0]][n[1]] != nil {
					guess = d.Calcs[n[0]][n[1]].PtGuess
				}
				c.mu.Unlock()
				if guess == nil {
					continue
				}
				res, delta, err := c.attempt(ctx, w, key, x, y, guess)
				if err != nil {
					return err
				}
				if res != nil {
					c.mu.Lock()
					d.Status[r][col], d.Calcs[r][col], d.Delta[r][col] = OK, res, delta
					fixed++
					c.mu.Unlock()
					return nil
				}
			}
		}
		c.mu.Lock()
		log = append(log, fmt.Sprintf("No solution found for %g, %g", x, y))
		c.mu.Unlock()
		return nil
	})
	_, left, _ := d.Counts()
	log = append(log, fmt.Sprintf("Fix done. %d empty grid points left.", left))
	return fixed, log, err
}

type cellFunc func(ctx context.Context, w *worker, r, c int) error

// run spreads cells over the worker pool.
func (c *Calculator) run(ctx context.Context, cells [][2]int, fn cellFunc) error {
	logger := logging.OrNop(c.Logger)
	n := max(c.Workers, 1)
	n = min(n, max(len(cells), 1))

	root := filepath.Join(c.Settings.Workdir, lock.Dir, "scratch")
	pool := make(chan *worker, n)
	for range n {
		dir := filepath.Join(root, uuid.NewString())
		s, err := c.Settings.CloneTo(dir)
		if err != nil {
			close(pool)
			for w := range pool {
				_ = os.RemoveAll(w.dir)
			}
			return fmt.Errorf("preparing scratch directory: %w", err)
		}
		pool <- &worker{s: s, dir: dir}
	}
	defer func() {
		close(pool)
		for w := range pool {
			if err := os.RemoveAll(w.dir); err != nil {
				logger.Warn("removing scratch directory", zap.String("dir", w.dir), zap.Error(err))
			}
		}
		_ = os.Remove(root)
	}()

	c.mu.Lock()
	c.done = 0
	c.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n)
	for _, cell := range cells {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			w := <-pool
			defer func() { pool <- w }()
			if err := fn(gctx, w, cell[0], cell[1]); err != nil {
				return err
			}
			c.tick(len(cells))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (c *Calculator) tick(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.done++
	if c.Progress != nil {
		c.Progress(c.done, total)
	}
}

// point calculates field key at (x, y), first with the guesses of the
// nearest invariant point, then with those of the nearest vertex of the
// lines bounding the field. A nil result means no solution.
func (c *Calculator) point(ctx context.Context, w *worker, key phase.Set, x, y float64) (*tc.Result, float64, error) {
	if guess := c.nearestInvGuess(x, y); guess != nil {
		res, delta, err := c.attempt(ctx, w, key, x, y, guess)
		if err != nil || res != nil {
			return res, delta, err
		}
	}
	if guess := c.nearestUniGuess(key, x, y); guess != nil {
		return c.attempt(ctx, w, key, x, y, guess)
	}
	return nil, 0, nil
}

func (c *Calculator) attempt(ctx context.Context, w *worker, key phase.Set, x, y float64, guess []string) (*tc.Result, float64, error) {
	if err := w.prepare(c.Settings, c.Section, x, y, guess); err != nil {
		return nil, 0, err
	}
	p, t := c.Section.Kind.PT(x, y, c.Section.Fixed)
	start := time.Now()
	res, err := w.s.CalcAssemblage(ctx, key.Minus(c.Section.Excess), p, t)
	delta := time.Since(start).Seconds()
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, err
		}
		logging.OrNop(c.Logger).Debug("grid point failed",
			zap.Float64("x", x), zap.Float64("y", y), zap.String("key", key.Key()), zap.Error(err))
		return nil, 0, nil
	}
	if len(res.Results) != 1 {
		return nil, 0, nil
	}
	r := res.Results[0]
	return &r, delta, nil
}

// prepare writes guesses and, for composition sections, the interpolated
// bulk into the worker scriptfile when they changed.
func (w *worker) prepare(orig *tc.Settings, sec *section.Section, x, y float64, guess []string) error {
	if comp, ok := sec.Kind.Composition(x, y); ok {
		bulk, err := tc.InterpolateBulk(orig.Bulk, comp)
		if err != nil {
			return err
		}
		if b := strings.Join(bulk, " "); b != w.bulk {
			if err := w.s.UpdateBulk(bulk); err != nil {
				return err
			}
			w.bulk = b
		}
	}
	if g := strings.Join(guess, "\n"); g != w.guess {
		if err := w.s.UpdateGuesses(guess); err != nil {
			return err
		}
		w.guess = g
	}
	return nil
}

func (c *Calculator) nearestInvGuess(x, y float64) []string {
	best := math.MaxFloat64
	var guess []string
	for _, id := range c.Section.InvIDs() {
		p := c.Section.Invs[id]
		if p.Manual || len(p.PtGuess()) == 0 {
			continue
		}
		if d := sq(p.X-x) + sq(p.Y-y); d < best {
			best, guess = d, p.PtGuess()
		}
	}
	return guess
}

func (c *Calculator) nearestUniGuess(key phase.Set, x, y float64) []string {
	shape, ok := c.Shapes.Shapes[key.Key()]
	if !ok {
		return nil
	}
	best := math.MaxFloat64
	var guess []string
	for _, id := range shape.Edges {
		u, ok := c.Section.Unis[id]
		if !ok || u.Manual {
			continue
		}
		for _, i := range u.Used() {
			g := u.PtGuess(i)
			if len(g) == 0 {
				continue
			}
			if d := sq(u.X[i]-x) + sq(u.Y[i]-y); d < best {
				best, guess = d, g
			}
		}
	}
	return slices.Clone(guess)
}

func sq(v float64) float64 { return v * v }
