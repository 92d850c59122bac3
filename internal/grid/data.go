// Package grid calculates THERMOCALC compositions on a regular grid over a
// section.
package grid

import (
	"fmt"
	"math"

	"github.com/petrolab/psb/internal/geometry"
	"github.com/petrolab/psb/internal/tc"
)

// Status of one grid point.
type Status int8

const (
	// None marks points outside every divariant field.
	None Status = iota
	Failed
	OK
)

func (s Status) String() string {
	switch s {
	case OK:
		return "ok"
	case Failed:
		return "failed"
	default:
		return "none"
	}
}

// Data stores gridded calculations. Arrays are indexed [row][col] with rows
// along y and columns along x. The grid is cell centered.
//
// Delta holds calculation times in seconds for ok points. Masks maps field
// keys to the grid points inside the field.
type Data struct {
	XSpace []float64           `json:"xspace"`
	YSpace []float64           `json:"yspace"`
	Status [][]Status          `json:"status"`
	Delta  [][]float64         `json:"delta"`
	Calcs  [][]*tc.Result      `json:"calcs"`
	Masks  map[string][][]bool `json:"masks,omitempty"`
}

// New returns an empty nx by ny grid over the window.
func New(xrange, yrange [2]float64, nx, ny int) *Data {
	nx, ny = max(nx, 2), max(ny, 2)
	d := &Data{
		XSpace: cellCenters(xrange, nx),
		YSpace: cellCenters(yrange, ny),
		Status: make([][]Status, ny),
		Delta:  make([][]float64, ny),
		Calcs:  make([][]*tc.Result, ny),
		Masks:  make(map[string][][]bool),
	}
	for r := range ny {
		d.Status[r] = make([]Status, nx)
		d.Delta[r] = make([]float64, nx)
		d.Calcs[r] = make([]*tc.Result, nx)
	}
	return d
}

// cellCenters is linspace(lo+d/2, hi-d/2, n) with d the cell size.
func cellCenters(r [2]float64, n int) []float64 {
	step := (r[1] - r[0]) / float64(n)
	out := make([]float64, n)
	for i := range out {
		out[i] = r[0] + step/2 + float64(i)*step
	}
	return out
}

// Size scales the requested grid size to a section occupying part of the
// total window.
func Size(nx, ny int, xrange, yrange, totalX, totalY [2]float64) (int, int) {
	sx := int(math.Round(float64(nx) * (xrange[1] - xrange[0]) / (totalX[1] - totalX[0])))
	sy := int(math.Round(float64(ny) * (yrange[1] - yrange[0]) / (totalY[1] - totalY[0])))
	return max(sx, 2), max(sy, 2)
}

// Shape returns rows and columns.
func (d *Data) Shape() (int, int) { return len(d.YSpace), len(d.XSpace) }

// XStep returns the spacing along x.
func (d *Data) XStep() float64 { return d.XSpace[1] - d.XSpace[0] }

// YStep returns the spacing along y.
func (d *Data) YStep() float64 { return d.YSpace[1] - d.YSpace[0] }

// Extent returns xmin, xmax, ymin, ymax of the cells.
func (d *Data) Extent() [4]float64 {
	xs, ys := d.XStep()/2, d.YStep()/2
	return [4]float64{
		d.XSpace[0] - xs, d.XSpace[len(d.XSpace)-1] + xs,
		d.YSpace[0] - ys, d.YSpace[len(d.YSpace)-1] + ys,
	}
}

// Contains reports whether (x, y) falls in a grid cell.
func (d *Data) Contains(x, y float64) bool {
	e := d.Extent()
	return x >= e[0] && x < e[1] && y >= e[2] && y < e[3]
}

// Indexes returns the row and column of the cell holding (x, y), clamped
// to the grid.
func (d *Data) Indexes(x, y float64) (int, int) {
	e := d.Extent()
	rows, cols := d.Shape()
	c := int(math.Floor((x - e[0]) / d.XStep()))
	r := int(math.Floor((y - e[2]) / d.YStep()))
	return min(max(r, 0), rows-1), min(max(c, 0), cols-1)
}

// Point returns the coordinates of cell (r, c).
func (d *Data) Point(r, c int) (float64, float64) {
	return d.XSpace[c], d.YSpace[r]
}

// Neighs returns the 8-neighbourhood of (r, c) inside the grid, row by row.
func (d *Data) Neighs(r, c int) [][2]int {
	rows, cols := d.Shape()
	var out [][2]int
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			rn, cn := r+dr, c+dc
			if rn < 0 || rn >= rows || cn < 0 || cn >= cols {
				continue
			}
			out = append(out, [2]int{rn, cn})
		}
	}
	return out
}

// Counts returns the number of ok, failed and empty points.
func (d *Data) Counts() (ok, failed, none int) {
	for _, row := range d.Status {
		for _, s := range row {
			switch s {
			case OK:
				ok++
			case Failed:
				failed++
			default:
				none++
			}
		}
	}
	return ok, failed, none
}

func (d *Data) String() string {
	ok, failed, none := d.Counts()
	return fmt.Sprintf("Grid %dx%d with ok/failed/none solutions %d/%d/%d",
		len(d.XSpace), len(d.YSpace), ok, failed, none)
}

// CreateMasks records which grid points fall in each shape.
func (d *Data) CreateMasks(sh *geometry.Shapes) {
	d.Masks = make(map[string][][]bool, len(sh.Shapes))
	rows, cols := d.Shape()
	for k, s := range sh.Shapes {
		mask := make([][]bool, rows)
		for r := range rows {
			mask[r] = make([]bool, cols)
			for c := range cols {
				x, y := d.Point(r, c)
				mask[r][c] = s.Contains(x, y)
			}
		}
		d.Masks[k] = mask
	}
}

// Results returns the coordinates and results of ok points in field key.
func (d *Data) Results(key string) (xs, ys []float64, res []*tc.Result) {
	mask, ok := d.Masks[key]
	if !ok {
		return nil, nil, nil
	}
	for r, row := range mask {
		for c, in := range row {
			if in && d.Status[r][c] == OK && d.Calcs[r][c] != nil {
				x, y := d.Point(r, c)
				xs, ys = append(xs, x), append(ys, y)
				res = append(res, d.Calcs[r][c])
			}
		}
	}
	return xs, ys, res
}
