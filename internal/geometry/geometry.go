// Package geometry turns constructed fields into polygons clipped to the
// section window.
package geometry

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"

	"github.com/petrolab/psb/internal/phase"
	"github.com/petrolab/psb/internal/section"
	"github.com/petrolab/psb/internal/topology"
)

// Shape is the polygon of one divariant field.
type Shape struct {
	Key   phase.Set
	Edges []int
	Geom  orb.MultiPolygon
}

// Shapes holds the polygons of a section keyed by phase set key.
type Shapes struct {
	Shapes map[string]*Shape
	// Bad holds fields whose boundary does not form a valid polygon.
	Bad map[string][]int
	// Tangled holds full fields whose boundary crosses itself. Their
	// polygons are split at the crossings.
	Tangled map[string][]int
	Bound   orb.Bound
}

// Bound returns the section window.
func Bound(s *section.Section) orb.Bound {
	return orb.Bound{
		Min: orb.Point{s.XRange[0], s.YRange[0]},
		Max: orb.Point{s.XRange[1], s.YRange[1]},
	}
}

// Create builds polygons for the areas of s. A positive tolerance
// simplifies polygon outlines.
func Create(s *section.Section, areas *topology.Areas, tolerance float64) *Shapes {
	sh := &Shapes{
		Shapes: make(map[string]*Shape),
		Bad:     make(map[string][]int),
		Tangled: make(map[string][]int),
		Bound:   Bound(s),
	}
	for _, a := range areas.Full {
		ring := closeRing(chainPoints(s, a))
		if _, _, _, crossed := selfCrossing(ring); crossed {
			sh.Tangled[a.Key.Key()] = a.Edges
			for _, r := range untangle(ring, 0) {
				sh.add(a, clip.Polygon(sh.Bound, orb.Polygon{r}))
			}
			continue
		}
		sh.add(a, clip.Polygon(sh.Bound, orb.Polygon{ring}))
	}
	for _, a := range areas.Partial {
		sh.add(a, sh.closePartial(chainPoints(s, a)))
	}
	sh.fixOverlaps()
	if tolerance > 0 {
		dp := simplify.DouglasPeucker(tolerance)
		for _, shape := range sh.Shapes {
			shape.Geom = dp.MultiPolygon(shape.Geom.Clone())
		}
	}
	return sh
}

func (sh *Shapes) add(a topology.Area, poly orb.Polygon) {
	k := a.Key.Key()
	if !valid(poly) {
		if _, ok := sh.Shapes[k]; !ok {
			sh.Bad[k] = a.Edges
		}
		return
	}
	delete(sh.Bad, k)
	if shape, ok := sh.Shapes[k]; ok {
		shape.Geom = append(shape.Geom, poly)
		return
	}
	sh.Shapes[k] = &Shape{Key: a.Key, Edges: a.Edges, Geom: orb.MultiPolygon{poly}}
}

// chainPoints concatenates the trimmed lines of a in boundary order,
// reversing each line so that it starts at the current vertex.
func chainPoints(s *section.Section, a topology.Area) orb.LineString {
	var pts orb.LineString
	for i, id := range a.Edges {
		u, ok := s.Unis[id]
		if !ok {
			continue
		}
		xs, ys := s.TrimmedXY(u)
		if len(xs) == 0 {
			continue
		}
		at := orb.Point(a.Coords[i])
		if i > 0 && len(pts) > 0 {
			at = pts[len(pts)-1]
		}
		first := orb.Point{xs[0], ys[0]}
		last := orb.Point{xs[len(xs)-1], ys[len(ys)-1]}
		if planar.DistanceSquared(at, last) < planar.DistanceSquared(at, first) {
			for j := len(xs) - 1; j >= 0; j-- {
				pts = appendPoint(pts, orb.Point{xs[j], ys[j]})
			}
			continue
		}
		for j := range xs {
			pts = appendPoint(pts, orb.Point{xs[j], ys[j]})
		}
	}
	return pts
}

func appendPoint(pts orb.LineString, p orb.Point) orb.LineString {
	if n := len(pts); n > 0 && pts[n-1].Equal(p) {
		return pts
	}
	return append(pts, p)
}

func closeRing(ls orb.LineString) orb.Ring {
	r := orb.Ring(ls.Clone())
	if len(r) > 0 && !r.Closed() {
		r = append(r, r[0])
	}
	return r
}

func valid(p orb.Polygon) bool {
	if len(p) == 0 || len(p[0]) < 4 {
		return false
	}
	distinct := make(map[orb.Point]struct{}, len(p[0]))
	for _, pt := range p[0] {
		distinct[pt] = struct{}{}
	}
	return len(distinct) >= 3 && polygonArea(p) > 0
}

func polygonArea(p orb.Polygon) float64 {
	if len(p) == 0 {
		return 0
	}
	a := math.Abs(planar.Area(p[0]))
	for _, hole := range p[1:] {
		a -= math.Abs(planar.Area(hole))
	}
	return a
}

// selfCrossing returns the first two non-adjacent segments of the closed
// ring r that cross, with the crossing point.
func selfCrossing(r orb.Ring) (int, int, orb.Point, bool) {
	n := len(r) - 1
	for i := 0; i < n; i++ {
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue
			}
			if p, ok := segmentCross(r[i], r[i+1], r[j], r[j+1]); ok {
				return i, j, p, true
			}
		}
	}
	return 0, 0, orb.Point{}, false
}

// segmentCross returns the point where segments ab and cd cross. Touching
// ends and parallel segments do not count.
func segmentCross(a, b, c, d orb.Point) (orb.Point, bool) {
	rx, ry := b[0]-a[0], b[1]-a[1]
	sx, sy := d[0]-c[0], d[1]-c[1]
	den := rx*sy - ry*sx
	if den == 0 {
		return orb.Point{}, false
	}
	qx, qy := c[0]-a[0], c[1]-a[1]
	t := (qx*sy - qy*sx) / den
	u := (qx*ry - qy*rx) / den
	if t <= 0 || t >= 1 || u <= 0 || u >= 1 {
		return orb.Point{}, false
	}
	return orb.Point{a[0] + t*rx, a[1] + t*ry}, true
}

// untangle splits a self-crossing ring at its crossings into simple rings.
func untangle(r orb.Ring, depth int) []orb.Ring {
	i, j, p, ok := selfCrossing(r)
	if !ok || depth > 16 {
		return []orb.Ring{r}
	}
	loop := orb.Ring{p}
	loop = append(loop, r[i+1:j+1]...)
	loop = append(loop, p)
	rest := append(orb.Ring{}, r[:i+1]...)
	rest = append(rest, p)
	rest = append(rest, r[j+1:]...)
	return append(untangle(loop, depth+1), untangle(rest, depth+1)...)
}

// closePartial clips a window-crossing chain and closes it along the
// window boundary. Of the two boundary walks the one passing fewer corners
// wins, ties go to the smaller polygon.
func (sh *Shapes) closePartial(chain orb.LineString) orb.Polygon {
	if len(chain) < 2 {
		return nil
	}
	pieces := clip.LineString(sh.Bound, chain)
	if len(pieces) != 1 || len(pieces[0]) < 2 {
		return nil
	}
	in := pieces[0]
	ta := sh.perimeter(in[0])
	tb := sh.perimeter(in[len(in)-1])

	var best orb.Polygon
	bestCorners, bestArea := math.MaxInt, math.Inf(1)
	for _, forward := range []bool{true, false} {
		corners := sh.walk(tb, ta, forward)
		ring := append(in.Clone(), corners...)
		poly := orb.Polygon{closeRing(ring)}
		area := polygonArea(poly)
		if len(corners) < bestCorners || (len(corners) == bestCorners && area < bestArea) {
			best, bestCorners, bestArea = poly, len(corners), area
		}
	}
	return best
}

// perimeter maps a boundary point to a position in [0, 4): bottom, right,
// top and left sides in counter-clockwise order.
func (sh *Shapes) perimeter(p orb.Point) float64 {
	b := sh.Bound
	w, h := b.Max[0]-b.Min[0], b.Max[1]-b.Min[1]
	d := []float64{
		math.Abs(p[1]-b.Min[1]) / h,
		math.Abs(p[0]-b.Max[0]) / w,
		math.Abs(p[1]-b.Max[1]) / h,
		math.Abs(p[0]-b.Min[0]) / w,
	}
	side := 0
	for i := range d {
		if d[i] < d[side] {
			side = i
		}
	}
	switch side {
	case 0:
		return (p[0] - b.Min[0]) / w
	case 1:
		return 1 + (p[1]-b.Min[1])/h
	case 2:
		return 2 + (b.Max[0]-p[0])/w
	default:
		return math.Mod(3+(b.Max[1]-p[1])/h, 4)
	}
}

// walk returns the window corners passed going from perimeter position
// from to position to.
func (sh *Shapes) walk(from, to float64, forward bool) []orb.Point {
	b := sh.Bound
	corners := []orb.Point{
		{b.Min[0], b.Min[1]}, // 0
		{b.Max[0], b.Min[1]}, // 1
		{b.Max[0], b.Max[1]}, // 2
		{b.Min[0], b.Max[1]}, // 3
	}
	var out []orb.Point
	if forward {
		dist := math.Mod(to-from+4, 4)
		start := math.Floor(from) + 1
		for c := start; c-from < dist; c++ {
			out = append(out, corners[int(c)%4])
		}
		return out
	}
	dist := math.Mod(from-to+4, 4)
	start := math.Ceil(from) - 1
	for c := start; from-c < dist; c-- {
		out = append(out, corners[(int(c)%4+4)%4])
	}
	return out
}

// fixOverlaps turns a shape lying inside another into a hole of the
// enclosing shape and drops shapes left without area.
func (sh *Shapes) fixOverlaps() {
	keys := sh.Keys()
	for i, k1 := range keys {
		for _, k2 := range keys[i+1:] {
			a, b := sh.Shapes[k1], sh.Shapes[k2]
			if a == nil || b == nil {
				continue
			}
			switch {
			case within(a.Geom, b.Geom):
				if punch(b, a.Geom) {
					delete(sh.Shapes, k2)
				}
			case within(b.Geom, a.Geom):
				if punch(a, b.Geom) {
					delete(sh.Shapes, k1)
				}
			}
		}
	}
}

func within(inner, outer orb.MultiPolygon) bool {
	for _, p := range inner {
		for _, pt := range p[0] {
			if !planar.MultiPolygonContains(outer, pt) {
				return false
			}
		}
	}
	return len(inner) > 0
}

// punch adds the outer rings of holes to the polygons of s containing them
// and reports whether s is left empty.
func punch(s *Shape, holes orb.MultiPolygon) bool {
	for _, h := range holes {
		for i, p := range s.Geom {
			if within(orb.MultiPolygon{h}, orb.MultiPolygon{p}) {
				s.Geom[i] = append(p, h[0].Clone())
				break
			}
		}
	}
	return s.Area() <= 1e-12
}

// Area returns the polygon area in diagram units.
func (s *Shape) Area() float64 {
	var a float64
	for _, p := range s.Geom {
		a += polygonArea(p)
	}
	return a
}

// Contains reports whether (x, y) lies in the shape, outside its holes.
func (s *Shape) Contains(x, y float64) bool {
	return planar.MultiPolygonContains(s.Geom, orb.Point{x, y})
}

// Centroid returns a label position for the shape.
func (s *Shape) Centroid() orb.Point {
	c, _ := planar.CentroidArea(s.Geom)
	return c
}

// Keys returns shape keys in sorted order.
func (sh *Shapes) Keys() []string {
	keys := make([]string, 0, len(sh.Shapes))
	for k := range sh.Shapes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Identify returns the field containing (x, y).
func (sh *Shapes) Identify(x, y float64) (phase.Set, bool) {
	for _, k := range sh.Keys() {
		if s := sh.Shapes[k]; s.Contains(x, y) {
			return s.Key, true
		}
	}
	return nil, false
}
