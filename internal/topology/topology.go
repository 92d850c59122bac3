// Package topology finds divariant fields in a section.
//
// Every univariant line bounds the fields of its phase set and of its phase
// set without the out phase. For each candidate field the bounding lines form
// an undirected graph over invariant points; a loop is a closed field and a
// simple chain whose ends leave the diagram window is a field cut by the
// window boundary.
package topology

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dominikbraun/graph"

	"github.com/petrolab/psb/internal/phase"
	"github.com/petrolab/psb/internal/section"
)

// Area is a field bounded by univariant lines.
type Area struct {
	Key phase.Set `json:"key"`
	// Edges holds univariant line ids in boundary order.
	Edges []int `json:"edges"`
	// Vertices holds the ids between consecutive edges. Free line ends get
	// synthetic ids greater than every invariant point id.
	Vertices []int        `json:"vertices"`
	Coords   [][2]float64 `json:"coords"`
}

// Areas is the result of Construct.
type Areas struct {
	Full    []Area   `json:"full"`
	Partial []Area   `json:"partial"`
	Log     []string `json:"log,omitempty"`
}

// Faces groups univariant line ids by the phase sets of the fields they
// bound. Polymorph pairs bound an extra field with the polymorph that is
// not out removed.
func Faces(s *section.Section) map[string][]int {
	faces := make(map[string][]int)
	add := func(key phase.Set, id int) {
		k := key.Key()
		for _, have := range faces[k] {
			if have == id {
				return
			}
		}
		faces[k] = append(faces[k], id)
	}
	for _, id := range s.UniIDs() {
		u := s.Unis[id]
		add(u.Phases, id)
		add(u.Phases.Minus(u.Out), id)
		for _, poly := range phase.Polymorphs {
			if poly.IsSubset(u.Phases) {
				add(u.Phases.Minus(poly.Minus(u.Out)), id)
			}
		}
	}
	return faces
}

type builder struct {
	s      *section.Section
	coords map[int][2]float64
	nextID int
}

// Construct returns the closed and window-crossing fields of s.
func Construct(s *section.Section) *Areas {
	b := &builder{s: s, coords: make(map[int][2]float64)}
	for id, p := range s.Invs {
		b.coords[id] = [2]float64{p.X, p.Y}
		b.nextID = max(b.nextID, id)
	}

	faces := Faces(s)
	keys := make([]string, 0, len(faces))
	for k := range faces {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	res := &Areas{}
	for _, k := range keys {
		area, closed, err := b.face(phase.FromKey(k), faces[k])
		switch {
		case err != nil:
			res.Log = append(res.Log, err.Error())
		case area == nil:
		case closed:
			res.Full = append(res.Full, *area)
		default:
			res.Partial = append(res.Partial, *area)
		}
	}
	return res
}

// ends returns the vertex ids of a line, allocating synthetic ids for free
// ends at the first and last traced vertex.
func (b *builder) ends(u *section.UniLine) (int, int, bool) {
	if len(u.X) == 0 && (u.Begin == 0 || u.End == 0) {
		return 0, 0, false
	}
	beg, end := u.Begin, u.End
	if beg == 0 {
		b.nextID++
		beg = b.nextID
		b.coords[beg] = [2]float64{u.X[0], u.Y[0]}
	}
	if end == 0 {
		b.nextID++
		end = b.nextID
		last := len(u.X) - 1
		b.coords[end] = [2]float64{u.X[last], u.Y[last]}
	}
	return beg, end, true
}

func (b *builder) face(key phase.Set, lines []int) (*Area, bool, error) {
	g := graph.New(graph.IntHash)
	for _, id := range lines {
		u := b.s.Unis[id]
		beg, end, ok := b.ends(u)
		if !ok || beg == end {
			continue
		}
		for _, v := range []int{beg, end} {
			if err := g.AddVertex(v); err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
				return nil, false, err
			}
		}

		// two lines between the same points enclose a lens
		if e, err := g.Edge(beg, end); err == nil {
			return b.area(key, []int{beg, end}, []int{edgeLine(e), id}), true, nil
		}
		cycle, err := graph.CreatesCycle(g, beg, end)
		if err != nil {
			return nil, false, err
		}
		if cycle {
			path, err := graph.ShortestPath(g, end, beg)
			if err != nil {
				return nil, false, fmt.Errorf("topology error in field %s: %w", key.Key(), err)
			}
			edges, err := pathEdges(g, path)
			if err != nil {
				return nil, false, fmt.Errorf("topology error in field %s: %w", key.Key(), err)
			}
			return b.area(key, path, append(edges, id)), true, nil
		}
		if err := g.AddEdge(beg, end, graph.EdgeData(id)); err != nil {
			return nil, false, err
		}
	}
	return b.chain(key, g)
}

// chain accepts a face graph that is a simple path with both ends outside
// the section window.
func (b *builder) chain(key phase.Set, g graph.Graph[int, int]) (*Area, bool, error) {
	adj, err := g.AdjacencyMap()
	if err != nil || len(adj) < 2 {
		return nil, false, err
	}
	start := -1
	var ids []int
	for v := range adj {
		ids = append(ids, v)
	}
	sort.Ints(ids)
	for _, v := range ids {
		switch n := len(adj[v]); {
		case n > 2:
			return nil, false, nil
		case n == 1 && start < 0:
			start = v
		}
	}
	if start < 0 {
		return nil, false, nil
	}

	var path []int
	if err := graph.DFS(g, start, func(v int) bool {
		path = append(path, v)
		return false
	}); err != nil {
		return nil, false, err
	}
	if len(path) != len(adj) {
		return nil, false, nil
	}
	edges, err := pathEdges(g, path)
	if err != nil {
		return nil, false, nil
	}
	first, last := b.coords[path[0]], b.coords[path[len(path)-1]]
	if b.s.Contains(first[0], first[1]) || b.s.Contains(last[0], last[1]) {
		return nil, false, nil
	}
	return b.area(key, path, edges), false, nil
}

func pathEdges(g graph.Graph[int, int], path []int) ([]int, error) {
	edges := make([]int, 0, len(path))
	for i := 0; i+1 < len(path); i++ {
		e, err := g.Edge(path[i], path[i+1])
		if err != nil {
			return nil, fmt.Errorf("no line between %d and %d", path[i], path[i+1])
		}
		edges = append(edges, edgeLine(e))
	}
	return edges, nil
}

func edgeLine(e graph.Edge[int]) int {
	id, _ := e.Properties.Data.(int)
	return id
}

func (b *builder) area(key phase.Set, vertices, edges []int) *Area {
	a := &Area{Key: key, Edges: edges, Vertices: vertices}
	for _, v := range vertices {
		a.Coords = append(a.Coords, b.coords[v])
	}
	return a
}

// Label renders the field key without excess phases.
func (a *Area) Label(excess phase.Set) string {
	return a.Key.Minus(excess).Key()
}
