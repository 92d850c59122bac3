package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrolab/psb/internal/phase"
	"github.com/petrolab/psb/internal/section"
)

func newSection() *section.Section {
	return section.New(section.PT, [2]float64{400, 800}, [2]float64{2, 12}, phase.NewSet("q"))
}

func addUni(s *section.Section, phases, out string, begin, end int, xs, ys []float64) int {
	return s.AddUni(&section.UniLine{
		Phases: phase.Parse(phases), Out: phase.Parse(out),
		Begin: begin, End: end, X: xs, Y: ys, BegIx: 0, EndIx: len(xs) - 1,
	})
}

func find(areas []Area, key string) *Area {
	for i := range areas {
		if areas[i].Key.Key() == key {
			return &areas[i]
		}
	}
	return nil
}

func TestConstructTriangle(t *testing.T) {
	s := newSection()
	s.AddInv(&section.InvPoint{Phases: phase.Parse("g bi st q"), Out: phase.Parse("g st"), X: 500, Y: 5})
	s.AddInv(&section.InvPoint{Phases: phase.Parse("g bi mu q"), Out: phase.Parse("g mu"), X: 700, Y: 5})
	s.AddInv(&section.InvPoint{Phases: phase.Parse("bi mu st q"), Out: phase.Parse("mu st"), X: 600, Y: 9})
	addUni(s, "g bi q", "g", 1, 2, []float64{500, 700}, []float64{5, 5})
	addUni(s, "bi mu q", "mu", 2, 3, []float64{700, 600}, []float64{5, 9})
	addUni(s, "bi st q", "st", 3, 1, []float64{600, 500}, []float64{9, 5})

	areas := Construct(s)
	require.Empty(t, areas.Log)
	a := find(areas.Full, "bi q")
	require.NotNil(t, a, "bi q field missing from %+v", areas.Full)
	assert.ElementsMatch(t, []int{1, 2, 3}, a.Edges)
	assert.Len(t, a.Vertices, 3)
	assert.Equal(t, "bi", a.Label(s.Excess))
	assert.Empty(t, areas.Partial)
}

func TestConstructPartial(t *testing.T) {
	s := newSection()
	// crosses the whole window with both ends free
	addUni(s, "g bi q", "g", 0, 0, []float64{300, 600, 900}, []float64{6, 7, 8})

	areas := Construct(s)
	assert.Empty(t, areas.Full)
	require.Len(t, areas.Partial, 2)
	for _, a := range areas.Partial {
		assert.Equal(t, []int{1}, a.Edges)
		assert.Len(t, a.Coords, 2)
	}
	assert.NotNil(t, find(areas.Partial, "bi g q"))
	assert.NotNil(t, find(areas.Partial, "bi q"))
}

func TestConstructChainInsideWindow(t *testing.T) {
	s := newSection()
	addUni(s, "g bi q", "g", 0, 0, []float64{500, 600}, []float64{6, 7})
	areas := Construct(s)
	assert.Empty(t, areas.Full)
	assert.Empty(t, areas.Partial)
}

func TestConstructLens(t *testing.T) {
	s := newSection()
	s.AddInv(&section.InvPoint{Phases: phase.Parse("g bi st q"), Out: phase.Parse("g st"), X: 500, Y: 5})
	s.AddInv(&section.InvPoint{Phases: phase.Parse("g bi mu q"), Out: phase.Parse("g mu"), X: 700, Y: 5})
	addUni(s, "g bi q", "g", 1, 2, []float64{500, 600, 700}, []float64{5, 4, 5})
	addUni(s, "bi q", "bi", 1, 2, []float64{500, 600, 700}, []float64{5, 6, 5})

	areas := Construct(s)
	a := find(areas.Full, "bi q")
	require.NotNil(t, a)
	assert.Equal(t, []int{1, 2}, a.Edges)
}

func TestFacesPolymorph(t *testing.T) {
	s := newSection()
	addUni(s, "bi ky sill q", "ky", 0, 0, []float64{500}, []float64{5})
	faces := Faces(s)
	// phases, phases minus out, and the polymorph field without sill
	assert.Contains(t, faces, "bi ky q sill")
	assert.Contains(t, faces, "bi q sill")
	assert.Contains(t, faces, "bi ky q")
}
