// Package section holds the pseudosection data model: invariant points,
// univariant lines and the diagram window they live in.
package section

import (
	"fmt"
	"math"
	"sort"

	"github.com/petrolab/psb/internal/phase"
	"github.com/petrolab/psb/internal/tc"
)

// Kind identifies the diagram axes.
type Kind string

const (
	// PT has x = T (°C) and y = p (kbar).
	PT Kind = "pt"
	// TX has x = T (°C) and y = bulk composition fraction at fixed p.
	TX Kind = "tx"
	// PX has x = bulk composition fraction and y = p (kbar) at fixed T.
	PX Kind = "px"
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case PT, TX, PX:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown section kind %q (want pt, tx or px)", s)
}

// XVar returns the x axis label.
func (k Kind) XVar() string {
	if k == PX {
		return "C"
	}
	return "T(°C)"
}

// YVar returns the y axis label.
func (k Kind) YVar() string {
	if k == TX {
		return "C"
	}
	return "p(kbar)"
}

// PT returns the pressure and temperature of diagram point (x, y). fixed
// is the section's constant p (TX) or T (PX).
func (k Kind) PT(x, y, fixed float64) (p, t float64) {
	switch k {
	case TX:
		return fixed, x
	case PX:
		return y, fixed
	default:
		return y, x
	}
}

// Composition returns the bulk interpolation fraction of point (x, y), or
// false for P-T sections.
func (k Kind) Composition(x, y float64) (float64, bool) {
	switch k {
	case TX:
		return y, true
	case PX:
		return x, true
	default:
		return 0, false
	}
}

// Section is one pseudosection: its window and the calculated topology.
type Section struct {
	Kind   Kind       `json:"kind"`
	XRange [2]float64 `json:"xrange"`
	YRange [2]float64 `json:"yrange"`
	// Fixed is p for TX and T for PX sections.
	Fixed  float64   `json:"fixed,omitempty"`
	Excess phase.Set `json:"excess"`

	Invs map[int]*InvPoint `json:"invpoints"`
	Unis map[int]*UniLine  `json:"unilines"`
}

// New returns an empty section.
func New(kind Kind, xrange, yrange [2]float64, excess phase.Set) *Section {
	return &Section{
		Kind:   kind,
		XRange: xrange,
		YRange: yrange,
		Excess: excess,
		Invs:   make(map[int]*InvPoint),
		Unis:   make(map[int]*UniLine),
	}
}

// InvPoint is a point where two phases are at zero mode.
type InvPoint struct {
	ID      int         `json:"id"`
	Phases  phase.Set   `json:"phases"`
	Out     phase.Set   `json:"out"`
	X       float64     `json:"x"`
	Y       float64     `json:"y"`
	Results []tc.Result `json:"results,omitempty"`
	// Manual points carry coordinates only, no THERMOCALC results.
	Manual bool   `json:"manual,omitempty"`
	Output string `json:"output,omitempty"`
}

// Label renders "<phases without excess> - <out>".
func (p *InvPoint) Label(excess phase.Set) string {
	return Label(p.Phases, p.Out, excess)
}

// PtGuess returns the starting guesses of the calculated point.
func (p *InvPoint) PtGuess() []string {
	if len(p.Results) == 0 {
		return nil
	}
	return p.Results[0].PtGuess
}

// Data returns the calculated phase data, or nil for manual points.
func (p *InvPoint) Data() map[string]map[string]float64 {
	if len(p.Results) == 0 {
		return nil
	}
	return p.Results[0].Data
}

// UniLine is a line along which one phase is at zero mode.
type UniLine struct {
	ID      int         `json:"id"`
	Phases  phase.Set   `json:"phases"`
	Out     phase.Set   `json:"out"`
	X       []float64   `json:"x"`
	Y       []float64   `json:"y"`
	Results []tc.Result `json:"results,omitempty"`
	// Begin and End are connected invariant point ids, 0 for a free end.
	Begin int `json:"begin"`
	End   int `json:"end"`
	// BegIx and EndIx bound the vertices used between Begin and End.
	BegIx  int    `json:"begix"`
	EndIx  int    `json:"endix"`
	Manual bool   `json:"manual,omitempty"`
	Output string `json:"output,omitempty"`
}

// Label renders "<phases without excess> - <out>".
func (u *UniLine) Label(excess phase.Set) string {
	return Label(u.Phases, u.Out, excess)
}

// Used returns the indexes of the vertices between the connected ends.
func (u *UniLine) Used() []int {
	if len(u.X) == 0 {
		return nil
	}
	lo, hi := u.BegIx, u.EndIx
	lo = max(lo, 0)
	hi = min(hi, len(u.X)-1)
	idx := make([]int, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		idx = append(idx, i)
	}
	return idx
}

// MidIx returns the index of the middle used vertex.
func (u *UniLine) MidIx() int {
	used := u.Used()
	if len(used) == 0 {
		return 0
	}
	return used[len(used)/2]
}

// PtGuess returns the starting guesses at vertex idx.
func (u *UniLine) PtGuess(idx int) []string {
	if idx < 0 || idx >= len(u.Results) {
		return nil
	}
	return u.Results[idx].PtGuess
}

// Data returns the phase data at the middle vertex.
func (u *UniLine) Data() map[string]map[string]float64 {
	mid := u.MidIx()
	if mid >= len(u.Results) {
		return nil
	}
	return u.Results[mid].Data
}

// Label renders "<phases without excess> - <out>".
func Label(phases, out, excess phase.Set) string {
	return fmt.Sprintf("%s - %s", phases.Minus(excess).Key(), out.Key())
}

// InvIDs returns invariant point ids in ascending order.
func (s *Section) InvIDs() []int { return sortedKeys(s.Invs) }

// UniIDs returns univariant line ids in ascending order.
func (s *Section) UniIDs() []int { return sortedKeys(s.Unis) }

func sortedKeys[T any](m map[int]T) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func nextID[T any](m map[int]T) int {
	id := 0
	for k := range m {
		id = max(id, k)
	}
	return id + 1
}

// AddInv stores p. A point with the same phases and out set replaces the
// existing one and keeps its id. The stored id is returned.
func (s *Section) AddInv(p *InvPoint) int {
	for id, old := range s.Invs {
		if old.Phases.Equal(p.Phases) && old.Out.Equal(p.Out) {
			p.ID = id
			s.Invs[id] = p
			return id
		}
	}
	p.ID = nextID(s.Invs)
	s.Invs[p.ID] = p
	return p.ID
}

// AddUni stores u, replacing a line with the same phases and out set.
func (s *Section) AddUni(u *UniLine) int {
	for id, old := range s.Unis {
		if old.Phases.Equal(u.Phases) && old.Out.Equal(u.Out) {
			u.ID = id
			s.Unis[id] = u
			return id
		}
	}
	u.ID = nextID(s.Unis)
	s.Unis[u.ID] = u
	return u.ID
}

// RemoveInv deletes an invariant point and frees line ends attached to it.
func (s *Section) RemoveInv(id int) error {
	if _, ok := s.Invs[id]; !ok {
		return fmt.Errorf("invariant point %d not found", id)
	}
	delete(s.Invs, id)
	for _, u := range s.Unis {
		if u.Begin == id {
			u.Begin = 0
		}
		if u.End == id {
			u.End = 0
		}
		s.Trim(u)
	}
	return nil
}

// RemoveUni deletes a univariant line.
func (s *Section) RemoveUni(id int) error {
	if _, ok := s.Unis[id]; !ok {
		return fmt.Errorf("univariant line %d not found", id)
	}
	delete(s.Unis, id)
	return nil
}

// InvOnUni reports whether an invariant point with iphases/iout can be an
// end of a univariant line with uphases/uout.
func InvOnUni(uphases, uout, iphases, iout phase.Set) bool {
	if len(iout) != 2 {
		return false
	}
	a, b := phase.NewSet(iout[0]), phase.NewSet(iout[1])
	aphases, bphases := iphases.Minus(a), iphases.Minus(b)
	switch {
	case iphases.Equal(uphases) && iout.Minus(uout).Len() == 1:
		return true
	case bphases.Equal(uphases) && a.Equal(uout):
		return true
	case aphases.Equal(uphases) && b.Equal(uout):
		return true
	}
	return false
}

// Candidates returns ids of invariant points that may end line u.
func (s *Section) Candidates(u *UniLine) []int {
	var ids []int
	for _, id := range s.InvIDs() {
		p := s.Invs[id]
		if InvOnUni(u.Phases, u.Out, p.Phases, p.Out) {
			ids = append(ids, id)
		}
	}
	return ids
}

// AutoConnect attaches the candidate invariant points closest to the line
// ends and trims the line. Lines without vertices are left unchanged.
func (s *Section) AutoConnect(u *UniLine) {
	if len(u.X) == 0 {
		return
	}
	last := len(u.X) - 1
	bestBegin, bestEnd := 0, 0
	dBegin, dEnd := math.MaxFloat64, math.MaxFloat64
	for _, id := range s.Candidates(u) {
		p := s.Invs[id]
		db := s.dist2(p.X, p.Y, u.X[0], u.Y[0])
		de := s.dist2(p.X, p.Y, u.X[last], u.Y[last])
		if db <= de {
			if db < dBegin {
				bestBegin, dBegin = id, db
			}
		} else if de < dEnd {
			bestEnd, dEnd = id, de
		}
	}
	u.Begin, u.End = bestBegin, bestEnd
	s.Trim(u)
}

// Connect sets the line ends explicitly. 0 frees an end.
func (s *Section) Connect(u *UniLine, begin, end int) error {
	for _, id := range []int{begin, end} {
		if id == 0 {
			continue
		}
		if _, ok := s.Invs[id]; !ok {
			return fmt.Errorf("invariant point %d not found", id)
		}
	}
	if begin != 0 && begin == end {
		return fmt.Errorf("line %d cannot begin and end at invariant point %d", u.ID, begin)
	}
	u.Begin, u.End = begin, end
	s.Trim(u)
	return nil
}

// Trim sets the used vertex range to the part of the line between its
// connected invariant points. Ends are swapped when the connected points
// lie against the vertex order.
func (s *Section) Trim(u *UniLine) {
	n := len(u.X)
	if n == 0 {
		u.BegIx, u.EndIx = 0, -1
		return
	}
	u.BegIx, u.EndIx = 0, n-1
	if p, ok := s.Invs[u.Begin]; ok {
		u.BegIx = s.nearestVertex(u, p.X, p.Y)
	}
	if p, ok := s.Invs[u.End]; ok {
		u.EndIx = s.nearestVertex(u, p.X, p.Y)
	}
	if u.BegIx > u.EndIx {
		u.Begin, u.End = u.End, u.Begin
		u.BegIx, u.EndIx = u.EndIx, u.BegIx
		if u.Begin == 0 {
			u.BegIx = 0
		}
		if u.End == 0 {
			u.EndIx = n - 1
		}
	}
}

func (s *Section) nearestVertex(u *UniLine, x, y float64) int {
	best, bestD := 0, math.MaxFloat64
	for i := range u.X {
		if d := s.dist2(x, y, u.X[i], u.Y[i]); d < bestD {
			best, bestD = i, d
		}
	}
	return best
}

// dist2 is the squared distance in window-normalized coordinates.
func (s *Section) dist2(x1, y1, x2, y2 float64) float64 {
	dx := (x1 - x2) / span(s.XRange)
	dy := (y1 - y2) / span(s.YRange)
	return dx*dx + dy*dy
}

func span(r [2]float64) float64 {
	if d := r[1] - r[0]; d != 0 {
		return d
	}
	return 1
}

// TrimmedXY returns the line geometry between its connected ends: the
// begin point, the used vertices and the end point. Manual lines connected
// at either end reduce to their end points.
func (s *Section) TrimmedXY(u *UniLine) (xs, ys []float64) {
	if p, ok := s.Invs[u.Begin]; ok {
		xs, ys = append(xs, p.X), append(ys, p.Y)
	}
	if !u.Manual {
		for _, i := range u.Used() {
			xs, ys = append(xs, u.X[i]), append(ys, u.Y[i])
		}
	} else if u.Begin == 0 && u.End == 0 {
		xs, ys = append(xs, u.X...), append(ys, u.Y...)
	}
	if p, ok := s.Invs[u.End]; ok {
		xs, ys = append(xs, p.X), append(ys, p.Y)
	}
	return xs, ys
}

// Contains reports whether (x, y) lies inside the section window.
func (s *Section) Contains(x, y float64) bool {
	return x >= s.XRange[0] && x <= s.XRange[1] && y >= s.YRange[0] && y <= s.YRange[1]
}

// AllPhases returns every phase appearing in the section.
func (s *Section) AllPhases() phase.Set {
	var all phase.Set
	for _, p := range s.Invs {
		all = all.Union(p.Phases)
	}
	for _, u := range s.Unis {
		all = all.Union(u.Phases)
	}
	return all
}

func (s *Section) String() string {
	return fmt.Sprintf("%s section %s %v %s %v with %d invariant points and %d univariant lines",
		map[Kind]string{PT: "P-T", TX: "T-X", PX: "P-X"}[s.Kind],
		s.Kind.XVar(), s.XRange, s.Kind.YVar(), s.YRange, len(s.Invs), len(s.Unis))
}
