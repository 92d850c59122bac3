package tc

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/petrolab/psb/internal/phase"
)

// Each answer builder produces the stdin dialogue THERMOCALC expects in
// calcmode 1, terminated with kill so the program exits.

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// CalcTPAnswer locates an invariant point with the two out phases at zero
// mode inside the given windows.
func CalcTPAnswer(phases, out phase.Set, prange, trange [2]float64) string {
	return fmt.Sprintf("%s\n\n%s\n%s %s %s %s\nn\n\nkill\n\n",
		phases.Key(), out.Key(),
		num(prange[0]), num(prange[1]), num(trange[0]), num(trange[1]))
}

// CalcTAnswer traces a univariant line calculating T at p steps.
func CalcTAnswer(phases, out phase.Set, prange, trange [2]float64, step float64) string {
	return fmt.Sprintf("%s\n\n%s\nn\n\n%s %s\n%s %s\n%s\nkill\n\n",
		phases.Key(), out.Key(),
		num(prange[0]), num(prange[1]), num(trange[0]), num(trange[1]), num(step))
}

// CalcPAnswer traces a univariant line calculating p at T steps.
func CalcPAnswer(phases, out phase.Set, prange, trange [2]float64, step float64) string {
	return fmt.Sprintf("%s\n\n%s\ny\n\n%s %s\n%s %s\n%s\nkill\n\n",
		phases.Key(), out.Key(),
		num(trange[0]), num(trange[1]), num(prange[0]), num(prange[1]), num(step))
}

// CalcAssemblageAnswer calculates a divariant assemblage at p, T.
func CalcAssemblageAnswer(phases phase.Set, p, t float64) string {
	return fmt.Sprintf("%s\n\n\n%s\n%s\nkill\n\n", phases.Key(), num(p), num(t))
}

// VarianceAnswer asks THERMOCALC for the variance of an assemblage.
func VarianceAnswer(phases phase.Set) string {
	return fmt.Sprintf("%s\nkill\n\n", phases.Key())
}

// Calculate runs answer and parses tc-log.txt. The THERMOCALC stdout is
// stored in the result Output when the log cannot be read.
func (s *Settings) Calculate(ctx context.Context, answer string) (*LogResult, error) {
	out, err := s.Run(ctx, answer)
	if err != nil {
		return nil, err
	}
	if bombed := BombedError(out); bombed != nil {
		return &LogResult{Status: StatusBombed, Variance: -1, Output: out}, nil
	}
	log, err := s.ReadLog()
	if err != nil {
		return nil, err
	}
	res, err := ParseLog(log)
	if err != nil {
		return nil, err
	}
	res.Stdout = out
	return res, nil
}

// CalcAssemblage is Calculate with CalcAssemblageAnswer.
func (s *Settings) CalcAssemblage(ctx context.Context, phases phase.Set, p, t float64) (*LogResult, error) {
	return s.Calculate(ctx, CalcAssemblageAnswer(phases, p, t))
}

// Variance asks THERMOCALC for the variance of phases.
func (s *Settings) Variance(ctx context.Context, phases phase.Set) (int, error) {
	out, err := s.Run(ctx, VarianceAnswer(phases))
	if err != nil {
		return 0, err
	}
	v, ok := parseVariance(strings.Split(out, "\n"))
	if !ok {
		return 0, fmt.Errorf("no variance reported for %s", phases.Key())
	}
	return v, nil
}
