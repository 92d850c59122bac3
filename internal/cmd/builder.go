package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petrolab/psb/internal/phase"
	"github.com/petrolab/psb/internal/section"
	"github.com/petrolab/psb/internal/tc"
)

// parseID accepts "3", "i3" or "u3" where prefix is 'i' or 'u'.
func parseID(s string, prefix byte) (int, error) {
	if len(s) > 1 && s[0] == prefix {
		s = s[1:]
	}
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// parsePhases reads the --phases and --out flags. Excess phases are added
// to phases.
func parsePhases(sec *section.Section, phases, out string, nout int) (phase.Set, phase.Set, error) {
	ph := phase.Parse(phases).Union(sec.Excess)
	o := phase.Parse(out)
	if ph.Minus(sec.Excess).Len() == 0 {
		return nil, nil, fmt.Errorf("no phases given")
	}
	if o.Len() != nout {
		return nil, nil, fmt.Errorf("need %d out phase(s), got %q", nout, out)
	}
	if !o.IsSubset(ph) {
		return nil, nil, fmt.Errorf("out phases %s are not part of %s", o, ph)
	}
	return ph, o, nil
}

func checkOffered(st *tc.Settings, phases phase.Set) error {
	if missing := phases.Minus(st.Phases); missing.Len() > 0 {
		return fmt.Errorf("THERMOCALC does not offer %s (choose from: %s)", missing, st.Phases)
	}
	return nil
}

func checkCalcKind(sec *section.Section) error {
	if sec.Kind != section.PT {
		return fmt.Errorf("%s sections are built from manual entries only (use --manual)", sec.Kind)
	}
	return nil
}

// guessesFrom returns the starting guesses of "i<id>" or "u<id>".
func guessesFrom(sec *section.Section, ref string) ([]string, error) {
	switch {
	case strings.HasPrefix(ref, "i"):
		id, err := parseID(ref, 'i')
		if err != nil {
			return nil, err
		}
		p, ok := sec.Invs[id]
		if !ok {
			return nil, fmt.Errorf("invariant point %d not found", id)
		}
		if g := p.PtGuess(); g != nil {
			return g, nil
		}
	case strings.HasPrefix(ref, "u"):
		id, err := parseID(ref, 'u')
		if err != nil {
			return nil, err
		}
		u, ok := sec.Unis[id]
		if !ok {
			return nil, fmt.Errorf("univariant line %d not found", id)
		}
		if g := u.PtGuess(u.MidIx()); g != nil {
			return g, nil
		}
	default:
		return nil, fmt.Errorf("guesses must name i<id> or u<id>, got %q", ref)
	}
	return nil, fmt.Errorf("%s has no calculated guesses", ref)
}

// calculate runs answer under the workdir lock, first copying guesses into
// the scriptfile when given.
func calculate(ctx context.Context, cmd *cobra.Command, st *tc.Settings, guesses []string, answer string) (*tc.LogResult, error) {
	var res *tc.LogResult
	err := withLock(ctx, cmd, st.Workdir, func(ctx context.Context) error {
		if guesses != nil {
			if err := st.UpdateGuesses(guesses); err != nil {
				return err
			}
		}
		var err error
		res, err = st.Calculate(ctx, answer)
		return err
	})
	if err != nil {
		return nil, err
	}
	if res.Status == tc.StatusBombed {
		if err := tc.BombedError(res.Output); err != nil {
			return nil, err
		}
		return nil, &tc.TCError{Msg: "THERMOCALC bombed"}
	}
	return res, nil
}

// reconnect attaches the new invariant point id to calculated lines with a
// free end that can end in it.
func reconnect(sec *section.Section, id int) []int {
	var ids []int
	for _, uid := range sec.UniIDs() {
		u := sec.Unis[uid]
		if u.Manual || (u.Begin != 0 && u.End != 0) {
			continue
		}
		for _, c := range sec.Candidates(u) {
			if c == id {
				sec.AutoConnect(u)
				ids = append(ids, uid)
				break
			}
		}
	}
	return ids
}

func endLabel(id int) string {
	if id == 0 {
		return "-"
	}
	return fmt.Sprintf("i%d", id)
}

func answerTP(sec *section.Section, phases, out phase.Set) string {
	return tc.CalcTPAnswer(phases.Minus(sec.Excess), out, sec.YRange, sec.XRange)
}

// answerUni traces a line stepping along p (calculating T) or along T
// (calculating p). A zero step divides the stepped window in 50.
func answerUni(sec *section.Section, phases, out phase.Set, along string, step float64) (string, error) {
	ph := phases.Minus(sec.Excess)
	switch along {
	case "p":
		if step <= 0 {
			step = (sec.YRange[1] - sec.YRange[0]) / 50
		}
		return tc.CalcTAnswer(ph, out, sec.YRange, sec.XRange, step), nil
	case "t", "T":
		if step <= 0 {
			step = (sec.XRange[1] - sec.XRange[0]) / 50
		}
		return tc.CalcPAnswer(ph, out, sec.YRange, sec.XRange, step), nil
	}
	return "", fmt.Errorf("--along must be p or t, got %q", along)
}
