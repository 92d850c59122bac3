package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/petrolab/psb/internal/calclog"
	"github.com/petrolab/psb/internal/project"
	"github.com/petrolab/psb/internal/section"
	"github.com/petrolab/psb/internal/style"
	"github.com/petrolab/psb/internal/ui"
)

var (
	invPhases  string
	invOut     string
	invManual  bool
	invX       float64
	invY       float64
	invGuesses string
	invJSON    bool
)

var invCmd = &cobra.Command{
	Use:     "inv",
	GroupID: GroupBuild,
	Short:   "Calculate and manage invariant points",
	RunE:    requireSubcommand,
}

var invAddCmd = &cobra.Command{
	Use:   "add <project>",
	Short: "Calculate an invariant point",
	Long: `Calculate the invariant point where two phases of an assemblage are at
zero mode. Excess phases are added automatically. Calculating a point that
already exists replaces it.

With --manual the point is entered at --x, --y without THERMOCALC.

Examples:
  psb inv add garnet --phases "g bi st mu" --out "g st"
  psb inv add garnet --phases "g bi st" --out "g st" --guesses u2
  psb inv add garnet --phases "bi mu st" --out "mu st" --manual --x 610 --y 8.5`,
	Args: cobra.ExactArgs(1),
	RunE: runInvAdd,
}

var invRmCmd = &cobra.Command{
	Use:   "rm <project> <id>...",
	Short: "Remove invariant points",
	Long: `Remove invariant points. Line ends attached to them become free.

Examples:
  psb inv rm garnet 3
  psb inv rm garnet i3 i4`,
	Args: cobra.MinimumNArgs(2),
	RunE: runInvRm,
}

var invLsCmd = &cobra.Command{
	Use:   "ls <project>",
	Short: "List invariant points",
	Args:  cobra.ExactArgs(1),
	RunE:  runInvLs,
}

func init() {
	invAddCmd.Flags().StringVarP(&invPhases, "phases", "p", "", "Assemblage phases (space or comma separated)")
	invAddCmd.Flags().StringVar(&invOut, "out", "", "The two zero mode phases")
	invAddCmd.Flags().BoolVar(&invManual, "manual", false, "Enter the point without calculation")
	invAddCmd.Flags().Float64Var(&invX, "x", 0, "x coordinate of a manual point")
	invAddCmd.Flags().Float64Var(&invY, "y", 0, "y coordinate of a manual point")
	invAddCmd.Flags().StringVar(&invGuesses, "guesses", "", "Use starting guesses of i<id> or u<id>")
	_ = invAddCmd.MarkFlagRequired("phases")
	_ = invAddCmd.MarkFlagRequired("out")

	invLsCmd.Flags().BoolVar(&invJSON, "json", false, "Output as JSON")

	invCmd.AddCommand(invAddCmd, invRmCmd, invLsCmd)
	rootCmd.AddCommand(invCmd)
}

func requireSubcommand(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())
	}
	return cmd.Help()
}

func runInvAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := projectPath(args[0])

	var inv *section.InvPoint
	var connected []int
	p, err := editProject(ctx, cmd, path, func(ctx context.Context, p *project.Project) (bool, error) {
		sec := p.Section
		phases, out, err := parsePhases(sec, invPhases, invOut, 2)
		if err != nil {
			return false, err
		}

		if invManual {
			if !cmd.Flags().Changed("x") || !cmd.Flags().Changed("y") {
				return false, fmt.Errorf("manual points need --x and --y")
			}
			inv = &section.InvPoint{Phases: phases, Out: out, X: invX, Y: invY, Manual: true}
		} else {
			if err := checkCalcKind(sec); err != nil {
				return false, err
			}
			var guesses []string
			if invGuesses != "" {
				if guesses, err = guessesFrom(sec, invGuesses); err != nil {
					return false, err
				}
			}
			st, err := p.Settings(ctx, origwdFlag, tcOptions())
			if err != nil {
				return false, err
			}
			if err := checkOffered(st, phases); err != nil {
				return false, err
			}
			res, err := calculate(ctx, cmd, st, guesses, answerTP(sec, phases, out))
			if err != nil {
				return false, err
			}
			if len(res.Points) == 0 || len(res.Results) == 0 {
				return false, fmt.Errorf("no invariant point %s found in the section window", section.Label(phases, out, sec.Excess))
			}
			inv = &section.InvPoint{
				Phases:  phases,
				Out:     out,
				X:       res.Points[0].T,
				Y:       res.Points[0].P,
				Results: res.Results[:1],
				Output:  res.Stdout,
			}
		}
		sec.AddInv(inv)
		connected = reconnect(sec, inv.ID)
		return true, nil
	})
	if err != nil {
		return err
	}

	label := inv.Label(p.Section.Excess)
	logEvent(eventDir(p), calclog.EventInvCalc, filepath.Base(path), fmt.Sprintf("i%d %s", inv.ID, label))
	w := cmd.OutOrStdout()
	style.PrintSuccess(w, "i%d %s at %s=%g %s=%g", inv.ID, label,
		p.Section.Kind.XVar(), inv.X, p.Section.Kind.YVar(), inv.Y)
	for _, id := range connected {
		fmt.Fprintf(w, "  %s u%d connected\n", style.ArrowPrefix, id)
	}
	return nil
}

func runInvRm(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := projectPath(args[0])
	var ids []int
	for _, a := range args[1:] {
		id, err := parseID(a, 'i')
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	p, err := editProject(ctx, cmd, path, func(ctx context.Context, p *project.Project) (bool, error) {
		for _, id := range ids {
			if err := p.Section.RemoveInv(id); err != nil {
				return false, err
			}
		}
		return true, nil
	})
	if err != nil {
		return err
	}
	for _, id := range ids {
		logEvent(eventDir(p), calclog.EventRemove, filepath.Base(path), fmt.Sprintf("i%d", id))
		style.PrintSuccess(cmd.OutOrStdout(), "Removed i%d", id)
	}
	return nil
}

type invRow struct {
	ID     int     `json:"id"`
	Label  string  `json:"label"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Manual bool    `json:"manual"`
}

func runInvLs(cmd *cobra.Command, args []string) error {
	p, err := project.Load(projectPath(args[0]))
	if err != nil {
		return err
	}
	sec := p.Section
	rows := make([]invRow, 0, len(sec.Invs))
	for _, id := range sec.InvIDs() {
		inv := sec.Invs[id]
		rows = append(rows, invRow{ID: id, Label: inv.Label(sec.Excess), X: inv.X, Y: inv.Y, Manual: inv.Manual})
	}

	w := cmd.OutOrStdout()
	if invJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	if len(rows) == 0 {
		fmt.Fprintf(w, "%s No invariant points\n", style.Dim.Render("○"))
		return nil
	}
	tbl := style.NewTable(
		style.Column{Name: "ID", Align: style.AlignRight},
		style.Column{Name: "PHASES"},
		style.Column{Name: sec.Kind.XVar(), Align: style.AlignRight},
		style.Column{Name: sec.Kind.YVar(), Align: style.AlignRight},
		style.Column{Name: "", Render: ui.RenderStatus},
	)
	for _, r := range rows {
		tbl.AddRow(fmt.Sprintf("i%d", r.ID), r.Label, fmt.Sprintf("%.2f", r.X), fmt.Sprintf("%.3f", r.Y), status(r.Manual))
	}
	fmt.Fprint(w, tbl.Render())
	return nil
}

func status(manual bool) string {
	if manual {
		return "manual"
	}
	return "ok"
}
