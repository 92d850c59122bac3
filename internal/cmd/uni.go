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
	uniPhases  string
	uniOut     string
	uniAlong   string
	uniStep    float64
	uniManual  bool
	uniBegin   int
	uniEnd     int
	uniGuesses string
	uniJSON    bool
)

var uniCmd = &cobra.Command{
	Use:     "uni",
	GroupID: GroupBuild,
	Short:   "Calculate and manage univariant lines",
	RunE:    requireSubcommand,
}

var uniAddCmd = &cobra.Command{
	Use:   "add <project>",
	Short: "Calculate a univariant line",
	Long: `Calculate the univariant line along which one phase of an assemblage is
at zero mode. THERMOCALC steps along p and calculates T by default; use
--along t to step along T and calculate p. The line is connected to the
nearest matching invariant points and trimmed between them.

With --manual the line is drawn straight between the invariant points
given by --begin and --end.

Examples:
  psb uni add garnet --phases "g bi st" --out g
  psb uni add garnet --phases "g bi st" --out st --along t --step 5
  psb uni add garnet --phases "bi st" --out st --manual --begin 1 --end 3`,
	Args: cobra.ExactArgs(1),
	RunE: runUniAdd,
}

var uniRmCmd = &cobra.Command{
	Use:   "rm <project> <id>...",
	Short: "Remove univariant lines",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runUniRm,
}

var uniLsCmd = &cobra.Command{
	Use:   "ls <project>",
	Short: "List univariant lines",
	Args:  cobra.ExactArgs(1),
	RunE:  runUniLs,
}

var uniConnectCmd = &cobra.Command{
	Use:   "connect <project> <id>",
	Short: "Set the invariant points a line ends in",
	Long: `Set the invariant points a univariant line begins and ends in. 0 frees
an end. Without --begin and --end the line is connected automatically.

Examples:
  psb uni connect garnet u3 --begin 1 --end 4
  psb uni connect garnet 3 --end 0
  psb uni connect garnet 3`,
	Args: cobra.ExactArgs(2),
	RunE: runUniConnect,
}

func init() {
	f := uniAddCmd.Flags()
	f.StringVarP(&uniPhases, "phases", "p", "", "Assemblage phases (space or comma separated)")
	f.StringVar(&uniOut, "out", "", "The zero mode phase")
	f.StringVar(&uniAlong, "along", "p", "Step along p (calculate T) or t (calculate p)")
	f.Float64Var(&uniStep, "step", 0, "Step size (default: window / 50)")
	f.BoolVar(&uniManual, "manual", false, "Enter the line without calculation")
	f.IntVar(&uniBegin, "begin", 0, "Begin invariant point of a manual line")
	f.IntVar(&uniEnd, "end", 0, "End invariant point of a manual line")
	f.StringVar(&uniGuesses, "guesses", "", "Use starting guesses of i<id> or u<id>")
	_ = uniAddCmd.MarkFlagRequired("phases")
	_ = uniAddCmd.MarkFlagRequired("out")

	uniConnectCmd.Flags().IntVar(&uniBegin, "begin", 0, "Begin invariant point id")
	uniConnectCmd.Flags().IntVar(&uniEnd, "end", 0, "End invariant point id")

	uniLsCmd.Flags().BoolVar(&uniJSON, "json", false, "Output as JSON")

	uniCmd.AddCommand(uniAddCmd, uniRmCmd, uniLsCmd, uniConnectCmd)
	rootCmd.AddCommand(uniCmd)
}

func runUniAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := projectPath(args[0])

	var uni *section.UniLine
	p, err := editProject(ctx, cmd, path, func(ctx context.Context, p *project.Project) (bool, error) {
		sec := p.Section
		phases, out, err := parsePhases(sec, uniPhases, uniOut, 1)
		if err != nil {
			return false, err
		}

		if uniManual {
			if uniBegin == 0 || uniEnd == 0 {
				return false, fmt.Errorf("manual lines need --begin and --end")
			}
			uni = &section.UniLine{Phases: phases, Out: out, Manual: true}
			sec.AddUni(uni)
			return true, sec.Connect(uni, uniBegin, uniEnd)
		}

		if err := checkCalcKind(sec); err != nil {
			return false, err
		}
		answer, err := answerUni(sec, phases, out, uniAlong, uniStep)
		if err != nil {
			return false, err
		}
		var guesses []string
		if uniGuesses != "" {
			if guesses, err = guessesFrom(sec, uniGuesses); err != nil {
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
		res, err := calculate(ctx, cmd, st, guesses, answer)
		if err != nil {
			return false, err
		}
		label := section.Label(phases, out, sec.Excess)
		if len(res.Points) < 2 || len(res.Results) != len(res.Points) {
			return false, fmt.Errorf("%s: %d point(s) calculated, change the window or the step", label, len(res.Points))
		}

		uni = &section.UniLine{Phases: phases, Out: out, Results: res.Results, Output: res.Stdout}
		for _, pt := range res.Points {
			uni.X = append(uni.X, pt.T)
			uni.Y = append(uni.Y, pt.P)
		}
		sec.AddUni(uni)
		sec.AutoConnect(uni)
		return true, nil
	})
	if err != nil {
		return err
	}

	label := uni.Label(p.Section.Excess)
	logEvent(eventDir(p), calclog.EventUniCalc, filepath.Base(path), fmt.Sprintf("u%d %s", uni.ID, label))
	style.PrintSuccess(cmd.OutOrStdout(), "u%d %s with %d points, %s to %s",
		uni.ID, label, len(uni.X), endLabel(uni.Begin), endLabel(uni.End))
	return nil
}

func runUniRm(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := projectPath(args[0])
	var ids []int
	for _, a := range args[1:] {
		id, err := parseID(a, 'u')
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	p, err := editProject(ctx, cmd, path, func(ctx context.Context, p *project.Project) (bool, error) {
		for _, id := range ids {
			if err := p.Section.RemoveUni(id); err != nil {
				return false, err
			}
		}
		return true, nil
	})
	if err != nil {
		return err
	}
	for _, id := range ids {
		logEvent(eventDir(p), calclog.EventRemove, filepath.Base(path), fmt.Sprintf("u%d", id))
		style.PrintSuccess(cmd.OutOrStdout(), "Removed u%d", id)
	}
	return nil
}

func runUniConnect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := projectPath(args[0])
	id, err := parseID(args[1], 'u')
	if err != nil {
		return err
	}
	var uni *section.UniLine
	_, err = editProject(ctx, cmd, path, func(ctx context.Context, p *project.Project) (bool, error) {
		sec := p.Section
		var ok bool
		if uni, ok = sec.Unis[id]; !ok {
			return false, fmt.Errorf("univariant line %d not found", id)
		}
		fl := cmd.Flags()
		if !fl.Changed("begin") && !fl.Changed("end") {
			sec.AutoConnect(uni)
			return true, nil
		}
		begin, end := uni.Begin, uni.End
		if fl.Changed("begin") {
			begin = uniBegin
		}
		if fl.Changed("end") {
			end = uniEnd
		}
		return true, sec.Connect(uni, begin, end)
	})
	if err != nil {
		return err
	}
	style.PrintSuccess(cmd.OutOrStdout(), "u%d %s to %s", uni.ID, endLabel(uni.Begin), endLabel(uni.End))
	return nil
}

type uniRow struct {
	ID     int    `json:"id"`
	Label  string `json:"label"`
	Points int    `json:"points"`
	Used   int    `json:"used"`
	Begin  int    `json:"begin"`
	End    int    `json:"end"`
	Manual bool   `json:"manual"`
}

func runUniLs(cmd *cobra.Command, args []string) error {
	p, err := project.Load(projectPath(args[0]))
	if err != nil {
		return err
	}
	sec := p.Section
	rows := make([]uniRow, 0, len(sec.Unis))
	for _, id := range sec.UniIDs() {
		u := sec.Unis[id]
		rows = append(rows, uniRow{
			ID: id, Label: u.Label(sec.Excess), Points: len(u.X), Used: len(u.Used()),
			Begin: u.Begin, End: u.End, Manual: u.Manual,
		})
	}

	w := cmd.OutOrStdout()
	if uniJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	if len(rows) == 0 {
		fmt.Fprintf(w, "%s No univariant lines\n", style.Dim.Render("○"))
		return nil
	}
	tbl := style.NewTable(
		style.Column{Name: "ID", Align: style.AlignRight},
		style.Column{Name: "PHASES"},
		style.Column{Name: "POINTS", Align: style.AlignRight},
		style.Column{Name: "BEGIN", Align: style.AlignRight},
		style.Column{Name: "END", Align: style.AlignRight},
		style.Column{Name: "", Render: ui.RenderStatus},
	)
	for _, r := range rows {
		tbl.AddRow(fmt.Sprintf("u%d", r.ID), r.Label, fmt.Sprintf("%d/%d", r.Used, r.Points),
			endLabel(r.Begin), endLabel(r.End), status(r.Manual))
	}
	fmt.Fprint(w, tbl.Render())
	return nil
}
