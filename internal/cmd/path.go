package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/petrolab/psb/internal/calclog"
	"github.com/petrolab/psb/internal/export"
	"github.com/petrolab/psb/internal/expr"
	"github.com/petrolab/psb/internal/style"
)

var (
	pathXs   []float64
	pathYs   []float64
	pathN    int
	pathExpr string
	pathOut  string
)

var pathCmd = &cobra.Command{
	Use:     "path <project>... <phase>",
	GroupID: GroupExplore,
	Short:   "Calculate a phase variable along a path",
	Long: `Calculate the stable assemblage at points resampled along a polyline
through the diagram and write the expression for phase at each of them.
Starting guesses come from the nearest grid calculation, so the projects
must be gridded.

Examples:
  psb path garnet g -e 'x' --x 500,600,650 --y 4,7,9 -n 50`,
	Args: cobra.MinimumNArgs(2),
	RunE: runPath,
}

func init() {
	pathCmd.Flags().Float64SliceVar(&pathXs, "x", nil, "Path vertices along x (T for P-T sections)")
	pathCmd.Flags().Float64SliceVar(&pathYs, "y", nil, "Path vertices along y")
	pathCmd.Flags().IntVarP(&pathN, "points", "n", 20, "Number of points along the path")
	pathCmd.Flags().StringVarP(&pathExpr, "expr", "e", "", "Expression of phase variables (required)")
	pathCmd.Flags().StringVarP(&pathOut, "out", "o", "", "Output file (default: stdout)")
	_ = pathCmd.MarkFlagRequired("expr")
	_ = pathCmd.MarkFlagRequired("x")
	_ = pathCmd.MarkFlagRequired("y")
	rootCmd.AddCommand(pathCmd)
}

func runPath(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ph := args[len(args)-1]
	ex, err := expr.Parse(pathExpr)
	if err != nil {
		return err
	}
	e, err := openExplorer(ctx, cmd, args[:len(args)-1])
	if err != nil {
		return err
	}
	p, err := export.CollectPath(ctx, e, pathXs, pathYs, pathN)
	if err != nil {
		return err
	}
	kind := e.Kind()
	err = writeOutput(cmd, pathOut, func(w io.Writer) error {
		return export.WritePath(w, kind.XVar(), kind.YVar(), p, ph, ex)
	})
	if err != nil {
		return err
	}
	if p.Failed > 0 {
		style.PrintWarning(cmd.ErrOrStderr(), "%d of %d path points without solution", p.Failed, pathN)
	}
	if pathOut != "" {
		logEvent(e.Settings.Workdir, calclog.EventExport, e.Name(), fmt.Sprintf("path %s(%s) -> %s", ph, ex, pathOut))
	}
	return nil
}
