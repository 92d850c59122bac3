package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/petrolab/psb/internal/calclog"
	"github.com/petrolab/psb/internal/export"
	"github.com/petrolab/psb/internal/expr"
	"github.com/petrolab/psb/internal/interp"
)

var (
	isoExpr    string
	isoOut     string
	isoWhich   string
	isoSmooth  float64
	isoRecords bool
	isoNX      int
	isoNY      int
)

var isoCmd = &cobra.Command{
	Use:     "iso <project>... <phase>",
	GroupID: GroupExplore,
	Short:   "Interpolate a phase variable over the diagram",
	Long: `Evaluate an expression of phase variables at the invariant points, along
the univariant lines and at the grid points of every field, interpolate it
over the common grid and write x, y, value rows.

With --records the collected values are written per field without
interpolation.

Examples:
  psb iso garnet g -e 'x'
  psb iso garnet g -e 'mode' --which grid --smooth 0.1 --out g-mode.txt
  psb iso low high bi -e 'x*100' --records`,
	Args: cobra.MinimumNArgs(2),
	RunE: runIso,
}

func init() {
	isoCmd.Flags().StringVarP(&isoExpr, "expr", "e", "", "Expression of phase variables (required)")
	isoCmd.Flags().StringVarP(&isoOut, "out", "o", "", "Output file (default: stdout)")
	isoCmd.Flags().StringVar(&isoWhich, "which", "all", "Data sources: inv, uni, grid or all")
	isoCmd.Flags().Float64Var(&isoSmooth, "smooth", 0, "Interpolation smoothing")
	isoCmd.Flags().BoolVar(&isoRecords, "records", false, "Write collected values without interpolation")
	isoCmd.Flags().IntVar(&isoNX, "nx", 0, "Output grid points along x (default: section grids)")
	isoCmd.Flags().IntVar(&isoNY, "ny", 0, "Output grid points along y (default: section grids)")
	_ = isoCmd.MarkFlagRequired("expr")
	rootCmd.AddCommand(isoCmd)
}

func runIso(cmd *cobra.Command, args []string) error {
	ph := args[len(args)-1]
	ex, err := expr.Parse(isoExpr)
	if err != nil {
		return err
	}
	which, err := parseWhich(isoWhich)
	if err != nil {
		return err
	}
	e, err := openExplorer(cmd.Context(), cmd, args[:len(args)-1])
	if err != nil {
		return err
	}
	if err := checkDataKey(e, ph); err != nil {
		return err
	}

	var write func(io.Writer) error
	if isoRecords {
		recs, _, _, err := e.Records(ph, ex, which)
		if err != nil {
			return err
		}
		write = func(w io.Writer) error {
			return export.Records(w, e.Kind(), fmt.Sprintf("%s(%s)", ph, ex), recs)
		}
	} else {
		f, err := interp.Gridded(e, ph, ex, interp.Options{Which: which, Smooth: isoSmooth, NX: isoNX, NY: isoNY})
		if err != nil {
			return err
		}
		write = func(w io.Writer) error { return export.Table(w, e.Kind(), f) }
	}
	if err := writeOutput(cmd, isoOut, write); err != nil {
		return err
	}
	if isoOut != "" {
		logEvent(e.Settings.Workdir, calclog.EventExport, e.Name(), fmt.Sprintf("iso %s(%s) -> %s", ph, ex, isoOut))
	}
	return nil
}
