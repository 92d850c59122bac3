package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petrolab/psb/internal/calclog"
	"github.com/petrolab/psb/internal/export"
	"github.com/petrolab/psb/internal/interp"
)

var (
	tabComps  []string
	tabOut    string
	tabSmooth float64
	tabNX     int
	tabNY     int
)

var tabCmd = &cobra.Command{
	Use:     "tab <project>...",
	GroupID: GroupExplore,
	Short:   "Export interpolated compositions as a Perple_X tab file",
	Long: `Interpolate one or more phase expressions over the common grid and write
them as a Perple_X tab file. Cells outside every field are written as nan.

Examples:
  psb tab garnet --comp 'g:x' --comp 'g:mode' --out garnet.tab`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTab,
}

func init() {
	tabCmd.Flags().StringArrayVar(&tabComps, "comp", nil, "phase:expression to export (repeatable, required)")
	tabCmd.Flags().StringVarP(&tabOut, "out", "o", "", "Output file (default: <name>.tab)")
	tabCmd.Flags().Float64Var(&tabSmooth, "smooth", 0, "Interpolation smoothing")
	tabCmd.Flags().IntVar(&tabNX, "nx", 0, "Grid points along x (default: section grids)")
	tabCmd.Flags().IntVar(&tabNY, "ny", 0, "Grid points along y (default: section grids)")
	_ = tabCmd.MarkFlagRequired("comp")
	rootCmd.AddCommand(tabCmd)
}

func runTab(cmd *cobra.Command, args []string) error {
	comps := make([]comp, 0, len(tabComps))
	for _, s := range tabComps {
		c, err := parseComp(s)
		if err != nil {
			return err
		}
		comps = append(comps, c)
	}
	e, err := openExplorer(cmd.Context(), cmd, args)
	if err != nil {
		return err
	}

	fields := make([]*interp.Field, 0, len(comps))
	labels := make([]string, 0, len(comps))
	for _, c := range comps {
		if err := checkDataKey(e, c.phase); err != nil {
			return err
		}
		f, err := interp.Gridded(e, c.phase, c.expr, interp.Options{Smooth: tabSmooth, NX: tabNX, NY: tabNY})
		if err != nil {
			return err
		}
		fields = append(fields, f)
		labels = append(labels, f.Label())
	}

	out := tabOut
	if out == "" {
		out = e.Name() + ".tab"
	}
	err = writeOutput(cmd, out, func(w io.Writer) error {
		return export.Tab(w, e.Name(), e.Kind(), fields)
	})
	if err != nil {
		return err
	}
	logEvent(e.Settings.Workdir, calclog.EventExport, e.Name(), fmt.Sprintf("tab %s -> %s", strings.Join(labels, " "), out))
	if out != "-" {
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", resolvePath(out))
	}
	return nil
}
