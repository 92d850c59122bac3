package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/petrolab/psb/internal/calclog"
	"github.com/petrolab/psb/internal/project"
	"github.com/petrolab/psb/internal/section"
	"github.com/petrolab/psb/internal/style"
	"github.com/petrolab/psb/internal/tc"
)

var (
	initKind   string
	initFixed  float64
	initXRange []float64
	initYRange []float64
	initForce  bool
)

var initCmd = &cobra.Command{
	Use:     "init <project>",
	GroupID: GroupProject,
	Short:   "Create a new project file",
	Long: `Create a new project file in a THERMOCALC working directory.

The working directory is the directory of the project file. The section
window defaults to the setdefTwindow and setdefPwindow scriptfile settings.
T-X and P-X sections need two setbulk lines and are calculated at a fixed
p (T-X) or T (P-X), by default the middle of the window.

Examples:
  psb init garnet                     # P-T section garnet.psb
  psb init garnet --xrange 450,750    # Narrower T window
  psb init gtx --kind tx --fixed 8    # T-X section at 8 kbar`,
	Args: cobra.ExactArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initKind, "kind", string(section.PT), "Section kind: pt, tx or px")
	initCmd.Flags().Float64Var(&initFixed, "fixed", 0, "Fixed p (tx) or T (px)")
	initCmd.Flags().Float64SliceVar(&initXRange, "xrange", nil, "x axis window as min,max")
	initCmd.Flags().Float64SliceVar(&initYRange, "yrange", nil, "y axis window as min,max")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing project")
	rootCmd.AddCommand(initCmd)
}

func parseRange(name string, v []float64) ([2]float64, error) {
	if len(v) != 2 || v[0] >= v[1] {
		return [2]float64{}, fmt.Errorf("--%s needs min,max with min < max", name)
	}
	return [2]float64{v[0], v[1]}, nil
}

func runInit(cmd *cobra.Command, args []string) error {
	kind, err := section.ParseKind(initKind)
	if err != nil {
		return err
	}
	path := projectPath(args[0])
	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	var st *tc.Settings
	err = withLock(cmd.Context(), cmd, filepath.Dir(path), func(ctx context.Context) error {
		var err error
		if st, err = tc.Init(ctx, filepath.Dir(path), tcOptions()); err != nil {
			return fmt.Errorf("initializing THERMOCALC: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	p, err := project.New(st, kind)
	if err != nil {
		return err
	}

	sec := p.Section
	if cmd.Flags().Changed("xrange") {
		if sec.XRange, err = parseRange("xrange", initXRange); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("yrange") {
		if sec.YRange, err = parseRange("yrange", initYRange); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("fixed") {
		if kind == section.PT {
			return fmt.Errorf("--fixed applies to tx and px sections only")
		}
		sec.Fixed = initFixed
	}

	if err := p.Save(path); err != nil {
		return err
	}
	logEvent(st.Workdir, calclog.EventInit, filepath.Base(path), string(kind))
	style.PrintSuccess(cmd.OutOrStdout(), "Created %s: %s", path, sec)
	return nil
}
