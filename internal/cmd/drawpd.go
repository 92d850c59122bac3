package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petrolab/psb/internal/calclog"
	"github.com/petrolab/psb/internal/explorer"
	"github.com/petrolab/psb/internal/export"
	"github.com/petrolab/psb/internal/style"
)

var drawpdAreas bool

var drawpdCmd = &cobra.Command{
	Use:     "drawpd <project>",
	GroupID: GroupExplore,
	Short:   "Write the drawpd file and run drawpd",
	Long: `Write the invariant points and univariant lines of the project as a drawpd
input file in the working directory and run drawpd when it is installed.

With --areas the constructed fields are added to the file and their
assemblages written to assemblages.txt.

Examples:
  psb drawpd garnet
  psb drawpd garnet --areas`,
	Args: cobra.ExactArgs(1),
	RunE: runDrawpd,
}

func init() {
	drawpdCmd.Flags().BoolVarP(&drawpdAreas, "areas", "a", false, "Include areas and write assemblages")
	rootCmd.AddCommand(drawpdCmd)
}

func runDrawpd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dir, err := explorerDir(args)
	if err != nil {
		return err
	}
	var e *explorer.Explorer
	var out string
	err = withLock(ctx, cmd, dir, func(ctx context.Context) error {
		var err error
		if e, err = openExplorer(ctx, cmd, args); err != nil {
			return err
		}
		s := e.Sections[0]
		out, err = export.WriteDrawpd(ctx, e.Settings, s.Project.Section, s.Areas, drawpdAreas)
		return err
	})
	if err != nil {
		return err
	}
	s := e.Sections[0]
	logEvent(eventDir(s.Project), calclog.EventDrawpd, s.Project.Name, e.Settings.DrawpdFile())

	w := cmd.OutOrStdout()
	style.PrintSuccess(w, "Wrote %s", e.Settings.DrawpdFile())
	if e.Settings.DRExe == "" {
		style.PrintWarning(w, "drawpd not found in %s, file not processed", e.Settings.Workdir)
		return nil
	}
	fmt.Fprint(w, out)
	return nil
}
