package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petrolab/psb/internal/lock"
	"github.com/petrolab/psb/internal/style"
	"github.com/petrolab/psb/internal/tc"
	"github.com/petrolab/psb/internal/ui"
)

var checkCmd = &cobra.Command{
	Use:     "check [workdir]",
	GroupID: GroupProject,
	Short:   "Check a THERMOCALC working directory",
	Long: `Check that a directory is usable as a psb working directory.

psb looks for the THERMOCALC executable, tc-prefs.txt, the scriptfile and
the a-x file, validates the scriptfile settings psb depends on and runs
THERMOCALC once. Exits 1 when the check fails.

Examples:
  psb check               # Check the current directory
  psb check ~/tc/garnet   # Check another directory`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func argWorkdir(args []string) string {
	if len(args) > 0 {
		return resolvePath(args[0])
	}
	return configDir()
}

func runCheck(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	var st *tc.Settings
	err := withLock(cmd.Context(), cmd, argWorkdir(args), func(ctx context.Context) error {
		var err error
		st, err = tc.Init(ctx, argWorkdir(args), tcOptions())
		return err
	})
	if err != nil {
		fmt.Fprintf(out, "%s %s\n", style.ErrorPrefix, tc.Status(err))
		return exitWith(1)
	}

	fmt.Fprintln(out, st.String())
	fmt.Fprintf(out, "Dataset: %s\n", st.Dataset())
	fmt.Fprintf(out, "Excess: %s\n", orNone(st.Excess.Key()))
	fmt.Fprintf(out, "Phases: %s\n", st.Phases.Key())
	fmt.Fprintf(out, "T window: %g - %g °C\n", st.TRange[0], st.TRange[1])
	fmt.Fprintf(out, "p window: %g - %g kbar\n", st.PRange[0], st.PRange[1])
	for i, b := range st.Bulk {
		fmt.Fprintf(out, "Bulk %d: %s\n", i+1, strings.Join(b, " "))
	}
	if st.DRExe == "" {
		fmt.Fprintf(out, "%s drawpd not found\n", style.WarningPrefix)
	} else {
		fmt.Fprintf(out, "drawpd: %s\n", st.DRExe)
	}
	fmt.Fprintf(out, "Lock: %s\n", lock.New(st.Workdir).Status())
	fmt.Fprintf(out, "%s ready\n", ui.RenderPassIcon())
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
