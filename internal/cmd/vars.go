package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petrolab/psb/internal/ui"
)

var varsCmd = &cobra.Command{
	Use:     "vars <project>...",
	GroupID: GroupExplore,
	Short:   "List calculated phases and their variables",
	Long: `List the phases and end-members found in the calculations of the projects
together with the variables usable in expressions.

Examples:
  psb vars garnet
  psb vars garnet --phase g`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVars,
}

var varsPhase string

func init() {
	varsCmd.Flags().StringVarP(&varsPhase, "phase", "p", "", "Only show this phase and its end-members")
	rootCmd.AddCommand(varsCmd)
}

func runVars(cmd *cobra.Command, args []string) error {
	e, err := openExplorer(cmd.Context(), cmd, args)
	if err != nil {
		return err
	}
	keys := e.DataKeys()
	ems := e.Endmembers()
	w := cmd.OutOrStdout()

	if varsPhase != "" {
		if err := checkDataKey(e, varsPhase); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s %s\n", ui.RenderBold(varsPhase), strings.Join(keys[varsPhase], " "))
		for _, em := range ems[varsPhase] {
			k := fmt.Sprintf("%s(%s)", varsPhase, em)
			fmt.Fprintf(w, "  %s %s\n", ui.RenderAccent(k), strings.Join(keys[k], " "))
		}
		return nil
	}
	for _, k := range sortedStrings(keys) {
		fmt.Fprintf(w, "%s %s\n", ui.RenderBold(k), ui.RenderMuted(strings.Join(keys[k], " ")))
	}
	return nil
}
