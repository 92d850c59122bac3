package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petrolab/psb/internal/section"
	"github.com/petrolab/psb/internal/style"
	"github.com/petrolab/psb/internal/topology"
	"github.com/petrolab/psb/internal/ui"
)

var areasCmd = &cobra.Command{
	Use:     "areas <project>...",
	GroupID: GroupExplore,
	Short:   "List constructed areas and topology problems",
	Long: `List the divariant fields constructed from the univariant lines of each
section: closed areas, areas crossing the section window (partial), shapes
that could not be built and topology problems.

Examples:
  psb areas garnet`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAreas,
}

func init() {
	rootCmd.AddCommand(areasCmd)
}

func runAreas(cmd *cobra.Command, args []string) error {
	e, err := openExplorer(cmd.Context(), cmd, args)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	excess := e.Excess()
	for _, s := range e.Sections {
		fmt.Fprintln(w, ui.RenderCategory(s.Project.Path))
		tbl := style.NewTable(
			style.Column{Name: "FIELD"},
			style.Column{Name: "TYPE", Render: ui.RenderMuted},
			style.Column{Name: "EDGES"},
			style.Column{Name: "VERTICES"},
		)
		add := func(areas []topology.Area, kind string) {
			for _, a := range areas {
				tbl.AddRow(a.Label(excess), kind, edgeList(a.Edges), vertexList(a.Vertices, s.Project.Section.Invs))
			}
		}
		add(s.Areas.Full, "full")
		add(s.Areas.Partial, "partial")
		if tbl.Len() == 0 {
			fmt.Fprintf(w, "%s No areas\n", style.Dim.Render("○"))
		} else {
			fmt.Fprint(w, tbl.Render())
		}
		for _, k := range sortedStrings(s.Shapes.Bad) {
			fmt.Fprintf(w, "  %s bad shape %s (%s)\n", ui.RenderFailIcon(), k, edgeList(s.Shapes.Bad[k]))
		}
		for _, k := range sortedStrings(s.Shapes.Tangled) {
			fmt.Fprintf(w, "  %s self-crossing boundary %s (%s), split at the crossings\n", ui.RenderWarnIcon(), k, edgeList(s.Shapes.Tangled[k]))
		}
		for _, l := range s.Areas.Log {
			fmt.Fprintf(w, "  %s %s\n", ui.RenderWarnIcon(), l)
		}
	}
	return nil
}

// vertexList renders vertex ids, free line ends as "*".
func vertexList(ids []int, invs map[int]*section.InvPoint) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		if _, ok := invs[id]; ok {
			parts[i] = fmt.Sprintf("i%d", id)
		} else {
			parts[i] = "*"
		}
	}
	return strings.Join(parts, " ")
}
