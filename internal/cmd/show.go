package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/petrolab/psb/internal/explorer"
	"github.com/petrolab/psb/internal/phase"
	"github.com/petrolab/psb/internal/style"
	"github.com/petrolab/psb/internal/ui"
)

var (
	showOutput   string
	showVariance bool
	showNoPager  bool
)

var showCmd = &cobra.Command{
	Use:     "show <project>...",
	GroupID: GroupExplore,
	Short:   "Summarize projects and their areas",
	Long: `Summarize one or more project files sharing a working directory.

Output formats:
  text     - settings, sections and a table of areas (default)
  md       - the same as a markdown report rendered for the terminal
  json     - machine readable report
  yaml     - machine readable report
  geojson  - area polygons as a GeoJSON FeatureCollection

With --variance the variance of every area is calculated with THERMOCALC
and stored in the project files.

Examples:
  psb show garnet
  psb show garnet garnet-hp -o md
  psb show garnet -o geojson > areas.geojson`,
	Args: cobra.MinimumNArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "text", "Output format: text, md, json, yaml or geojson")
	showCmd.Flags().BoolVar(&showVariance, "variance", false, "Calculate area variances")
	showCmd.Flags().BoolVar(&showNoPager, "no-pager", false, "Do not pipe text output to a pager")
	rootCmd.AddCommand(showCmd)
}

type sectionReport struct {
	File    string     `json:"file" yaml:"file"`
	XRange  [2]float64 `json:"xrange" yaml:"xrange"`
	YRange  [2]float64 `json:"yrange" yaml:"yrange"`
	Fixed   float64    `json:"fixed,omitempty" yaml:"fixed,omitempty"`
	Invs    int        `json:"invpoints" yaml:"invpoints"`
	Unis    int        `json:"unilines" yaml:"unilines"`
	Partial int        `json:"partial" yaml:"partial"`
	Grid    string     `json:"grid,omitempty" yaml:"grid,omitempty"`
}

type areaReport struct {
	Key      string  `json:"key" yaml:"key"`
	Label    string  `json:"label" yaml:"label"`
	Edges    []int   `json:"edges" yaml:"edges,flow"`
	Area     float64 `json:"area" yaml:"area"`
	Variance *int    `json:"variance,omitempty" yaml:"variance,omitempty"`
}

type report struct {
	Name      string           `json:"name" yaml:"name"`
	Kind      string           `json:"kind" yaml:"kind"`
	XVar      string           `json:"xvar" yaml:"xvar"`
	YVar      string           `json:"yvar" yaml:"yvar"`
	Workdir   string           `json:"workdir" yaml:"workdir"`
	TCVersion string           `json:"tcversion" yaml:"tcversion"`
	Excess    []string         `json:"excess" yaml:"excess,flow"`
	Sections  []sectionReport  `json:"sections" yaml:"sections"`
	Areas     []areaReport     `json:"areas" yaml:"areas"`
	Bad       map[string][]int `json:"bad,omitempty" yaml:"bad,omitempty"`
	Tangled   map[string][]int `json:"tangled,omitempty" yaml:"tangled,omitempty"`
	Log       []string         `json:"log,omitempty" yaml:"log,omitempty"`
}

func storedVariance(e *explorer.Explorer) map[string]int {
	out := make(map[string]int)
	for _, s := range e.Sections {
		for k, v := range s.Project.Variance {
			out[k] = v
		}
	}
	return out
}

func buildReport(e *explorer.Explorer, variance map[string]int) *report {
	r := &report{
		Name:      e.Name(),
		Kind:      string(e.Kind()),
		XVar:      e.Kind().XVar(),
		YVar:      e.Kind().YVar(),
		Workdir:   e.Settings.Workdir,
		TCVersion: e.Settings.Version(),
		Excess:    e.Excess(),
		Log:       e.Log,
	}
	for _, s := range e.Sections {
		sec := s.Project.Section
		sr := sectionReport{
			File:    s.Project.Path,
			XRange:  sec.XRange,
			YRange:  sec.YRange,
			Fixed:   sec.Fixed,
			Invs:    len(sec.Invs),
			Unis:    len(sec.Unis),
			Partial: len(s.Areas.Partial),
		}
		if g := s.Grid(); g != nil {
			sr.Grid = g.String()
		}
		r.Sections = append(r.Sections, sr)
	}
	sh := e.Shapes()
	for _, k := range sh.Keys() {
		s := sh.Shapes[k]
		ar := areaReport{Key: k, Label: s.Key.Minus(e.Excess()).Key(), Edges: s.Edges, Area: s.Area()}
		if v, ok := variance[k]; ok {
			ar.Variance = &v
		}
		r.Areas = append(r.Areas, ar)
	}
	if len(sh.Bad) > 0 {
		r.Bad = sh.Bad
	}
	if len(sh.Tangled) > 0 {
		r.Tangled = sh.Tangled
	}
	return r
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	var e *explorer.Explorer
	var variance map[string]int
	if showVariance {
		dir, err := explorerDir(args)
		if err != nil {
			return err
		}
		err = withLock(ctx, cmd, dir, func(ctx context.Context) error {
			var err error
			if e, err = openExplorer(ctx, cmd, args); err != nil {
				return err
			}
			if variance, err = e.Variance(ctx); err != nil {
				return err
			}
			return e.Save()
		})
		if err != nil {
			return err
		}
	} else {
		var err error
		if e, err = openExplorer(ctx, cmd, args); err != nil {
			return err
		}
		variance = storedVariance(e)
	}

	w := cmd.OutOrStdout()
	r := buildReport(e, variance)
	switch showOutput {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case "geojson":
		data, err := json.MarshalIndent(e.Shapes().FeatureCollection(e.Excess(), variance), "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "md":
		_, err := fmt.Fprint(w, ui.RenderMarkdown(markdownReport(r)))
		return err
	case "text":
		var b strings.Builder
		writeTextReport(&b, e, r)
		return ui.Page(w, b.String(), showNoPager)
	}
	return fmt.Errorf("unknown output format %q", showOutput)
}

func writeTextReport(w io.Writer, e *explorer.Explorer, r *report) {
	fmt.Fprintln(w, e.String())
	fmt.Fprintln(w)
	if len(r.Areas) == 0 {
		fmt.Fprintf(w, "%s No areas\n", style.Dim.Render("○"))
	} else {
		fmt.Fprintln(w, ui.RenderCategory("Areas"))
		tbl := style.NewTable(
			style.Column{Name: "FIELD"},
			style.Column{Name: "EDGES"},
			style.Column{Name: "AREA", Align: style.AlignRight},
			style.Column{Name: "VAR", Align: style.AlignRight},
		)
		for _, a := range r.Areas {
			v := "-"
			if a.Variance != nil {
				v = fmt.Sprint(*a.Variance)
			}
			tbl.AddRow(a.Label, edgeList(a.Edges), fmt.Sprintf("%.4g", a.Area), v)
		}
		fmt.Fprint(w, tbl.Render())
	}
	writeProblems(w, r)
}

func writeProblems(w io.Writer, r *report) {
	for _, k := range sortedStrings(r.Bad) {
		style.PrintWarning(w, "bad shape %s (%s)", k, edgeList(r.Bad[k]))
	}
	for _, k := range sortedStrings(r.Tangled) {
		style.PrintWarning(w, "self-crossing boundary %s (%s), split at the crossings", k, edgeList(r.Tangled[k]))
	}
	for _, l := range r.Log {
		style.PrintWarning(w, "%s", l)
	}
}

func edgeList(edges []int) string {
	parts := make([]string, len(edges))
	for i, id := range edges {
		parts[i] = fmt.Sprintf("u%d", id)
	}
	return strings.Join(parts, " ")
}

func markdownReport(r *report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s (%s)\n\n", r.Name, strings.ToUpper(r.Kind))
	fmt.Fprintf(&b, "- Working directory: `%s`\n", r.Workdir)
	fmt.Fprintf(&b, "- THERMOCALC: %s\n", r.TCVersion)
	fmt.Fprintf(&b, "- Excess: %s\n\n", orNone(phase.Set(r.Excess).Key()))

	b.WriteString("## Sections\n\n")
	fmt.Fprintf(&b, "| File | %s | %s | Points | Lines | Grid |\n|---|---|---|---|---|---|\n", r.XVar, r.YVar)
	for _, s := range r.Sections {
		fmt.Fprintf(&b, "| %s | %g - %g | %g - %g | %d | %d | %s |\n",
			s.File, s.XRange[0], s.XRange[1], s.YRange[0], s.YRange[1], s.Invs, s.Unis, orNone(s.Grid))
	}

	b.WriteString("\n## Areas\n\n| Field | Edges | Variance |\n|---|---|---|\n")
	for _, a := range r.Areas {
		v := "-"
		if a.Variance != nil {
			v = fmt.Sprint(*a.Variance)
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", a.Label, edgeList(a.Edges), v)
	}
	if len(r.Bad) > 0 || len(r.Tangled) > 0 || len(r.Log) > 0 {
		b.WriteString("\n## Problems\n\n")
		for _, k := range sortedStrings(r.Bad) {
			fmt.Fprintf(&b, "- bad shape %s (%s)\n", k, edgeList(r.Bad[k]))
		}
		for _, k := range sortedStrings(r.Tangled) {
			fmt.Fprintf(&b, "- self-crossing boundary %s (%s)\n", k, edgeList(r.Tangled[k]))
		}
		for _, l := range r.Log {
			fmt.Fprintf(&b, "- %s\n", l)
		}
	}
	return b.String()
}
