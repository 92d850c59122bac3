package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petrolab/psb/internal/explorer"
	"github.com/petrolab/psb/internal/expr"
	"github.com/petrolab/psb/internal/util"
)

// writeOutput runs write against stdout, or atomically against out when
// given.
func writeOutput(cmd *cobra.Command, out string, write func(io.Writer) error) error {
	if out == "" || out == "-" {
		return write(cmd.OutOrStdout())
	}
	return util.AtomicWrite(resolvePath(out), 0o644, write)
}

// parseWhich parses a comma separated list of inv, uni and grid.
func parseWhich(s string) (explorer.Which, error) {
	var w explorer.Which
	for _, part := range strings.Split(s, ",") {
		switch strings.TrimSpace(part) {
		case "all":
			w |= explorer.FromAll
		case "inv":
			w |= explorer.FromInv
		case "uni":
			w |= explorer.FromUni
		case "grid":
			w |= explorer.FromGrid
		case "":
		default:
			return 0, fmt.Errorf("invalid data source %q (want inv, uni, grid or all)", part)
		}
	}
	if w == 0 {
		return 0, fmt.Errorf("no data source given")
	}
	return w, nil
}

// comp is a phase and an expression of its variables.
type comp struct {
	phase string
	expr  *expr.Expr
}

// parseComp parses "phase:expression".
func parseComp(s string) (comp, error) {
	ph, src, ok := strings.Cut(s, ":")
	ph = strings.TrimSpace(ph)
	if !ok || ph == "" || strings.TrimSpace(src) == "" {
		return comp{}, fmt.Errorf("invalid composition %q (want phase:expression)", s)
	}
	ex, err := expr.Parse(src)
	if err != nil {
		return comp{}, fmt.Errorf("composition %q: %w", s, err)
	}
	return comp{phase: ph, expr: ex}, nil
}

// checkDataKey fails when no calculation holds data for ph.
func checkDataKey(e *explorer.Explorer, ph string) error {
	if _, ok := e.DataKeys()[ph]; !ok {
		return fmt.Errorf("no data for %q (see psb vars)", ph)
	}
	return nil
}
