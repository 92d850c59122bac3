package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/petrolab/psb/internal/calclog"
	"github.com/petrolab/psb/internal/style"
)

var (
	logTail    int
	logType    string
	logSince   string
	logSubject string
	logJSON    bool
)

var logCmd = &cobra.Command{
	Use:     "log [workdir]",
	GroupID: GroupDiag,
	Short:   "Show the calculation event log",
	Long: `Show the events recorded in the working directory: project creation,
calculated points and lines, removals, gridding and exports.

Examples:
  psb log
  psb log -n 20 --type inv_calc
  psb log --since 2h --subject garnet`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLog,
}

func init() {
	logCmd.Flags().IntVarP(&logTail, "tail", "n", 0, "Show only the last n events")
	logCmd.Flags().StringVar(&logType, "type", "", "Only events of this type")
	logCmd.Flags().StringVar(&logSince, "since", "", "Only events newer than this duration, e.g. 1h")
	logCmd.Flags().StringVar(&logSubject, "subject", "", "Only events whose subject starts with this prefix")
	logCmd.Flags().BoolVar(&logJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(logCmd)
}

func runLog(cmd *cobra.Command, args []string) error {
	workdir := argWorkdir(args)
	filter := calclog.Filter{Type: calclog.EventType(logType), Subject: logSubject}
	if logSince != "" {
		d, err := time.ParseDuration(logSince)
		if err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}
		filter.Since = time.Now().Add(-d)
	}

	var events []calclog.Event
	var err error
	if logTail > 0 && filter == (calclog.Filter{}) {
		events, err = calclog.TailEvents(workdir, logTail)
	} else {
		events, err = calclog.ReadEvents(workdir)
		events = calclog.FilterEvents(events, filter)
		if logTail > 0 && len(events) > logTail {
			events = events[len(events)-logTail:]
		}
	}
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if logJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if events == nil {
			events = []calclog.Event{}
		}
		return enc.Encode(events)
	}
	if len(events) == 0 {
		fmt.Fprintf(w, "%s No events\n", style.Dim.Render("○"))
		return nil
	}
	for _, ev := range events {
		fmt.Fprintln(w, ev.String())
	}
	return nil
}
