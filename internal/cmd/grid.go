package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/petrolab/psb/internal/calclog"
	"github.com/petrolab/psb/internal/explorer"
	"github.com/petrolab/psb/internal/grid"
	"github.com/petrolab/psb/internal/style"
	"github.com/petrolab/psb/internal/tui/gridding"
	"github.com/petrolab/psb/internal/ui"
)

var (
	gridNX      int
	gridNY      int
	gridWorkers int
	gridPlain   bool
)

var gridCmd = &cobra.Command{
	Use:     "grid <project>...",
	GroupID: GroupBuild,
	Short:   "Calculate phase compositions on a grid",
	Long: `Calculate the stable assemblage at every grid point inside the constructed
fields. Points without solution are retried with the guesses of their
calculated neighbours. The grid is stored in the project files.

The grid size covers the window of all given sections; each section gets
its share. Defaults come from the [grid] config table.

Examples:
  psb grid garnet
  psb grid garnet --nx 80 --ny 60 --workers 4
  psb grid low high --plain`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGrid,
}

func init() {
	gridCmd.Flags().IntVar(&gridNX, "nx", 0, "Grid points along x (default: config)")
	gridCmd.Flags().IntVar(&gridNY, "ny", 0, "Grid points along y (default: config)")
	gridCmd.Flags().IntVarP(&gridWorkers, "workers", "j", 0, "Parallel THERMOCALC runs (default: config)")
	gridCmd.Flags().BoolVar(&gridPlain, "plain", false, "Print progress lines instead of the interactive view")
	rootCmd.AddCommand(gridCmd)
}

func runGrid(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dir, err := explorerDir(args)
	if err != nil {
		return err
	}

	nx, ny := cfg.GridSize()
	if gridNX > 0 {
		nx = gridNX
	}
	if gridNY > 0 {
		ny = gridNY
	}
	workers := cfg.Workers()
	if gridWorkers > 0 {
		workers = gridWorkers
	}

	var e *explorer.Explorer
	var fixLog []string
	err = withLock(ctx, cmd, dir, func(ctx context.Context) error {
		var err error
		if e, err = openExplorer(ctx, cmd, args); err != nil {
			return err
		}
		logEvent(e.Settings.Workdir, calclog.EventGridStart, e.Name(), fmt.Sprintf("%dx%d workers=%d", nx, ny, workers))
		if !gridPlain && ui.IsStderrTerminal() {
			fixLog, err = gridInteractive(ctx, cmd, e, nx, ny, workers)
		} else {
			fixLog, err = e.Calculate(ctx, nx, ny, workers, plainProgress(cmd.ErrOrStderr()))
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				// keep the points finished before the cancel
				if serr := e.Save(); serr != nil {
					logger.Warn("saving partial grid", zap.Error(serr))
				}
			}
			return err
		}
		return e.Save()
	})
	if err != nil {
		return err
	}
	workdir := e.Settings.Workdir

	w := cmd.OutOrStdout()
	for _, l := range fixLog {
		fmt.Fprintf(w, "%s %s\n", style.ArrowPrefix, l)
	}
	if len(fixLog) > 0 {
		logEvent(workdir, calclog.EventFix, e.Name(), fixLog[len(fixLog)-1])
	}
	for _, s := range e.Sections {
		d := s.Grid()
		ok, failed, _ := d.Counts()
		logEvent(eventDir(s.Project), calclog.EventGridDone, s.Project.Name, d.String())
		style.PrintSuccess(w, "%s gridded: %d ok, %d failed", filepath.Base(s.Project.Path), ok, failed)
	}
	return nil
}

type gridResult struct {
	log []string
	err error
}

// gridInteractive runs the calculation behind the bubbletea progress view.
// Quitting the view cancels the calculation.
func gridInteractive(ctx context.Context, cmd *cobra.Command, e *explorer.Explorer, nx, ny, workers int) ([]string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	names := make([]string, len(e.Sections))
	for i, s := range e.Sections {
		names[i] = filepath.Base(s.Project.Path)
	}
	m := gridding.New(fmt.Sprintf("Gridding %s %dx%d", e.Name(), nx, ny), names, cancel)
	p := tea.NewProgram(m, tea.WithOutput(cmd.ErrOrStderr()))

	done := make(chan gridResult, 1)
	go func() {
		log, err := e.Calculate(ctx, nx, ny, workers, func(ix int) grid.ProgressFunc {
			return func(n, total int) {
				p.Send(gridding.ProgressMsg{Section: ix, Done: n, Total: total})
			}
		})
		done <- gridResult{log: log, err: err}
		p.Send(gridding.DoneMsg{Log: log, Err: err})
	}()

	final, runErr := p.Run()
	if runErr != nil {
		cancel()
	}
	res := <-done
	if runErr != nil {
		return nil, fmt.Errorf("progress view: %w", runErr)
	}
	if fm, ok := final.(gridding.Model); ok && fm.Cancelled() {
		return res.log, fmt.Errorf("gridding cancelled: %w", context.Canceled)
	}
	return res.log, res.err
}

// plainProgress prints a line per section every tenth of the points.
func plainProgress(w io.Writer) func(ix int) grid.ProgressFunc {
	var mu sync.Mutex
	last := make(map[int]int)
	return func(ix int) grid.ProgressFunc {
		return func(n, total int) {
			if total <= 0 {
				return
			}
			step := n * 10 / total
			mu.Lock()
			defer mu.Unlock()
			if prev, ok := last[ix]; ok && prev >= step {
				return
			}
			last[ix] = step
			fmt.Fprintf(w, "section %d: %d/%d\n", ix+1, n, total)
		}
	}
}
