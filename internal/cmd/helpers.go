package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/petrolab/psb/internal/calclog"
	"github.com/petrolab/psb/internal/explorer"
	"github.com/petrolab/psb/internal/project"
	"github.com/petrolab/psb/internal/tc"
)

// configDir is where the workdir config file is looked up.
func configDir() string {
	if workdirFlag != "" {
		return workdirFlag
	}
	return "."
}

// resolvePath makes relative paths relative to --workdir when given.
func resolvePath(path string) string {
	if workdirFlag == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workdirFlag, path)
}

// projectPath resolves a project argument and adds the .psb extension.
func projectPath(arg string) string {
	if filepath.Ext(arg) != project.Ext {
		arg += project.Ext
	}
	return resolvePath(arg)
}

func projectPaths(args []string) []string {
	paths := make([]string, len(args))
	for i, a := range args {
		paths[i] = projectPath(a)
	}
	return paths
}

func tcOptions() tc.Options {
	return tc.Options{
		Encoding:  cfg.Encoding,
		TCPattern: cfg.TCPattern,
		DRPattern: cfg.DRPattern,
		Timeout:   cfg.Timeout.Duration,
		Logger:    logger,
	}
}

// openExplorer loads the projects and initializes THERMOCALC under the
// workdir lock.
func openExplorer(ctx context.Context, cmd *cobra.Command, args []string) (*explorer.Explorer, error) {
	ps, err := explorer.Load(projectPaths(args), origwdFlag)
	if err != nil {
		return nil, err
	}
	var st *tc.Settings
	err = withLock(ctx, cmd, ps[0].Dir(origwdFlag), func(ctx context.Context) error {
		var err error
		st, err = ps[0].Settings(ctx, origwdFlag, tcOptions())
		if err != nil {
			return fmt.Errorf("initializing THERMOCALC: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return explorer.New(st, ps, explorer.Options{
		Tolerance: cfg.Tolerance,
		OrigWD:    origwdFlag,
		TC:        tcOptions(),
		Logger:    logger,
	}), nil
}

// explorerDir is the working directory the projects named by args share.
func explorerDir(args []string) (string, error) {
	p, err := project.Load(projectPath(args[0]))
	if err != nil {
		return "", err
	}
	return p.Dir(origwdFlag), nil
}

// commandLine renders the invoked command for lock files.
func commandLine(cmd *cobra.Command) string {
	return strings.TrimSpace(cmd.CommandPath())
}

// logEvent appends to the working directory event log. Failures are only
// reported at debug level.
func logEvent(workdir string, t calclog.EventType, subject, detail string) {
	if err := calclog.NewLogger(workdir).Log(t, subject, detail); err != nil {
		logger.Debug("event log", zap.Error(err))
	}
}

type lockedKey struct{}

// lockedDirs returns the working directories locked by ctx.
func lockedDirs(ctx context.Context) []string {
	dirs, _ := ctx.Value(lockedKey{}).([]string)
	return dirs
}

// withLock runs fn holding the working directory lock. The context passed
// to fn carries the lock, so nested withLock calls for the same directory
// run fn directly.
func withLock(ctx context.Context, cmd *cobra.Command, workdir string, fn func(ctx context.Context) error) error {
	if abs, err := filepath.Abs(workdir); err == nil {
		workdir = abs
	}
	held := lockedDirs(ctx)
	if slices.Contains(held, workdir) {
		return fn(ctx)
	}
	l, err := project.Lock(ctx, workdir, commandLine(cmd))
	if err != nil {
		return fmt.Errorf("locking %s: %w", workdir, err)
	}
	defer func() {
		if err := l.Release(); err != nil {
			logger.Warn("releasing lock", zap.Error(err))
		}
	}()
	return fn(context.WithValue(ctx, lockedKey{}, append(slices.Clip(held), workdir)))
}

// editProject loads a project, applies edit and saves the result, all
// under the lock of the project working directory. The grid and variances
// are dropped when edit reports a change.
func editProject(ctx context.Context, cmd *cobra.Command, path string, edit func(ctx context.Context, p *project.Project) (bool, error)) (*project.Project, error) {
	p, err := project.Load(path)
	if err != nil {
		return nil, err
	}
	err = withLock(ctx, cmd, p.Dir(origwdFlag), func(ctx context.Context) error {
		// reload, another process may have saved since
		cur, err := project.Load(path)
		if err != nil {
			return err
		}
		p = cur
		changed, err := edit(ctx, p)
		if err != nil || !changed {
			return err
		}
		p.Edited()
		return p.Save(path)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// eventDir is the working directory events of p are logged to.
func eventDir(p *project.Project) string {
	if origwdFlag || p.Path == "" {
		return p.Workdir
	}
	return filepath.Dir(p.Path)
}

func sortedStrings[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
