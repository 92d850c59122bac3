// Package cmd implements the psb command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/petrolab/psb/internal/config"
	"github.com/petrolab/psb/internal/logging"
	"github.com/petrolab/psb/internal/style"
	"github.com/petrolab/psb/internal/ui"
)

// Command groups shown in help output.
const (
	GroupProject = "project"
	GroupBuild   = "build"
	GroupExplore = "explore"
	GroupDiag    = "diag"
)

// Persistent flags
var (
	workdirFlag   string
	configFlag    string
	verboseFlag   bool
	origwdFlag    bool
	toleranceFlag float64
)

var (
	cfg    = config.Defaults()
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "psb",
	Short: "Pseudosection builder and explorer for THERMOCALC",
	Long: `psb drives THERMOCALC to construct P-T, T-X and P-X pseudosections.

Invariant points and univariant lines are calculated into a project file
(.psb). From the project psb constructs the divariant fields, grids phase
compositions over them and exports the results as drawpd, Perple_X tab,
SQLite, GeoJSON or plain tables.

Run psb inside a THERMOCALC working directory or pass --workdir.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: persistentPreRun,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupProject, Title: "Project Commands:"},
		&cobra.Group{ID: GroupBuild, Title: "Build Commands:"},
		&cobra.Group{ID: GroupExplore, Title: "Explore Commands:"},
		&cobra.Group{ID: GroupDiag, Title: "Diagnostics:"},
	)
	rootCmd.SetHelpCommandGroupID(GroupDiag)
	rootCmd.SetCompletionCommandGroupID(GroupDiag)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&workdirFlag, "workdir", "C", "", "THERMOCALC working directory (default: project file location)")
	pf.StringVar(&configFlag, "config", "", "Config file (default: <workdir>/psb.toml)")
	pf.BoolVarP(&verboseFlag, "verbose", "v", false, "Log every THERMOCALC run")
	pf.BoolVar(&origwdFlag, "origwd", false, "Use the working directory stored in the project file")
	pf.Float64Var(&toleranceFlag, "tolerance", 0, "Simplify area outlines with this tolerance")
}

func persistentPreRun(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load(configDir(), configFlag)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cmd.Flags().Changed("tolerance") {
		cfg.Tolerance = toleranceFlag
	}

	logger, err = logging.New(verboseFlag)
	if err != nil {
		return err
	}
	logger.Debug("config loaded", zap.Strings("source", cfg.Source))

	ui.InitTheme(cfg.Theme)
	return nil
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	_ = logger.Sync()
	if err == nil {
		return 0
	}
	if code, ok := exitCode(err); ok {
		return code
	}
	fmt.Fprintf(os.Stderr, "%s %v\n", style.Error.Render("Error:"), err)
	return 1
}
