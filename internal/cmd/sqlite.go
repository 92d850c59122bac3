package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petrolab/psb/internal/calclog"
	"github.com/petrolab/psb/internal/export"
	"github.com/petrolab/psb/internal/style"
)

var sqliteCmd = &cobra.Command{
	Use:     "sqlite <project>... <database>",
	GroupID: GroupExplore,
	Short:   "Export grid calculations to a SQLite database",
	Long: `Write every grid point of the given sections with its status, field and
calculated phase variables into a new SQLite database. An existing database
file is replaced.

Examples:
  psb sqlite garnet garnet.db
  sqlite3 garnet.db 'SELECT x, y, value FROM points JOIN "values" ON id = point_id WHERE phase = "g" AND var = "x"'`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSQLite,
}

func init() {
	rootCmd.AddCommand(sqliteCmd)
}

func runSQLite(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	db := resolvePath(args[len(args)-1])
	e, err := openExplorer(ctx, cmd, args[:len(args)-1])
	if err != nil {
		return err
	}
	n, err := export.SQLite(ctx, db, e)
	if err != nil {
		return err
	}
	logEvent(e.Settings.Workdir, calclog.EventExport, e.Name(), fmt.Sprintf("sqlite %d points -> %s", n, db))
	style.PrintSuccess(cmd.OutOrStdout(), "Wrote %d points to %s", n, db)
	return nil
}
