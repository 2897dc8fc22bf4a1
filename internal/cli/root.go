// Package cli wires the replication engine to a cobra command tree.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/BartekS5/ridsync/internal/config"
	"github.com/BartekS5/ridsync/pkg/logger"
)

// app carries process settings from the root pre-run to the sub-commands.
type app struct {
	settings *config.Settings
}

func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "ridsync",
		Short: "ridsync - row-id watermark table replication",
		Long: `ridsync copies rows from a source table to a destination table, using a
monotonically increasing row-id column as the progress watermark. Supported
databases are PostgreSQL, MySQL, SQL Server and SQLite.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.LoadSettings()
			if err != nil {
				return err
			}
			if err := logger.InitLogger(settings.LogFile, settings.LogLevel); err != nil {
				return err
			}
			a.settings = settings
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.AddCommand(newReplicateCmd(a), newWatermarksCmd(a), newHistoryCmd(a))

	return rootCmd
}

// Execute runs the command tree. The log file opened by the root pre-run is
// closed whether or not the command succeeds.
func Execute(ctx context.Context) error {
	return run(ctx, NewRootCmd())
}

func run(ctx context.Context, root *cobra.Command) error {
	defer logger.Close()
	return root.ExecuteContext(ctx)
}
