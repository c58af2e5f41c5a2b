package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newhook/testrun/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage history database migrations",
	Long:  `Manage schema migrations of the local run history database.`,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrateStatus,
}

var migrateRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Rollback the last migration",
	Long:  `Rollback the most recently applied migration. Pending migrations are applied again the next time the history is opened.`,
	Args:  cobra.NoArgs,
	RunE:  runMigrateRollback,
}

func init() {
	migrateCmd.AddCommand(migrateStatusCmd)
	migrateCmd.AddCommand(migrateRollbackCmd)
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	ctx := GetContext()
	history, err := openHistoryForRead()
	if err != nil {
		return err
	}
	defer history.Close()

	versions, err := db.MigrationStatus(ctx, history.DB)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(versions) == 0 {
		fmt.Fprintln(out, "No migrations applied.")
		return nil
	}
	fmt.Fprintf(out, "Applied migrations (%d):\n", len(versions))
	for _, version := range versions {
		fmt.Fprintf(out, "  %s\n", version)
	}
	return nil
}

func runMigrateRollback(cmd *cobra.Command, args []string) error {
	ctx := GetContext()
	history, err := openHistoryForRead()
	if err != nil {
		return err
	}
	defer history.Close()

	if err := db.RollbackMigration(ctx, history.DB); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Migration rolled back successfully.")
	return nil
}
