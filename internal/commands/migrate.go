package commands

import (
	"fmt"

	"timesheet/internal/db"
	"timesheet/internal/logging"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := db.New(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer database.Close()

		if err := database.Migrate(cmd.Context()); err != nil {
			return fmt.Errorf("error executing migration: %w", err)
		}
		logging.Logger.Info("Event ID: DB_MIGRATED, Description: Migration completed successfully")
		return nil
	},
}
