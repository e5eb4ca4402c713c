package commands

import (
	"fmt"

	"timesheet/internal/config"
	"timesheet/internal/logging"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "timesheet",
	Short: "Timesheet service with approval workflow and chat reminders",
	Long: `timesheet runs the REST API for filling and approving project timesheets,
delivers notifications through Bot Framework and Discord, and sends the
scheduled fill and approval reminders.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		if err := godotenv.Load(); err != nil {
			fmt.Println("No .env file found")
		}

		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		logging.Init(cfg.Logging)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("timesheet %s (%s)\n", version, commit)
	},
}

// SetVersion sets the build information printed by the version command.
func SetVersion(v, c string) {
	version = v
	commit = c
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(remindCmd)
	rootCmd.AddCommand(versionCmd)
}
