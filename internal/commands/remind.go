package commands

import (
	"os"
	"os/signal"
	"syscall"

	"timesheet/internal/reminder"

	"github.com/spf13/cobra"
)

var remindOnce bool

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Send the fill and approval reminders",
	Long: `remind runs the reminder sweeps on the configured cron schedule until it is
stopped. With --once both sweeps run a single time and the command exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		job := a.reminderJob()
		if remindOnce {
			job.Run(ctx)
			return nil
		}

		scheduler, err := reminder.NewScheduler(cfg.Reminder.Schedule, cfg.Timesheet.Location(), job)
		if err != nil {
			return err
		}
		scheduler.Start(ctx)
		return nil
	},
}

func init() {
	remindCmd.Flags().BoolVar(&remindOnce, "once", false, "run the sweeps once and exit")
}
