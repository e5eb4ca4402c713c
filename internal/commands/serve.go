package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"timesheet/internal/api"
	"timesheet/internal/logging"
	"timesheet/internal/reminder"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var withReminders bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API and the Discord bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		opts, err := a.apiOptions()
		if err != nil {
			return err
		}
		handler := api.NewRouter(*opts)

		var scheduler *reminder.Scheduler
		if withReminders {
			scheduler, err = reminder.NewScheduler(cfg.Reminder.Schedule, cfg.Timesheet.Location(), a.reminderJob())
			if err != nil {
				return err
			}
		}

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return api.Serve(ctx, cfg.Server.Address, handler, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)
		})
		if a.discord != nil {
			g.Go(func() error {
				if err := a.discord.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
		}
		if scheduler != nil {
			g.Go(func() error {
				scheduler.Start(ctx)
				return nil
			})
		}

		err = g.Wait()
		logging.Logger.Info("Event ID: APP_SHUTDOWN, Description: Application shutdown complete")
		return err
	},
}

func init() {
	serveCmd.Flags().BoolVar(&withReminders, "with-reminders", false, "also run the reminder schedule in this process")
}
