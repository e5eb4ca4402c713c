package reminder

import (
	"context"
	"fmt"
	"time"

	"timesheet/internal/logging"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the job on a standard five field cron schedule.
type Scheduler struct {
	cron *cron.Cron
	job  *Job
}

func NewScheduler(schedule string, location *time.Location, job *Job) (*Scheduler, error) {
	if location == nil {
		location = time.UTC
	}
	logger := cron.PrintfLogger(logging.Logger)
	c := cron.New(
		cron.WithLocation(location),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	s := &Scheduler{cron: c, job: job}
	if _, err := c.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) tick() {
	logging.Logger.Info("Event ID: REMINDER_TICK, Description: Running reminder sweeps")
	s.job.Run(context.Background())
}

// Next is the time of the next run after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Schedule.Next(t)
}

// Start runs the schedule until ctx is done and waits for a running sweep
// to finish.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	logging.Logger.Infof("Event ID: REMINDER_SCHEDULER_START, Description: Next run at %s", s.Next(time.Now()))
	<-ctx.Done()
	<-s.cron.Stop().Done()
	logging.Logger.Info("Event ID: REMINDER_SCHEDULER_STOP, Description: Scheduler stopped")
}
