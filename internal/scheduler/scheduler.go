// Package scheduler provides cron-based scheduling for orderbot maintenance
// jobs, such as sweeping expired sessions.
package scheduler

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler runs recurring maintenance jobs on cron schedules.
type Scheduler struct {
	cron *cron.Cron
}

// New creates and starts a cron scheduler. Panicking jobs are recovered so
// one bad job cannot take down the others.
func New() *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task using a standard 5-field cron expression.
func (s *Scheduler) AddJob(expr string, task func()) error {
	if _, err := s.cron.AddFunc(expr, task); err != nil {
		return err
	}
	slog.Debug("Scheduler job added", "schedule", expr)
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	slog.Debug("Scheduler stopped")
}
