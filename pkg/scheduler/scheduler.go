// ABOUTME: Cron scheduler for repeated digest runs
// ABOUTME: Skips a tick while the previous run is still going and logs through the app logger

package scheduler

import (
	"context"
	"fmt"
	"time"

	"digests-builder/core/interfaces"
	"github.com/robfig/cron/v3"
)

// Scheduler runs one job on a cron schedule
type Scheduler struct {
	cron    *cron.Cron
	entryID cron.EntryID
	logger  interfaces.Logger
}

// New parses a standard five-field cron expression, or a descriptor such as
// "@hourly" or "@every 30m", and registers job on it
func New(spec string, job func(), logger interfaces.Logger, loc *time.Location) (*Scheduler, error) {
	logger = interfaces.OrNop(logger)
	if loc == nil {
		loc = time.Local
	}

	adapter := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(adapter),
		cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
	)

	entryID, err := c.AddFunc(spec, job)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	return &Scheduler{cron: c, entryID: entryID, logger: logger}, nil
}

// Validate reports whether spec is a schedule New would accept
func Validate(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// Start starts the scheduler in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started", map[string]interface{}{
		"next_run": s.Next().Format(time.RFC3339),
	})
}

// Next returns the time of the next run, zero before Start
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entryID).Next
}

// Stop stops scheduling and returns a context done once a running job ends
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// cronLogger adapts interfaces.Logger to cron's key/value logger
type cronLogger struct {
	logger interfaces.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, fields(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	f := fields(keysAndValues)
	f["error"] = err.Error()
	l.logger.Error("cron: "+msg, f)
}

func fields(keysAndValues []interface{}) map[string]interface{} {
	f := make(map[string]interface{}, len(keysAndValues)/2+1)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return f
}
