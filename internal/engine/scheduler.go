package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the engine on a fixed interval. A tick that arrives while
// the previous run is still going is skipped.
type Scheduler struct {
	cron   *cron.Cron
	engine *Engine
	log    *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a new Scheduler that runs the engine every interval.
func NewScheduler(eng *Engine, interval time.Duration, log *slog.Logger) (*Scheduler, error) {
	if interval < time.Second {
		return nil, fmt.Errorf("schedule interval %s is below one second", interval)
	}
	if log == nil {
		log = slog.Default()
	}
	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger{log}),
		cron.SkipIfStillRunning(cronLogger{log}),
	))

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:   c,
		engine: eng,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}

	if _, err := c.AddFunc("@every "+interval.String(), s.runOnce); err != nil {
		cancel()
		return nil, err
	}

	return s, nil
}

// Start begins running scheduled runs.
func (s *Scheduler) Start() {
	s.log.Info("scheduler started")
	s.cron.Start()
}

// Stop cancels any in-flight run and stops the scheduler. The returned
// context is done once running jobs have returned.
func (s *Scheduler) Stop() context.Context {
	s.log.Info("scheduler stopping")
	s.cancel()
	return s.cron.Stop()
}

// Entries returns the registered cron entries for inspection.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

// Next returns the time of the next scheduled run, or zero before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) runOnce() {
	s.log.Info("scheduled run starting")
	summary, err := s.engine.Run(s.ctx)
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.log.Warn("scheduled run skipped, another run is in progress")
	case err != nil:
		s.log.Error("scheduled run failed", "error", err)
	case summary.AllCollectorsFailed():
		s.log.Error("scheduled run: all collectors failed", "run_id", summary.RunID)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
