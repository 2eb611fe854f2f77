// Package jobs runs periodic maintenance on a cron schedule.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one maintenance task. The context is cancelled when the runner stops.
type Job func(ctx context.Context) error

// Runner schedules jobs with cron expressions evaluated in the court's zone.
type Runner struct {
	cron   *cron.Cron
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	names map[string]cron.EntryID
}

// NewRunner builds a stopped runner.
func NewRunner(loc *time.Location, logger *slog.Logger) *Runner {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "jobs")
	adapter := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		names:  make(map[string]cron.EntryID),
	}
}

// Schedule registers job under name using a standard five field spec or a
// descriptor such as "@hourly".
func (r *Runner) Schedule(name, spec string, job Job) error {
	if name == "" || job == nil {
		return errors.New("jobs: name and job are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.names[name]; exists {
		return fmt.Errorf("jobs: %q is already scheduled", name)
	}

	logger := r.logger.With("job", name)
	id, err := r.cron.AddFunc(spec, func() {
		started := time.Now()
		if err := job(r.ctx); err != nil {
			logger.ErrorContext(r.ctx, "job failed", "error", err, "duration", time.Since(started))
			return
		}
		logger.DebugContext(r.ctx, "job finished", "duration", time.Since(started))
	})
	if err != nil {
		return fmt.Errorf("jobs: schedule %q with %q: %w", name, spec, err)
	}
	r.names[name] = id
	return nil
}

// Next reports when the named job runs next.
func (r *Runner) Next(name string) (time.Time, bool) {
	r.mu.Lock()
	id, ok := r.names[name]
	r.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return r.cron.Entry(id).Next, true
}

// Start begins running scheduled jobs in the background.
func (r *Runner) Start() {
	r.cron.Start()
}

// Stop prevents new runs, cancels running jobs and waits for them until ctx ends.
func (r *Runner) Stop(ctx context.Context) error {
	done := r.cron.Stop()
	r.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
