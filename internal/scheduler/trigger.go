package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Trigger runs a scheduling cycle on a cron expression. A tick that fires
// while the previous cycle is still running is skipped.
type Trigger struct {
	scheduler *Scheduler
	expr      string
	timeout   time.Duration
	logger    *slog.Logger
}

func NewTrigger(scheduler *Scheduler, expr string, timeout time.Duration, logger *slog.Logger) *Trigger {
	return &Trigger{
		scheduler: scheduler,
		expr:      expr,
		timeout:   timeout,
		logger:    logger.With("component", "trigger"),
	}
}

// Start blocks until ctx is cancelled, then waits for a running cycle.
func (t *Trigger) Start(ctx context.Context) error {
	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger{t.logger}),
		cron.SkipIfStillRunning(cronLogger{t.logger}),
	))

	_, err := c.AddFunc(t.expr, func() { t.run(ctx) })
	if err != nil {
		return fmt.Errorf("parse cron expression %q: %w", t.expr, err)
	}

	t.logger.Info("trigger started", "cron", t.expr)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	t.logger.Info("trigger stopped")
	return ctx.Err()
}

func (t *Trigger) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	runCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	outcomes, err := t.scheduler.RunCycle(runCtx, 0)
	if err != nil {
		t.logger.Error("scheduled cycle failed", "error", err)
		return
	}
	t.logger.Info("scheduled cycle done", "processed", len(outcomes))
}

// cronLogger adapts slog to cron's logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
