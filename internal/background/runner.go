// Package background runs work that must outlive the request that started it.
package background

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
)

// ErrStopped is returned by Wait when draining exceeded the caller's deadline.
var ErrStopped = errors.New("background tasks still running at shutdown deadline")

// Task is a unit of detached work.
type Task func(ctx context.Context)

// Scheduler accepts tasks to run after the response has been written.
type Scheduler interface {
	Go(ctx context.Context, name string, task Task)
}

// Runner tracks scheduled tasks so shutdown can wait for them.
type Runner struct {
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(logger *slog.Logger) *Runner {
	return &Runner{logger: logger.With("component", "background")}
}

// Go runs task in a tracked goroutine. The task's context keeps the values
// of ctx but is never cancelled with it.
func (r *Runner) Go(ctx context.Context, name string, task Task) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		run(context.WithoutCancel(ctx), name, task, r.logger)
	}()
}

// Wait blocks until all scheduled tasks finish or ctx is done.
// It is registered as a shutdown hook.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		r.logger.Warn("background_drain_timeout", "error", ctx.Err())
		return ErrStopped
	}
}

// Detached runs tasks in plain goroutines nobody waits for.
// Pending tasks are lost if the process exits first.
type Detached struct {
	Logger *slog.Logger
}

// Go runs task in an untracked goroutine.
func (d Detached) Go(ctx context.Context, name string, task Task) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	go run(context.WithoutCancel(ctx), name, task, logger)
}

func run(ctx context.Context, name string, task Task, logger *slog.Logger) {
	defer func() {
		if rvr := recover(); rvr != nil {
			logger.Error("background_task_panic",
				slog.String("task", name),
				slog.Any("panic", rvr),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	task(ctx)
}
