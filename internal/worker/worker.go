// Package worker runs the background jobs of the expense tracker: the
// recurring expense ticker, the budget sweep and the event consumer.
package worker

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"expensetracker/internal/log"

	"golang.org/x/sync/errgroup"
)

// Runner is a long-running job that stops when its context ends.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context) error

func (f RunnerFunc) Run(ctx context.Context) error { return f(ctx) }

// RunAll runs every runner until ctx is cancelled or one of them fails,
// which cancels the others. Context cancellation is not reported as an error.
func RunAll(ctx context.Context, runners ...Runner) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range runners {
		g.Go(func() error {
			err := r.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context, logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Every calls fn immediately and then on every tick until ctx ends. Errors
// from fn are logged and do not stop the loop.
func Every(ctx context.Context, interval time.Duration, logger *log.Logger, name string, fn func(ctx context.Context, now time.Time) error) error {
	run := func(now time.Time) {
		if err := fn(ctx, now); err != nil && ctx.Err() == nil {
			logger.ErrorContext(ctx, "Periodic job failed", log.FieldOperation, name, log.FieldError, err)
		}
	}

	run(time.Now())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			run(now)
		}
	}
}
