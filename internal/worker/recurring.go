package worker

import (
	"context"
	"time"

	"expensetracker/internal/log"
	"expensetracker/internal/services"
)

// RecurringProcessor is satisfied by *services.RecurringProcessor.
type RecurringProcessor interface {
	ProcessDue(ctx context.Context, now time.Time) (services.ProcessResult, error)
}

// RecurringWorker materializes due recurring expenses on a fixed interval.
type RecurringWorker struct {
	processor RecurringProcessor
	interval  time.Duration
	logger    *log.Logger
}

func NewRecurringWorker(processor RecurringProcessor, interval time.Duration, logger *log.Logger) *RecurringWorker {
	return &RecurringWorker{
		processor: processor,
		interval:  interval,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// Run processes once on startup and then every interval.
func (w *RecurringWorker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Recurring expense worker started", "interval", w.interval.String())
	return Every(ctx, w.interval, w.logger, "recurring", w.RunOnce)
}

// RunOnce processes the templates due at now.
func (w *RecurringWorker) RunOnce(ctx context.Context, now time.Time) error {
	res, err := w.processor.ProcessDue(ctx, now)
	if err != nil {
		return err
	}
	w.logger.InfoContext(ctx, "Periodic processing complete",
		"expenses_created", res.Created,
		"templates", res.Templates,
		"failed", res.Failed,
		"next_check", now.Add(w.interval).Format("15:04:05"))
	return nil
}
