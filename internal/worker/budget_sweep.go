package worker

import (
	"context"
	"time"

	"expensetracker/internal/log"
)

// BudgetSweeper is satisfied by *services.BudgetMonitor.
type BudgetSweeper interface {
	Sweep(ctx context.Context, year, month int) (int, error)
}

// BudgetSweepWorker re-checks budgets periodically. This is a backup
// mechanism in case AMQP messages are lost or the worker was down.
type BudgetSweepWorker struct {
	sweeper  BudgetSweeper
	interval time.Duration
	logger   *log.Logger
}

func NewBudgetSweepWorker(sweeper BudgetSweeper, interval time.Duration, logger *log.Logger) *BudgetSweepWorker {
	return &BudgetSweepWorker{
		sweeper:  sweeper,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

func (w *BudgetSweepWorker) Run(ctx context.Context) error {
	return Every(ctx, w.interval, w.logger, "budget_sweep", w.RunOnce)
}

// RunOnce sweeps the month of now. During the first day of a month the
// previous month is swept as well, since late events may still land there.
func (w *BudgetSweepWorker) RunOnce(ctx context.Context, now time.Time) error {
	months := [][2]int{{now.Year(), int(now.Month())}}
	if now.Day() == 1 {
		prev := now.AddDate(0, 0, -1)
		months = append(months, [2]int{prev.Year(), int(prev.Month())})
	}
	for _, ym := range months {
		raised, err := w.sweeper.Sweep(ctx, ym[0], ym[1])
		if err != nil {
			return err
		}
		if raised > 0 {
			w.logger.InfoContext(ctx, "Budget sweep raised notifications",
				log.FieldYear, ym[0], log.FieldMonth, ym[1], log.FieldCount, raised)
		}
	}
	return nil
}
