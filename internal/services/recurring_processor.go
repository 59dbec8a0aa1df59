package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"expensetracker/internal/amqp"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/storage"

	"github.com/google/uuid"
)

// MaxCatchUp bounds how many occurrences one template may produce per run.
// A template further behind continues on the next run.
const MaxCatchUp = 366

// ProcessResult summarizes one ProcessDue run.
type ProcessResult struct {
	Checked   int `json:"checked"`
	Created   int `json:"created"`
	Failed    int `json:"failed"`
	Templates int `json:"templates"`
}

// RecurringProcessor materializes due recurring templates into expenses.
type RecurringProcessor struct {
	store         RecurringStore
	cache         CacheInvalidator
	notifications *NotificationService
	budget        BudgetChecker
	publisher     EventPublisher
	logger        *log.Logger
}

// NewRecurringProcessor wires the processor; cache, notifications and budget
// may be nil.
func NewRecurringProcessor(store RecurringStore, cache CacheInvalidator, notifications *NotificationService, budget BudgetChecker, logger *log.Logger) *RecurringProcessor {
	return &RecurringProcessor{
		store:         store,
		cache:         cache,
		notifications: notifications,
		budget:        budget,
		logger:        logger.WithComponent(log.ComponentRecurring),
	}
}

// WithPublisher makes the processor publish a created event per materialized
// expense. The budget check is then left to the event consumer.
func (p *RecurringProcessor) WithPublisher(pub EventPublisher) *RecurringProcessor {
	p.publisher = pub
	return p
}

// ProcessDue creates one expense per missed occurrence of every active
// template due on or before now's calendar day, then advances the template.
// A failing template is logged and skipped; the others still run.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (ProcessResult, error) {
	if p.store == nil {
		return ProcessResult{}, errors.New("processor not properly initialized")
	}
	today := core.DateOf(now)

	due, err := p.store.ListDueRecurring(ctx, today)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("list due recurring expenses: %w", err)
	}

	p.logger.InfoContext(ctx, "Processing recurring expenses",
		log.FieldCount, len(due),
		log.FieldDate, today.String())

	var res ProcessResult
	for _, re := range due {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Checked++

		n, err := p.processOne(ctx, re, today)
		if err != nil {
			res.Failed++
			level := p.logger.ErrorContext
			if errors.Is(err, storage.ErrConflict) {
				// Another worker got there first.
				level = p.logger.WarnContext
			}
			level(ctx, "Failed to process recurring template",
				log.FieldRecurringID, re.ID,
				log.FieldUserID, re.UserID,
				log.FieldError, err)
			continue
		}
		if n > 0 {
			res.Templates++
			res.Created += n
		}
	}

	p.logger.InfoContext(ctx, "Recurring expense processing complete",
		"created", res.Created,
		"templates", res.Templates,
		"failed", res.Failed)
	return res, nil
}

func (p *RecurringProcessor) processOne(ctx context.Context, re core.RecurringExpense, today core.Date) (int, error) {
	checker, err := GetDuenessChecker(re.Frequency)
	if err != nil {
		return 0, err
	}
	dates, next := DueOccurrences(checker, re, today, MaxCatchUp)
	if len(dates) == 0 {
		return 0, nil
	}

	expenses := make([]core.Expense, len(dates))
	for i, d := range dates {
		expenses[i] = re.Materialize(d)
		expenses[i].ID = uuid.NewString()
	}
	if err := p.store.ApplyOccurrences(ctx, re, expenses, next); err != nil {
		return 0, err
	}

	p.logger.InfoContext(ctx, "Created expenses from recurring template",
		log.FieldRecurringID, re.ID,
		log.FieldUserID, re.UserID,
		log.FieldTitle, re.Title,
		log.FieldAmountCents, re.Amount.Cents,
		log.FieldCount, len(dates),
		"next_occurrence", next.String())

	if p.cache != nil {
		p.cache.Invalidate(ctx, re.UserID)
	}
	p.afterCreate(ctx, re, dates, expenses)
	return len(dates), nil
}

// afterCreate tells the user and re-checks the budget of the affected months.
func (p *RecurringProcessor) afterCreate(ctx context.Context, re core.RecurringExpense, dates []core.Date, expenses []core.Expense) {
	if p.notifications != nil {
		msg := fmt.Sprintf("Recorded %q (%s) for %s.", re.Title, re.Amount.Decimal(), dates[0])
		if len(dates) > 1 {
			msg = fmt.Sprintf("Recorded %d occurrences of %q (%s each), %s to %s.",
				len(dates), re.Title, re.Amount.Decimal(), dates[0], dates[len(dates)-1])
		}
		if _, err := p.notifications.Notify(ctx, re.UserID, core.NotifyRecurringCreated, msg); err != nil {
			p.logger.ErrorContext(ctx, "Failed to notify", log.FieldUserID, re.UserID, log.FieldError, err)
		}
	}
	if p.publisher != nil {
		for _, e := range expenses {
			if err := p.publisher.PublishExpenseEvent(ctx, amqp.NewExpenseEvent(amqp.EventExpenseCreated, e)); err != nil {
				p.logger.ErrorContext(ctx, "Failed to publish expense event",
					log.FieldExpenseID, e.ID,
					log.FieldError, err)
			}
		}
		return
	}
	if p.budget == nil {
		return
	}
	seen := map[[2]int]bool{}
	for _, d := range dates {
		ym := [2]int{d.Year(), int(d.Month())}
		if seen[ym] {
			continue
		}
		seen[ym] = true
		if _, err := p.budget.Check(ctx, re.UserID, ym[0], ym[1]); err != nil {
			p.logger.ErrorContext(ctx, "Budget check failed", log.FieldUserID, re.UserID, log.FieldError, err)
		}
	}
}
