package services

import (
	"context"
	"fmt"

	"expensetracker/internal/amqp"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/storage"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// ExpensePage is one page of ListExpenses.
type ExpensePage struct {
	Items  []core.Expense `json:"items"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// ExpenseService orchestrates expense writes across SQLite and AMQP.
type ExpenseService struct {
	storage   ExpenseStore
	publisher EventPublisher
	cache     CacheInvalidator
	budget    BudgetChecker
	logger    *log.Logger
}

// NewExpenseService wires the service. publisher, cache and budget may be nil.
// When publisher is nil the budget check runs synchronously after each write.
func NewExpenseService(store ExpenseStore, publisher EventPublisher, cache CacheInvalidator, budget BudgetChecker, logger *log.Logger) *ExpenseService {
	return &ExpenseService{
		storage:   store,
		publisher: publisher,
		cache:     cache,
		budget:    budget,
		logger:    logger.WithComponent(log.ComponentExpense),
	}
}

func (s *ExpenseService) Create(ctx context.Context, userID string, e core.Expense) (core.Expense, error) {
	e.ID = ""
	e.UserID = userID
	e.Normalize()
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	created, err := s.storage.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	s.logger.InfoContext(ctx, "Expense created",
		log.NewFields().
			WithUser(userID).
			WithExpense(created.ID, created.Title, created.Amount.Cents, created.Category).
			ToSlice()...)

	s.afterWrite(ctx, amqp.EventExpenseCreated, created)
	return created, nil
}

func (s *ExpenseService) Get(ctx context.Context, userID, id string) (core.Expense, error) {
	return s.storage.GetExpense(ctx, userID, id)
}

// Update replaces the mutable fields of an existing expense.
func (s *ExpenseService) Update(ctx context.Context, userID, id string, e core.Expense) (core.Expense, error) {
	e.ID = id
	e.UserID = userID
	e.Normalize()
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	if _, err := s.storage.GetExpense(ctx, userID, id); err != nil {
		return core.Expense{}, err
	}

	updated, err := s.storage.UpdateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}

	s.afterWrite(ctx, amqp.EventExpenseUpdated, updated)
	return updated, nil
}

func (s *ExpenseService) Delete(ctx context.Context, userID, id string) error {
	existing, err := s.storage.GetExpense(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.storage.DeleteExpense(ctx, userID, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	s.logger.InfoContext(ctx, "Expense deleted", log.FieldUserID, userID, log.FieldExpenseID, id)
	s.afterWrite(ctx, amqp.EventExpenseDeleted, existing)
	return nil
}

// List returns one page of the user's expenses, newest first.
func (s *ExpenseService) List(ctx context.Context, userID string, f storage.ExpenseFilter) (ExpensePage, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return ExpensePage{}, core.ErrInvalidDate
	}

	items, err := s.storage.ListExpenses(ctx, userID, f)
	if err != nil {
		return ExpensePage{}, err
	}
	total, err := s.storage.CountExpenses(ctx, userID, f)
	if err != nil {
		return ExpensePage{}, err
	}
	return ExpensePage{Items: items, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

// afterWrite publishes the event and clears caches. Failures here are logged
// and never fail the request: the expense is already saved.
func (s *ExpenseService) afterWrite(ctx context.Context, t amqp.EventType, e core.Expense) {
	s.invalidate(ctx, e.UserID)

	if s.publisher != nil {
		if err := s.publisher.PublishExpenseEvent(ctx, amqp.NewExpenseEvent(t, e)); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish expense event",
				log.FieldEventType, t,
				log.FieldExpenseID, e.ID,
				log.FieldError, err)
		}
		return
	}

	if s.budget != nil && t != amqp.EventExpenseDeleted {
		if _, err := s.budget.Check(ctx, e.UserID, e.Date.Year(), int(e.Date.Month())); err != nil {
			s.logger.ErrorContext(ctx, "Budget check failed", log.FieldUserID, e.UserID, log.FieldError, err)
		}
	}
}

func (s *ExpenseService) invalidate(ctx context.Context, userID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, userID)
	}
}

