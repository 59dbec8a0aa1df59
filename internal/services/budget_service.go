package services

import (
	"context"
	"fmt"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
)

type BudgetService struct {
	store  BudgetStore
	cache  CacheInvalidator
	logger *log.Logger
	now    func() time.Time
}

func NewBudgetService(store BudgetStore, cache CacheInvalidator, logger *log.Logger) *BudgetService {
	return &BudgetService{store: store, cache: cache, logger: logger.WithComponent(log.ComponentBudget), now: time.Now}
}

// Get returns the settings with spent, remaining and used percent derived
// for the given month. A zero year or month means the current month.
func (s *BudgetService) Get(ctx context.Context, userID string, year, month int) (core.BudgetSettings, error) {
	year, month = s.resolveMonth(year, month)
	if month < 1 || month > 12 {
		return core.BudgetSettings{}, core.ErrInvalidDate
	}
	b, err := s.store.GetBudget(ctx, userID)
	if err != nil {
		return core.BudgetSettings{}, err
	}
	spent, err := s.store.MonthTotal(ctx, userID, year, month)
	if err != nil {
		return core.BudgetSettings{}, err
	}
	return b.WithSpent(year, month, spent), nil
}

// Update stores a new monthly budget and alert threshold and returns the
// settings derived for the current month.
func (s *BudgetService) Update(ctx context.Context, userID string, monthly core.Money, threshold int) (core.BudgetSettings, error) {
	b := core.BudgetSettings{UserID: userID, MonthlyBudget: monthly, AlertThreshold: threshold}
	if err := b.Validate(); err != nil {
		return core.BudgetSettings{}, err
	}
	if _, err := s.store.UpsertBudget(ctx, b); err != nil {
		return core.BudgetSettings{}, fmt.Errorf("save budget: %w", err)
	}
	s.logger.InfoContext(ctx, "Budget updated",
		log.FieldUserID, userID,
		log.FieldAmountCents, monthly.Cents,
		"alert_threshold", threshold)
	if s.cache != nil {
		s.cache.Invalidate(ctx, userID)
	}
	return s.Get(ctx, userID, 0, 0)
}

// Evaluate decides which notification, if any, is due for the month. Each
// kind is raised at most once per user and month.
func (s *BudgetService) Evaluate(ctx context.Context, userID string, year, month int) (core.NotificationKind, core.BudgetSettings, error) {
	b, err := s.Get(ctx, userID, year, month)
	if err != nil {
		return "", core.BudgetSettings{}, err
	}

	var kinds []core.NotificationKind
	switch b.Status() {
	case core.BudgetExceeded:
		// Crossing straight past the budget also consumes the threshold alert.
		kinds = []core.NotificationKind{core.NotifyBudgetExceeded, core.NotifyBudgetAlert}
	case core.BudgetAlert:
		kinds = []core.NotificationKind{core.NotifyBudgetAlert}
	default:
		return "", b, nil
	}

	var due core.NotificationKind
	for _, kind := range kinds {
		fresh, err := s.store.RecordBudgetAlert(ctx, userID, b.Year, b.Month, kind)
		if err != nil {
			return "", b, err
		}
		if fresh && due == "" {
			due = kind
		}
	}
	return due, b, nil
}

func (s *BudgetService) resolveMonth(year, month int) (int, int) {
	if year == 0 || month == 0 {
		now := s.now()
		if year == 0 {
			year = now.Year()
		}
		if month == 0 {
			month = int(now.Month())
		}
	}
	return year, month
}

// BudgetMonitor turns budget evaluations into stored notifications.
type BudgetMonitor struct {
	budgets       *BudgetService
	notifications *NotificationService
}

func NewBudgetMonitor(budgets *BudgetService, notifications *NotificationService) *BudgetMonitor {
	return &BudgetMonitor{budgets: budgets, notifications: notifications}
}

// Check raises the due notification for the month, if any.
func (m *BudgetMonitor) Check(ctx context.Context, userID string, year, month int) (*core.Notification, error) {
	kind, b, err := m.budgets.Evaluate(ctx, userID, year, month)
	if err != nil {
		return nil, fmt.Errorf("evaluate budget: %w", err)
	}
	if kind == "" {
		return nil, nil
	}
	n, err := m.notifications.Notify(ctx, userID, kind, budgetMessage(kind, b))
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func budgetMessage(kind core.NotificationKind, b core.BudgetSettings) string {
	if kind == core.NotifyBudgetExceeded {
		return fmt.Sprintf("Monthly budget exceeded for %04d-%02d: spent %s of %s (%.1f%%).",
			b.Year, b.Month, b.Spent.Decimal(), b.MonthlyBudget.Decimal(), b.UsedPercent)
	}
	return fmt.Sprintf("You have used %.1f%% of your %04d-%02d budget (%s of %s).",
		b.UsedPercent, b.Year, b.Month, b.Spent.Decimal(), b.MonthlyBudget.Decimal())
}

// Sweep checks every budgeted user with spending in the month. It catches
// alerts whose expense events were lost and returns how many were raised.
func (m *BudgetMonitor) Sweep(ctx context.Context, year, month int) (int, error) {
	users, err := m.budgets.store.ListBudgetedUsers(ctx, year, month)
	if err != nil {
		return 0, err
	}
	raised := 0
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return raised, err
		}
		n, err := m.Check(ctx, userID, year, month)
		if err != nil {
			m.budgets.logger.ErrorContext(ctx, "Budget sweep failed for user", log.FieldUserID, userID, log.FieldError, err)
			continue
		}
		if n != nil {
			raised++
		}
	}
	return raised, nil
}
