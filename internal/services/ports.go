package services

import (
	"context"

	"expensetracker/internal/amqp"
	"expensetracker/internal/core"
	"expensetracker/internal/storage"
)

// ExpenseStore is the expense part of storage.SQLiteRepository.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	GetExpense(ctx context.Context, userID, id string) (core.Expense, error)
	UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	DeleteExpense(ctx context.Context, userID, id string) error
	ListExpenses(ctx context.Context, userID string, f storage.ExpenseFilter) ([]core.Expense, error)
	CountExpenses(ctx context.Context, userID string, f storage.ExpenseFilter) (int, error)
}

type BudgetStore interface {
	GetBudget(ctx context.Context, userID string) (core.BudgetSettings, error)
	UpsertBudget(ctx context.Context, b core.BudgetSettings) (core.BudgetSettings, error)
	MonthTotal(ctx context.Context, userID string, year, month int) (core.Money, error)
	RecordBudgetAlert(ctx context.Context, userID string, year, month int, kind core.NotificationKind) (bool, error)
	ListBudgetedUsers(ctx context.Context, year, month int) ([]string, error)
}

type UserStore interface {
	GetUserByID(ctx context.Context, id string) (core.User, error)
	UpdateUser(ctx context.Context, u core.User) (core.User, error)
}

type RecurringStore interface {
	CreateRecurring(ctx context.Context, re core.RecurringExpense) (core.RecurringExpense, error)
	GetRecurring(ctx context.Context, userID, id string) (core.RecurringExpense, error)
	UpdateRecurring(ctx context.Context, re core.RecurringExpense) (core.RecurringExpense, error)
	DeleteRecurring(ctx context.Context, userID, id string) error
	ListRecurring(ctx context.Context, userID string) ([]core.RecurringExpense, error)
	ListDueRecurring(ctx context.Context, asOf core.Date) ([]core.RecurringExpense, error)
	ApplyOccurrences(ctx context.Context, re core.RecurringExpense, expenses []core.Expense, next core.Date) error
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n core.Notification) (core.Notification, error)
	ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]core.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) (int, error)
}

type ReportStore interface {
	ReadMonthOverview(ctx context.Context, userID string, year, month int) (core.MonthOverview, error)
	MonthTotal(ctx context.Context, userID string, year, month int) (core.Money, error)
}

// EventPublisher is satisfied by *amqp.Client.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, event *amqp.ExpenseEvent) error
}

// CacheInvalidator drops cached derived data for a user after a write.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, userID string)
}

// BudgetChecker raises budget notifications for a month.
type BudgetChecker interface {
	Check(ctx context.Context, userID string, year, month int) (*core.Notification, error)
}

var (
	_ ExpenseStore      = (*storage.SQLiteRepository)(nil)
	_ BudgetStore       = (*storage.SQLiteRepository)(nil)
	_ UserStore         = (*storage.SQLiteRepository)(nil)
	_ RecurringStore    = (*storage.SQLiteRepository)(nil)
	_ NotificationStore = (*storage.SQLiteRepository)(nil)
	_ ReportStore       = (*storage.SQLiteRepository)(nil)
	_ EventPublisher    = (*amqp.Client)(nil)
)
