// Package sheets defines the spreadsheet export ports used by the
// notification worker.
package sheets

import (
	"context"
	"errors"

	"expensetracker/internal/core"
)

// ErrNotExported is returned when no exported row holds the expense.
var ErrNotExported = errors.New("expense not found in spreadsheet")

// Ports for outbound adapters.
type (
	ExpenseWriter interface {
		Append(ctx context.Context, e core.Expense) (rowRef string, err error)
	}

	// ExpenseUpdater rewrites the row of an already exported expense.
	ExpenseUpdater interface {
		UpdateExpense(ctx context.Context, e core.Expense) (rowRef string, err error)
	}

	ExpenseDeleter interface {
		DeleteExpense(ctx context.Context, e core.Expense) error
	}

	// ExpenseLister returns the exported expenses of a user for a month.
	ExpenseLister interface {
		ListExpenses(ctx context.Context, userID string, year, month int) ([]core.Expense, error)
	}

	// Exporter is everything the worker needs to mirror expense events.
	Exporter interface {
		ExpenseWriter
		ExpenseUpdater
		ExpenseDeleter
	}
)
