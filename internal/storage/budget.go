package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"expensetracker/internal/core"
)

// GetBudget returns the stored settings, or the defaults when the user never
// saved any.
func (r *SQLiteRepository) GetBudget(ctx context.Context, userID string) (core.BudgetSettings, error) {
	var (
		b         = core.BudgetSettings{UserID: userID}
		cents     int64
		updatedAt string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT monthly_budget_cents, alert_threshold, updated_at FROM budgets WHERE user_id = ?`, userID).
		Scan(&cents, &b.AlertThreshold, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.DefaultBudget(userID), nil
	}
	if err != nil {
		return core.BudgetSettings{}, fmt.Errorf("get budget: %w", err)
	}
	b.MonthlyBudget = core.MoneyFromCents(cents)
	b.UpdatedAt = parseTime(updatedAt)
	return b, nil
}

func (r *SQLiteRepository) UpsertBudget(ctx context.Context, b core.BudgetSettings) (core.BudgetSettings, error) {
	b.UpdatedAt = r.timestamp()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (user_id, monthly_budget_cents, alert_threshold, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   monthly_budget_cents = excluded.monthly_budget_cents,
		   alert_threshold = excluded.alert_threshold,
		   updated_at = excluded.updated_at`,
		b.UserID, b.MonthlyBudget.Cents, b.AlertThreshold, formatTime(b.UpdatedAt))
	if err != nil {
		return core.BudgetSettings{}, fmt.Errorf("upsert budget: %w", err)
	}
	return b, nil
}

// RecordBudgetAlert remembers that an alert of kind was raised for the
// month. It reports false when one was already recorded.
func (r *SQLiteRepository) RecordBudgetAlert(ctx context.Context, userID string, year, month int, kind core.NotificationKind) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO budget_alerts (user_id, year, month, kind) VALUES (?, ?, ?, ?)`,
		userID, year, month, string(kind))
	if err != nil {
		return false, fmt.Errorf("record budget alert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ListBudgetedUsers returns the users with a budget set and at least one
// expense dated in the month.
func (r *SQLiteRepository) ListBudgetedUsers(ctx context.Context, year, month int) ([]string, error) {
	from, to := core.MonthRange(year, month)
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT b.user_id FROM budgets b
		 JOIN expenses e ON e.user_id = b.user_id
		 WHERE b.monthly_budget_cents > 0 AND e.date BETWEEN ? AND ?
		 ORDER BY b.user_id`,
		from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list budgeted users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan budgeted user: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
