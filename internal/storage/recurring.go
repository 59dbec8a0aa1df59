package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"expensetracker/internal/core"
)

const recurringColumns = `id, user_id, title, amount_cents, category, frequency, next_occurrence, anchor_day, active, created_at`

func (r *SQLiteRepository) CreateRecurring(ctx context.Context, re core.RecurringExpense) (core.RecurringExpense, error) {
	if re.ID == "" {
		re.ID = newID()
	}
	if re.CreatedAt.IsZero() {
		re.CreatedAt = r.timestamp()
	}
	if re.AnchorDay == 0 {
		re.AnchorDay = re.NextOccurrence.Day()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO recurring_expenses (`+recurringColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		re.ID, re.UserID, re.Title, re.Amount.Cents, re.Category, string(re.Frequency),
		re.NextOccurrence.String(), re.AnchorDay, boolToInt(re.Active), formatTime(re.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return core.RecurringExpense{}, fmt.Errorf("create recurring %s: %w", re.ID, ErrConflict)
		}
		return core.RecurringExpense{}, fmt.Errorf("create recurring: %w", err)
	}
	return re, nil
}

func (r *SQLiteRepository) GetRecurring(ctx context.Context, userID, id string) (core.RecurringExpense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recurringColumns+` FROM recurring_expenses WHERE user_id = ? AND id = ?`, userID, id)
	return scanRecurring(row)
}

func (r *SQLiteRepository) UpdateRecurring(ctx context.Context, re core.RecurringExpense) (core.RecurringExpense, error) {
	if re.AnchorDay == 0 {
		re.AnchorDay = re.NextOccurrence.Day()
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_expenses
		 SET title = ?, amount_cents = ?, category = ?, frequency = ?, next_occurrence = ?, anchor_day = ?, active = ?
		 WHERE user_id = ? AND id = ?`,
		re.Title, re.Amount.Cents, re.Category, string(re.Frequency), re.NextOccurrence.String(),
		re.AnchorDay, boolToInt(re.Active), re.UserID, re.ID)
	if err != nil {
		return core.RecurringExpense{}, fmt.Errorf("update recurring: %w", err)
	}
	if err := checkAffected(res); err != nil {
		return core.RecurringExpense{}, err
	}
	return r.GetRecurring(ctx, re.UserID, re.ID)
}

func (r *SQLiteRepository) DeleteRecurring(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recurring_expenses WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("delete recurring: %w", err)
	}
	return checkAffected(res)
}

// ListRecurring returns the user's templates ordered by next occurrence.
func (r *SQLiteRepository) ListRecurring(ctx context.Context, userID string) ([]core.RecurringExpense, error) {
	return r.queryRecurring(ctx,
		`SELECT `+recurringColumns+` FROM recurring_expenses WHERE user_id = ?
		 ORDER BY next_occurrence, title`, userID)
}

// ListDueRecurring returns active templates of every user that are due on
// or before asOf.
func (r *SQLiteRepository) ListDueRecurring(ctx context.Context, asOf core.Date) ([]core.RecurringExpense, error) {
	return r.queryRecurring(ctx,
		`SELECT `+recurringColumns+` FROM recurring_expenses
		 WHERE active = 1 AND next_occurrence <= ?
		 ORDER BY next_occurrence`, asOf.String())
}

// ApplyOccurrences inserts the materialized expenses and moves the template
// to next in one transaction. The update is conditional on the template still
// pointing at re.NextOccurrence, so two workers racing on the same template
// cannot both record it; the loser gets ErrConflict.
func (r *SQLiteRepository) ApplyOccurrences(ctx context.Context, re core.RecurringExpense, expenses []core.Expense, next core.Date) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE recurring_expenses SET next_occurrence = ?
			 WHERE user_id = ? AND id = ? AND next_occurrence = ? AND active = 1`,
			next.String(), re.UserID, re.ID, re.NextOccurrence.String())
		if err != nil {
			return fmt.Errorf("advance recurring: %w", err)
		}
		if err := checkAffected(res); err != nil {
			return fmt.Errorf("advance recurring %s: %w", re.ID, ErrConflict)
		}
		for _, e := range expenses {
			if e.ID == "" {
				e.ID = newID()
			}
			if e.CreatedAt.IsZero() {
				e.CreatedAt = r.timestamp()
			}
			if err := insertExpense(ctx, tx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) queryRecurring(ctx context.Context, query string, args ...any) ([]core.RecurringExpense, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recurring: %w", err)
	}
	defer rows.Close()

	items := []core.RecurringExpense{}
	for rows.Next() {
		re, err := scanRecurring(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, re)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recurring: %w", err)
	}
	return items, nil
}

func scanRecurring(row rowScanner) (core.RecurringExpense, error) {
	var (
		re                    core.RecurringExpense
		cents                 int64
		freq, next, createdAt string
		active                int
	)
	err := row.Scan(&re.ID, &re.UserID, &re.Title, &cents, &re.Category, &freq, &next, &re.AnchorDay, &active, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringExpense{}, ErrNotFound
	}
	if err != nil {
		return core.RecurringExpense{}, fmt.Errorf("scan recurring: %w", err)
	}
	re.Amount = core.MoneyFromCents(cents)
	re.Frequency = core.Frequency(freq)
	re.NextOccurrence = parseDate(next)
	re.Active = active != 0
	re.CreatedAt = parseTime(createdAt)
	return re, nil
}
