package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"expensetracker/internal/core"
)

const expenseColumns = `id, user_id, title, amount_cents, category, date, description, created_at`

// ExpenseFilter narrows ListExpenses. Zero values mean "no constraint".
type ExpenseFilter struct {
	From     core.Date
	To       core.Date
	Category string
	Limit    int
	Offset   int
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if e.ID == "" {
		e.ID = newID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.timestamp()
	}
	if err := insertExpense(ctx, r.db, e); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertExpense(ctx context.Context, db execer, e core.Expense) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO expenses (`+expenseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Title, e.Amount.Cents, e.Category, e.Date.String(), e.Description, formatTime(e.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create expense %s: %w", e.ID, ErrConflict)
		}
		return fmt.Errorf("create expense: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, userID, id string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE user_id = ? AND id = ?`, userID, id)
	return scanExpense(row)
}

// UpdateExpense replaces the mutable fields. CreatedAt is preserved.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET title = ?, amount_cents = ?, category = ?, date = ?, description = ?
		 WHERE user_id = ? AND id = ?`,
		e.Title, e.Amount.Cents, e.Category, e.Date.String(), e.Description, e.UserID, e.ID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	if err := checkAffected(res); err != nil {
		return core.Expense{}, err
	}
	return r.GetExpense(ctx, e.UserID, e.ID)
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return checkAffected(res)
}

// ListExpenses returns the user's expenses newest first.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID string, f ExpenseFilter) ([]core.Expense, error) {
	where, args := expenseWhere(userID, f)
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE ` + where +
		` ORDER BY date DESC, created_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	} else if f.Offset > 0 {
		query += ` LIMIT -1 OFFSET ?`
		args = append(args, f.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	expenses := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}

// CountExpenses counts rows matching the filter, ignoring Limit and Offset.
func (r *SQLiteRepository) CountExpenses(ctx context.Context, userID string, f ExpenseFilter) (int, error) {
	where, args := expenseWhere(userID, f)
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM expenses WHERE `+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count expenses: %w", err)
	}
	return n, nil
}

func expenseWhere(userID string, f ExpenseFilter) (string, []any) {
	clauses := []string{"user_id = ?"}
	args := []any{userID}
	if !f.From.IsZero() {
		clauses = append(clauses, "date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		clauses = append(clauses, "date <= ?")
		args = append(args, f.To.String())
	}
	if c := core.NormalizeCategory(f.Category); c != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, c)
	}
	return strings.Join(clauses, " AND "), args
}

// MonthTotal sums the user's expenses dated in the given month.
func (r *SQLiteRepository) MonthTotal(ctx context.Context, userID string, year, month int) (core.Money, error) {
	from, to := core.MonthRange(year, month)
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM expenses WHERE user_id = ? AND date BETWEEN ? AND ?`,
		userID, from.String(), to.String()).Scan(&total)
	if err != nil {
		return core.Money{}, fmt.Errorf("month total: %w", err)
	}
	return core.MoneyFromCents(total), nil
}

// CategorySums groups the month's expenses by category, largest first.
func (r *SQLiteRepository) CategorySums(ctx context.Context, userID string, year, month int) ([]core.CategoryAmount, error) {
	from, to := core.MonthRange(year, month)
	rows, err := r.db.QueryContext(ctx,
		`SELECT category, SUM(amount_cents), COUNT(*) FROM expenses
		 WHERE user_id = ? AND date BETWEEN ? AND ?
		 GROUP BY category`,
		userID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("category sums: %w", err)
	}
	defer rows.Close()

	sums := []core.CategoryAmount{}
	for rows.Next() {
		var (
			ca    core.CategoryAmount
			cents int64
		)
		if err := rows.Scan(&ca.Name, &cents, &ca.Count); err != nil {
			return nil, fmt.Errorf("scan category sum: %w", err)
		}
		ca.Amount = core.MoneyFromCents(cents)
		sums = append(sums, ca)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category sums: %w", err)
	}
	core.SortCategories(sums)
	return sums, nil
}

// ReadMonthOverview builds the month overview from the aggregates above.
func (r *SQLiteRepository) ReadMonthOverview(ctx context.Context, userID string, year, month int) (core.MonthOverview, error) {
	sums, err := r.CategorySums(ctx, userID, year, month)
	if err != nil {
		return core.MonthOverview{}, err
	}
	ov := core.MonthOverview{Year: year, Month: month, ByCategory: sums}
	for _, ca := range sums {
		ov.Total = ov.Total.Add(ca.Amount)
		ov.Count += ca.Count
	}
	return ov, nil
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e               core.Expense
		cents           int64
		date, createdAt string
	)
	err := row.Scan(&e.ID, &e.UserID, &e.Title, &cents, &e.Category, &date, &e.Description, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}
	e.Amount = core.MoneyFromCents(cents)
	e.Date = parseDate(date)
	e.CreatedAt = parseTime(createdAt)
	return e, nil
}
