package client

import (
	"context"
	"errors"
	"strings"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
)

// ErrNotFound is returned when a record is missing from the local copy.
var ErrNotFound = errors.New("not found")

const (
	defaultPageSize    = 50
	maxPageSize        = 500
	defaultTrendMonths = 6
	maxTrendMonths     = 36
	recentExpenses     = 5
)

// Tracker is the entry point for every expense operation. Each call goes to
// the backend when it is reachable and to the device's shadow copy when not.
type Tracker struct {
	api     *API
	store   LocalStore
	session *Session
	avail   *Availability
	logger  *log.Logger
	now     func() time.Time
}

// account resolves the logged-in user and how to route calls for them.
func (t *Tracker) account(ctx context.Context) (Account, fallback, error) {
	acc, err := t.session.Current(ctx)
	if err != nil {
		return Account{}, fallback{}, err
	}
	return acc, fallback{avail: t.avail, logger: t.logger, localOnly: acc.Local}, nil
}

func (t *Tracker) expenses(userID string) collection[core.Expense] {
	return collection[core.Expense]{store: t.store, key: userKey(userID, "expenses"), id: func(e core.Expense) string { return e.ID }}
}

func (t *Tracker) budgetDoc(userID string) doc[core.BudgetSettings] {
	return doc[core.BudgetSettings]{store: t.store, key: userKey(userID, "budget")}
}

func (t *Tracker) profileDoc(userID string) doc[core.User] {
	return doc[core.User]{store: t.store, key: userKey(userID, "profile")}
}

func (t *Tracker) resolveMonth(year, month int) (int, int) {
	now := t.now()
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	return year, month
}

func (t *Tracker) today() core.Date {
	return core.DateOf(t.now().UTC())
}

// prepareExpense trims the input and checks it the way the backend would,
// so invalid submissions never leave the device.
func (t *Tracker) prepareExpense(in ExpenseInput) (ExpenseInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Category = strings.TrimSpace(in.Category)
	in.Description = strings.TrimSpace(in.Description)
	if in.Amount.Cents <= 0 {
		return in, core.ErrInvalidAmount
	}
	if in.Date.IsZero() {
		in.Date = t.today()
	}
	e := core.Expense{Title: in.Title, Amount: in.Amount, Category: in.Category, Date: in.Date, Description: in.Description}
	e.Normalize()
	if err := e.Validate(); err != nil {
		return in, err
	}
	return in, nil
}

func (t *Tracker) applyExpense(e core.Expense, in ExpenseInput) core.Expense {
	e.Title = in.Title
	e.Amount = in.Amount
	e.Category = in.Category
	e.Date = in.Date
	e.Description = in.Description
	e.Normalize()
	return e
}

// AddExpense records a new expense. Fields are trimmed and a non-positive
// amount is rejected before any network call.
func (t *Tracker) AddExpense(ctx context.Context, in ExpenseInput) (core.Expense, error) {
	in, err := t.prepareExpense(in)
	if err != nil {
		return core.Expense{}, err
	}
	acc, fb, err := t.account(ctx)
	if err != nil {
		return core.Expense{}, err
	}
	col := t.expenses(acc.User.ID)

	return withFallback(ctx, fb, "add_expense",
		func(ctx context.Context) (core.Expense, error) {
			return t.api.CreateExpense(ctx, in)
		},
		col.Put,
		func(ctx context.Context) (core.Expense, error) {
			e := t.applyExpense(core.Expense{
				ID:        localID(),
				UserID:    acc.User.ID,
				CreatedAt: t.now().UTC(),
			}, in)
			if err := col.Put(ctx, e); err != nil {
				return core.Expense{}, err
			}
			t.checkBudgetLocally(ctx, acc.User.ID, e.Date.Year(), int(e.Date.Month()))
			return e, nil
		},
	)
}

func (t *Tracker) UpdateExpense(ctx context.Context, id string, in ExpenseInput) (core.Expense, error) {
	in, err := t.prepareExpense(in)
	if err != nil {
		return core.Expense{}, err
	}
	acc, fb, err := t.account(ctx)
	if err != nil {
		return core.Expense{}, err
	}
	col := t.expenses(acc.User.ID)

	return withFallback(ctx, fb, "update_expense",
		func(ctx context.Context) (core.Expense, error) {
			return t.api.UpdateExpense(ctx, id, in)
		},
		col.Put,
		func(ctx context.Context) (core.Expense, error) {
			existing, ok, err := col.Get(ctx, id)
			if err != nil {
				return core.Expense{}, err
			}
			if !ok {
				return core.Expense{}, ErrNotFound
			}
			e := t.applyExpense(existing, in)
			if err := col.Put(ctx, e); err != nil {
				return core.Expense{}, err
			}
			t.checkBudgetLocally(ctx, acc.User.ID, e.Date.Year(), int(e.Date.Month()))
			return e, nil
		},
	)
}

func (t *Tracker) DeleteExpense(ctx context.Context, id string) error {
	acc, fb, err := t.account(ctx)
	if err != nil {
		return err
	}
	col := t.expenses(acc.User.ID)

	_, err = withFallback(ctx, fb, "delete_expense",
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, t.api.DeleteExpense(ctx, id)
		},
		func(ctx context.Context, _ struct{}) error {
			_, err := col.Remove(ctx, id)
			return err
		},
		func(ctx context.Context) (struct{}, error) {
			removed, err := col.Remove(ctx, id)
			if err == nil && !removed {
				err = ErrNotFound
			}
			return struct{}{}, err
		},
	)
	return err
}

func (t *Tracker) Expense(ctx context.Context, id string) (core.Expense, error) {
	acc, fb, err := t.account(ctx)
	if err != nil {
		return core.Expense{}, err
	}
	col := t.expenses(acc.User.ID)

	return withFallback(ctx, fb, "get_expense",
		func(ctx context.Context) (core.Expense, error) {
			return t.api.GetExpense(ctx, id)
		},
		col.Put,
		func(ctx context.Context) (core.Expense, error) {
			e, ok, err := col.Get(ctx, id)
			if err == nil && !ok {
				err = ErrNotFound
			}
			return e, err
		},
	)
}

// Expenses lists one page of expenses, newest first. An unfiltered listing
// that covers every expense replaces the shadow copy; other pages are merged
// into it.
func (t *Tracker) Expenses(ctx context.Context, q ExpenseQuery) (ExpensePage, error) {
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return ExpensePage{}, core.ErrInvalidDate
	}
	acc, fb, err := t.account(ctx)
	if err != nil {
		return ExpensePage{}, err
	}
	col := t.expenses(acc.User.ID)

	return withFallback(ctx, fb, "list_expenses",
		func(ctx context.Context) (ExpensePage, error) {
			return t.api.ListExpenses(ctx, q)
		},
		func(ctx context.Context, page ExpensePage) error {
			unfiltered := q.From.IsZero() && q.To.IsZero() && q.Category == "" && q.Offset == 0
			if unfiltered && len(page.Items) >= page.Total {
				return col.Replace(ctx, page.Items)
			}
			for _, e := range page.Items {
				if err := col.Put(ctx, e); err != nil {
					return err
				}
			}
			return nil
		},
		func(ctx context.Context) (ExpensePage, error) {
			all, err := col.All(ctx)
			if err != nil {
				return ExpensePage{}, err
			}
			return filterExpenses(all, q), nil
		},
	)
}

// filterExpenses applies q to the shadow copy the way the backend applies it
// to its table.
func filterExpenses(all []core.Expense, q ExpenseQuery) ExpensePage {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := max(q.Offset, 0)
	category := core.NormalizeCategory(q.Category)

	matched := make([]core.Expense, 0, len(all))
	for _, e := range all {
		if !q.From.IsZero() && e.Date.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && e.Date.After(q.To) {
			continue
		}
		if category != "" && e.Category != category {
			continue
		}
		matched = append(matched, e)
	}
	core.SortExpenses(matched)

	page := ExpensePage{Items: []core.Expense{}, Total: len(matched), Limit: limit, Offset: offset}
	if offset < len(matched) {
		end := min(offset+limit, len(matched))
		page.Items = matched[offset:end]
	}
	return page
}

// monthSpent sums the shadow copy for one month.
func (t *Tracker) monthSpent(ctx context.Context, userID string, year, month int) (core.MonthOverview, error) {
	all, err := t.expenses(userID).All(ctx)
	if err != nil {
		return core.MonthOverview{}, err
	}
	return core.BuildOverview(year, month, all), nil
}

func storedBudget(b core.BudgetSettings) core.BudgetSettings {
	return core.BudgetSettings{
		UserID:         b.UserID,
		MonthlyBudget:  b.MonthlyBudget,
		AlertThreshold: b.AlertThreshold,
		UpdatedAt:      b.UpdatedAt,
	}
}

func (t *Tracker) localBudget(ctx context.Context, userID string, year, month int) (core.BudgetSettings, error) {
	b, ok, err := t.budgetDoc(userID).Load(ctx)
	if err != nil {
		return core.BudgetSettings{}, err
	}
	if !ok {
		b = core.DefaultBudget(userID)
	}
	ov, err := t.monthSpent(ctx, userID, year, month)
	if err != nil {
		return core.BudgetSettings{}, err
	}
	return b.WithSpent(year, month, ov.Total), nil
}

// Budget returns the settings with spent, remaining and used percent for the
// month. Zero year or month means the current one.
func (t *Tracker) Budget(ctx context.Context, year, month int) (core.BudgetSettings, error) {
	year, month = t.resolveMonth(year, month)
	acc, fb, err := t.account(ctx)
	if err != nil {
		return core.BudgetSettings{}, err
	}
	d := t.budgetDoc(acc.User.ID)

	return withFallback(ctx, fb, "get_budget",
		func(ctx context.Context) (core.BudgetSettings, error) {
			return t.api.Budget(ctx, year, month)
		},
		func(ctx context.Context, b core.BudgetSettings) error {
			return d.Save(ctx, storedBudget(b))
		},
		func(ctx context.Context) (core.BudgetSettings, error) {
			return t.localBudget(ctx, acc.User.ID, year, month)
		},
	)
}

// SetBudget changes the monthly budget. A zero threshold keeps the default.
func (t *Tracker) SetBudget(ctx context.Context, in BudgetInput) (core.BudgetSettings, error) {
	if in.AlertThreshold == 0 {
		in.AlertThreshold = core.DefaultAlertPercent
	}
	if err := (core.BudgetSettings{MonthlyBudget: in.MonthlyBudget, AlertThreshold: in.AlertThreshold}).Validate(); err != nil {
		return core.BudgetSettings{}, err
	}
	acc, fb, err := t.account(ctx)
	if err != nil {
		return core.BudgetSettings{}, err
	}
	d := t.budgetDoc(acc.User.ID)

	return withFallback(ctx, fb, "set_budget",
		func(ctx context.Context) (core.BudgetSettings, error) {
			return t.api.UpdateBudget(ctx, in)
		},
		func(ctx context.Context, b core.BudgetSettings) error {
			return d.Save(ctx, storedBudget(b))
		},
		func(ctx context.Context) (core.BudgetSettings, error) {
			b := core.BudgetSettings{
				UserID:         acc.User.ID,
				MonthlyBudget:  in.MonthlyBudget,
				AlertThreshold: in.AlertThreshold,
				UpdatedAt:      t.now().UTC(),
			}
			if err := d.Save(ctx, b); err != nil {
				return core.BudgetSettings{}, err
			}
			year, month := t.resolveMonth(0, 0)
			return t.localBudget(ctx, acc.User.ID, year, month)
		},
	)
}

// Profile returns the current user's profile.
func (t *Tracker) Profile(ctx context.Context) (core.User, error) {
	acc, fb, err := t.account(ctx)
	if err != nil {
		return core.User{}, err
	}
	d := t.profileDoc(acc.User.ID)

	return withFallback(ctx, fb, "get_profile",
		t.api.Profile,
		func(ctx context.Context, u core.User) error {
			if err := d.Save(ctx, u); err != nil {
				return err
			}
			return t.session.updateUser(ctx, u)
		},
		func(ctx context.Context) (core.User, error) {
			u, ok, err := d.Load(ctx)
			if err != nil {
				return core.User{}, err
			}
			if !ok {
				u = acc.User
			}
			return u, nil
		},
	)
}

// UpdateProfile changes the fields set in in.
func (t *Tracker) UpdateProfile(ctx context.Context, in ProfileInput) (core.User, error) {
	acc, fb, err := t.account(ctx)
	if err != nil {
		return core.User{}, err
	}
	d := t.profileDoc(acc.User.ID)

	mirror := func(ctx context.Context, u core.User) error {
		if err := d.Save(ctx, u); err != nil {
			return err
		}
		return t.session.updateUser(ctx, u)
	}

	return withFallback(ctx, fb, "update_profile",
		func(ctx context.Context) (core.User, error) {
			return t.api.UpdateProfile(ctx, in)
		},
		mirror,
		func(ctx context.Context) (core.User, error) {
			u, ok, err := d.Load(ctx)
			if err != nil {
				return core.User{}, err
			}
			if !ok {
				u = acc.User
			}
			if in.Name != nil {
				u.Name = *in.Name
			}
			if in.Email != nil {
				u.Email = *in.Email
			}
			if in.Currency != nil {
				u.Currency = *in.Currency
			}
			if in.Avatar != nil {
				u.Avatar = *in.Avatar
			}
			u.Normalize()
			if err := u.Validate(); err != nil {
				return core.User{}, err
			}
			users, _, err := t.session.usersDoc().Load(ctx)
			if err != nil {
				return core.User{}, err
			}
			if other, taken := users[u.Email]; taken && other.User.ID != u.ID {
				return core.User{}, ErrEmailTaken
			}
			if err := mirror(ctx, u); err != nil {
				return core.User{}, err
			}
			return u, nil
		},
	)
}

// ChangePassword requires the current password. Offline it only changes the
// password this device accepts.
func (t *Tracker) ChangePassword(ctx context.Context, current, next string) error {
	if len(next) < minPasswordLength {
		return ErrWeakPassword
	}
	acc, fb, err := t.account(ctx)
	if err != nil {
		return err
	}

	_, err = withFallback(ctx, fb, "change_password",
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, t.api.ChangePassword(ctx, current, next)
		},
		func(ctx context.Context, _ struct{}) error {
			return t.session.rememberUser(ctx, acc.User, next)
		},
		func(ctx context.Context) (struct{}, error) {
			if _, err := t.session.localLogin(ctx, acc.User.Email, current); err != nil {
				return struct{}{}, err
			}
			return struct{}{}, t.session.rememberUser(ctx, acc.User, next)
		},
	)
	return err
}
