package client

import (
	"context"
	"sort"
	"strings"

	"expensetracker/internal/core"
)

func (t *Tracker) recurring(userID string) collection[core.RecurringExpense] {
	return collection[core.RecurringExpense]{store: t.store, key: userKey(userID, "recurring"), id: func(r core.RecurringExpense) string { return r.ID }}
}

func prepareRecurring(in RecurringInput) (RecurringInput, core.RecurringExpense, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Category = strings.TrimSpace(in.Category)
	in.Frequency = core.Frequency(strings.ToLower(strings.TrimSpace(string(in.Frequency))))
	if in.Amount.Cents <= 0 {
		return in, core.RecurringExpense{}, core.ErrInvalidAmount
	}
	re := core.RecurringExpense{
		Title:          in.Title,
		Amount:         in.Amount,
		Category:       in.Category,
		Frequency:      in.Frequency,
		NextOccurrence: in.NextOccurrence,
		Active:         in.Active == nil || *in.Active,
	}
	re.Normalize()
	if err := re.Validate(); err != nil {
		return in, core.RecurringExpense{}, err
	}
	return in, re, nil
}

// Recurring lists the user's templates ordered by next occurrence.
func (t *Tracker) Recurring(ctx context.Context) ([]core.RecurringExpense, error) {
	acc, fb, err := t.account(ctx)
	if err != nil {
		return nil, err
	}
	col := t.recurring(acc.User.ID)

	return withFallback(ctx, fb, "list_recurring",
		t.api.ListRecurring,
		col.Replace,
		func(ctx context.Context) ([]core.RecurringExpense, error) {
			items, err := col.All(ctx)
			if err != nil {
				return nil, err
			}
			sort.SliceStable(items, func(i, j int) bool {
				return items[i].NextOccurrence.Before(items[j].NextOccurrence)
			})
			return items, nil
		},
	)
}

func (t *Tracker) AddRecurring(ctx context.Context, in RecurringInput) (core.RecurringExpense, error) {
	in, re, err := prepareRecurring(in)
	if err != nil {
		return core.RecurringExpense{}, err
	}
	acc, fb, err := t.account(ctx)
	if err != nil {
		return core.RecurringExpense{}, err
	}
	col := t.recurring(acc.User.ID)

	return withFallback(ctx, fb, "add_recurring",
		func(ctx context.Context) (core.RecurringExpense, error) {
			return t.api.CreateRecurring(ctx, in)
		},
		col.Put,
		func(ctx context.Context) (core.RecurringExpense, error) {
			re.ID = localID()
			re.UserID = acc.User.ID
			re.CreatedAt = t.now().UTC()
			return re, col.Put(ctx, re)
		},
	)
}

func (t *Tracker) UpdateRecurring(ctx context.Context, id string, in RecurringInput) (core.RecurringExpense, error) {
	in, re, err := prepareRecurring(in)
	if err != nil {
		return core.RecurringExpense{}, err
	}
	acc, fb, err := t.account(ctx)
	if err != nil {
		return core.RecurringExpense{}, err
	}
	col := t.recurring(acc.User.ID)

	return withFallback(ctx, fb, "update_recurring",
		func(ctx context.Context) (core.RecurringExpense, error) {
			return t.api.UpdateRecurring(ctx, id, in)
		},
		col.Put,
		func(ctx context.Context) (core.RecurringExpense, error) {
			existing, ok, err := col.Get(ctx, id)
			if err != nil {
				return core.RecurringExpense{}, err
			}
			if !ok {
				return core.RecurringExpense{}, ErrNotFound
			}
			re.ID = existing.ID
			re.UserID = existing.UserID
			re.CreatedAt = existing.CreatedAt
			if re.NextOccurrence.Equal(existing.NextOccurrence.Time) {
				re.AnchorDay = existing.AnchorDay
			}
			if in.Active == nil {
				re.Active = existing.Active
			}
			return re, col.Put(ctx, re)
		},
	)
}

func (t *Tracker) DeleteRecurring(ctx context.Context, id string) error {
	acc, fb, err := t.account(ctx)
	if err != nil {
		return err
	}
	col := t.recurring(acc.User.ID)

	_, err = withFallback(ctx, fb, "delete_recurring",
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, t.api.DeleteRecurring(ctx, id)
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

// SetRecurringActive pauses (false) or resumes (true) a template. Resuming
// moves the next occurrence past the days spent paused.
func (t *Tracker) SetRecurringActive(ctx context.Context, id string, active bool) (core.RecurringExpense, error) {
	acc, fb, err := t.account(ctx)
	if err != nil {
		return core.RecurringExpense{}, err
	}
	col := t.recurring(acc.User.ID)

	return withFallback(ctx, fb, "set_recurring_active",
		func(ctx context.Context) (core.RecurringExpense, error) {
			return t.api.SetRecurringActive(ctx, id, active)
		},
		col.Put,
		func(ctx context.Context) (core.RecurringExpense, error) {
			re, ok, err := col.Get(ctx, id)
			if err != nil {
				return core.RecurringExpense{}, err
			}
			if !ok {
				return core.RecurringExpense{}, ErrNotFound
			}
			if active && !re.Active {
				re.NextOccurrence = re.NextOnOrAfter(t.today())
			}
			re.Active = active
			return re, col.Put(ctx, re)
		},
	)
}
