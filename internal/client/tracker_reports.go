package client

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
)

func (t *Tracker) notifications(userID string) collection[core.Notification] {
	return collection[core.Notification]{store: t.store, key: userKey(userID, "notifications"), id: func(n core.Notification) string { return n.ID }}
}

func (t *Tracker) alertsDoc(userID string) doc[map[string]bool] {
	return doc[map[string]bool]{store: t.store, key: userKey(userID, "alerts")}
}

// MonthlyReport returns totals per category for the month.
func (t *Tracker) MonthlyReport(ctx context.Context, year, month int) (core.MonthOverview, error) {
	year, month = t.resolveMonth(year, month)
	acc, fb, err := t.account(ctx)
	if err != nil {
		return core.MonthOverview{}, err
	}

	return withFallback(ctx, fb, "monthly_report",
		func(ctx context.Context) (core.MonthOverview, error) {
			return t.api.MonthlyReport(ctx, year, month)
		},
		nil,
		func(ctx context.Context) (core.MonthOverview, error) {
			return t.monthSpent(ctx, acc.User.ID, year, month)
		},
	)
}

// Trend returns monthly totals for the months ending at year/month, oldest
// first.
func (t *Tracker) Trend(ctx context.Context, year, month, months int) ([]core.TrendPoint, error) {
	year, month = t.resolveMonth(year, month)
	if months <= 0 {
		months = defaultTrendMonths
	}
	months = min(months, maxTrendMonths)
	acc, fb, err := t.account(ctx)
	if err != nil {
		return nil, err
	}

	return withFallback(ctx, fb, "trend_report",
		func(ctx context.Context) ([]core.TrendPoint, error) {
			return t.api.Trend(ctx, year, month, months)
		},
		nil,
		func(ctx context.Context) ([]core.TrendPoint, error) {
			all, err := t.expenses(acc.User.ID).All(ctx)
			if err != nil {
				return nil, err
			}
			periods := core.PreviousMonths(year, month, months)
			points := make([]core.TrendPoint, len(periods))
			for i, p := range periods {
				points[i] = core.TrendPoint{Year: p[0], Month: p[1], Total: core.BuildOverview(p[0], p[1], all).Total}
			}
			return points, nil
		},
	)
}

// Dashboard assembles the month overview, budget, recent expenses and
// unread count.
func (t *Tracker) Dashboard(ctx context.Context, year, month int) (core.Summary, error) {
	year, month = t.resolveMonth(year, month)
	acc, fb, err := t.account(ctx)
	if err != nil {
		return core.Summary{}, err
	}
	userID := acc.User.ID

	return withFallback(ctx, fb, "dashboard",
		func(ctx context.Context) (core.Summary, error) {
			return t.api.Summary(ctx, year, month)
		},
		func(ctx context.Context, s core.Summary) error {
			if err := t.budgetDoc(userID).Save(ctx, storedBudget(s.Budget)); err != nil {
				return err
			}
			col := t.expenses(userID)
			for _, e := range s.Recent {
				if err := col.Put(ctx, e); err != nil {
					return err
				}
			}
			return nil
		},
		func(ctx context.Context) (core.Summary, error) {
			var s core.Summary
			all, err := t.expenses(userID).All(ctx)
			if err != nil {
				return s, err
			}
			s.Overview = core.BuildOverview(year, month, all)
			if s.Budget, err = t.localBudget(ctx, userID, year, month); err != nil {
				return s, err
			}
			s.BudgetStatus = s.Budget.Status()

			from, to := core.MonthRange(year, month)
			s.Recent = filterExpenses(all, ExpenseQuery{From: from, To: to, Limit: recentExpenses}).Items

			notes, err := t.notifications(userID).All(ctx)
			if err != nil {
				return s, err
			}
			for _, n := range notes {
				if !n.Read {
					s.Unread++
				}
			}
			return s, nil
		},
	)
}

// Notifications lists notifications newest first.
func (t *Tracker) Notifications(ctx context.Context, unreadOnly bool) (NotificationList, error) {
	acc, fb, err := t.account(ctx)
	if err != nil {
		return NotificationList{}, err
	}
	col := t.notifications(acc.User.ID)

	return withFallback(ctx, fb, "list_notifications",
		func(ctx context.Context) (NotificationList, error) {
			return t.api.Notifications(ctx, unreadOnly)
		},
		func(ctx context.Context, l NotificationList) error {
			if !unreadOnly {
				return col.Replace(ctx, l.Items)
			}
			for _, n := range l.Items {
				if err := col.Put(ctx, n); err != nil {
					return err
				}
			}
			return nil
		},
		func(ctx context.Context) (NotificationList, error) {
			all, err := col.All(ctx)
			if err != nil {
				return NotificationList{}, err
			}
			slices.Reverse(all)
			sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
			list := NotificationList{Items: []core.Notification{}}
			for _, n := range all {
				if !n.Read {
					list.UnreadCount++
				}
				if unreadOnly && n.Read {
					continue
				}
				list.Items = append(list.Items, n)
			}
			return list, nil
		},
	)
}

func (t *Tracker) MarkNotificationRead(ctx context.Context, id string) error {
	acc, fb, err := t.account(ctx)
	if err != nil {
		return err
	}
	col := t.notifications(acc.User.ID)
	markLocal := func(ctx context.Context) (bool, error) {
		n, ok, err := col.Get(ctx, id)
		if err != nil || !ok {
			return ok, err
		}
		n.Read = true
		return true, col.Put(ctx, n)
	}

	_, err = withFallback(ctx, fb, "mark_notification_read",
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, t.api.MarkNotificationRead(ctx, id)
		},
		func(ctx context.Context, _ struct{}) error {
			_, err := markLocal(ctx)
			return err
		},
		func(ctx context.Context) (struct{}, error) {
			found, err := markLocal(ctx)
			if err == nil && !found {
				err = ErrNotFound
			}
			return struct{}{}, err
		},
	)
	return err
}

// MarkAllNotificationsRead returns how many notifications changed.
func (t *Tracker) MarkAllNotificationsRead(ctx context.Context) (int, error) {
	acc, fb, err := t.account(ctx)
	if err != nil {
		return 0, err
	}
	col := t.notifications(acc.User.ID)
	markLocal := func(ctx context.Context) (int, error) {
		all, err := col.All(ctx)
		if err != nil {
			return 0, err
		}
		updated := 0
		for i := range all {
			if !all[i].Read {
				all[i].Read = true
				updated++
			}
		}
		return updated, col.Replace(ctx, all)
	}

	return withFallback(ctx, fb, "mark_all_notifications_read",
		t.api.MarkAllNotificationsRead,
		func(ctx context.Context, _ int) error {
			_, err := markLocal(ctx)
			return err
		},
		markLocal,
	)
}

// checkBudgetLocally raises the budget notification for an offline write.
// Each kind is raised once per month, and exceeding the budget also consumes
// the threshold alert.
func (t *Tracker) checkBudgetLocally(ctx context.Context, userID string, year, month int) {
	if err := t.raiseLocalAlert(ctx, userID, year, month); err != nil {
		t.logger.Warn("Local budget check failed",
			log.FieldUserID, userID,
			log.FieldYear, year,
			log.FieldMonth, month,
			log.FieldError, err)
	}
}

func (t *Tracker) raiseLocalAlert(ctx context.Context, userID string, year, month int) error {
	b, err := t.localBudget(ctx, userID, year, month)
	if err != nil {
		return err
	}

	var kinds []core.NotificationKind
	switch b.Status() {
	case core.BudgetExceeded:
		kinds = []core.NotificationKind{core.NotifyBudgetExceeded, core.NotifyBudgetAlert}
	case core.BudgetAlert:
		kinds = []core.NotificationKind{core.NotifyBudgetAlert}
	default:
		return nil
	}

	alerts := t.alertsDoc(userID)
	raised, _, err := alerts.Load(ctx)
	if err != nil {
		return err
	}
	if raised == nil {
		raised = map[string]bool{}
	}

	var due core.NotificationKind
	for _, kind := range kinds {
		key := fmt.Sprintf("%04d-%02d:%s", year, month, kind)
		if raised[key] {
			continue
		}
		raised[key] = true
		if due == "" {
			due = kind
		}
	}
	if due == "" {
		return nil
	}
	if err := alerts.Save(ctx, raised); err != nil {
		return err
	}

	n := core.Notification{
		ID:        localID(),
		UserID:    userID,
		Kind:      due,
		Message:   alertMessage(due, b),
		CreatedAt: t.now().UTC(),
	}
	return t.notifications(userID).Put(ctx, n)
}

func alertMessage(kind core.NotificationKind, b core.BudgetSettings) string {
	if kind == core.NotifyBudgetExceeded {
		return fmt.Sprintf("Monthly budget exceeded for %04d-%02d: spent %s of %s (%.1f%%).",
			b.Year, b.Month, b.Spent.Decimal(), b.MonthlyBudget.Decimal(), b.UsedPercent)
	}
	return fmt.Sprintf("You have used %.1f%% of your %04d-%02d budget (%s of %s).",
		b.UsedPercent, b.Year, b.Month, b.Spent.Decimal(), b.MonthlyBudget.Decimal())
}
