package services

import (
	"context"
	"fmt"
	"time"

	"expensetracker/internal/cache"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/storage"

	"golang.org/x/sync/errgroup"
)

const (
	MaxTrendMonths     = 36
	DefaultTrendMonths = 6
	recentExpenses     = 5
	trendConcurrency   = 4
)

// ReportService computes month overviews, trends and the dashboard summary.
// Overviews and trends are cached per user until the next write.
type ReportService struct {
	store         ReportStore
	expenses      ExpenseStore
	budgets       *BudgetService
	notifications *NotificationService
	overviews     cache.Cache[core.MonthOverview]
	trends        cache.Cache[[]core.TrendPoint]
	logger        *log.Logger
	now           func() time.Time
}

func NewReportService(
	store ReportStore,
	expenses ExpenseStore,
	budgets *BudgetService,
	notifications *NotificationService,
	overviews cache.Cache[core.MonthOverview],
	trends cache.Cache[[]core.TrendPoint],
	logger *log.Logger,
) *ReportService {
	return &ReportService{
		store:         store,
		expenses:      expenses,
		budgets:       budgets,
		notifications: notifications,
		overviews:     overviews,
		trends:        trends,
		logger:        logger.WithComponent(log.ComponentReport),
		now:           time.Now,
	}
}

func userPrefix(userID string) string { return "u:" + userID + ":" }

// Invalidate drops every cached report of the user.
func (s *ReportService) Invalidate(ctx context.Context, userID string) {
	n := 0
	if s.overviews != nil {
		n += s.overviews.DeletePrefix(ctx, userPrefix(userID))
	}
	if s.trends != nil {
		n += s.trends.DeletePrefix(ctx, userPrefix(userID))
	}
	if n > 0 {
		s.logger.DebugContext(ctx, "Report cache invalidated", log.FieldUserID, userID, log.FieldCount, n)
	}
}

func (s *ReportService) MonthOverview(ctx context.Context, userID string, year, month int) (core.MonthOverview, error) {
	year, month = s.resolve(year, month)
	if month < 1 || month > 12 {
		return core.MonthOverview{}, core.ErrInvalidDate
	}
	key := fmt.Sprintf("%smonth:%04d-%02d", userPrefix(userID), year, month)
	if s.overviews != nil {
		if ov, ok := s.overviews.Get(ctx, key); ok {
			return ov, nil
		}
	}
	ov, err := s.store.ReadMonthOverview(ctx, userID, year, month)
	if err != nil {
		return core.MonthOverview{}, fmt.Errorf("month overview: %w", err)
	}
	if s.overviews != nil {
		s.overviews.Set(ctx, key, ov)
	}
	return ov, nil
}

// Trend returns monthly totals for the months ending at endYear/endMonth,
// oldest first. Months are queried concurrently.
func (s *ReportService) Trend(ctx context.Context, userID string, endYear, endMonth, months int) ([]core.TrendPoint, error) {
	endYear, endMonth = s.resolve(endYear, endMonth)
	if endMonth < 1 || endMonth > 12 {
		return nil, core.ErrInvalidDate
	}
	if months <= 0 {
		months = DefaultTrendMonths
	}
	if months > MaxTrendMonths {
		months = MaxTrendMonths
	}

	key := fmt.Sprintf("%strend:%04d-%02d:%d", userPrefix(userID), endYear, endMonth, months)
	if s.trends != nil {
		if pts, ok := s.trends.Get(ctx, key); ok {
			return pts, nil
		}
	}

	periods := core.PreviousMonths(endYear, endMonth, months)
	points := make([]core.TrendPoint, len(periods))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(trendConcurrency)
	for i, p := range periods {
		g.Go(func() error {
			total, err := s.store.MonthTotal(gctx, userID, p[0], p[1])
			if err != nil {
				return fmt.Errorf("total for %04d-%02d: %w", p[0], p[1], err)
			}
			points[i] = core.TrendPoint{Year: p[0], Month: p[1], Total: total}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if s.trends != nil {
		s.trends.Set(ctx, key, points)
	}
	return points, nil
}

// Summary assembles the dashboard: overview, budget, recent expenses and the
// unread notification count, fetched concurrently.
func (s *ReportService) Summary(ctx context.Context, userID string, year, month int) (core.Summary, error) {
	year, month = s.resolve(year, month)
	var sum core.Summary

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ov, err := s.MonthOverview(gctx, userID, year, month)
		sum.Overview = ov
		return err
	})
	g.Go(func() error {
		b, err := s.budgets.Get(gctx, userID, year, month)
		sum.Budget = b
		return err
	})
	g.Go(func() error {
		from, to := core.MonthRange(year, month)
		items, err := s.expenses.ListExpenses(gctx, userID, storage.ExpenseFilter{From: from, To: to, Limit: recentExpenses})
		sum.Recent = items
		return err
	})
	if s.notifications != nil {
		g.Go(func() error {
			n, err := s.notifications.UnreadCount(gctx, userID)
			sum.Unread = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return core.Summary{}, fmt.Errorf("summary: %w", err)
	}
	sum.BudgetStatus = sum.Budget.Status()
	return sum, nil
}

func (s *ReportService) resolve(year, month int) (int, int) {
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
