package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"expensetracker/internal/amqp"
	"expensetracker/internal/cache"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/storage"

	"github.com/stretchr/testify/suite"
)

// fakePublisher records published events.
type fakePublisher struct {
	mu     sync.Mutex
	events []*amqp.ExpenseEvent
	err    error
}

func (p *fakePublisher) PublishExpenseEvent(_ context.Context, ev *amqp.ExpenseEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

// countingInvalidator counts invalidations per user.
type countingInvalidator struct {
	mu    sync.Mutex
	calls map[string]int
}

func (c *countingInvalidator) Invalidate(_ context.Context, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = map[string]int{}
	}
	c.calls[userID]++
}

func (c *countingInvalidator) count(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[userID]
}

// ServicesSuite runs the services against a real SQLite repository.
type ServicesSuite struct {
	suite.Suite
	ctx    context.Context
	repo   *storage.SQLiteRepository
	logger *log.Logger
	alice  core.User
	bob    core.User
	now    time.Time

	notifications *NotificationService
	budgets       *BudgetService
	monitor       *BudgetMonitor
	reports       *ReportService
}

func TestServicesSuite(t *testing.T) {
	suite.Run(t, new(ServicesSuite))
}

func (s *ServicesSuite) SetupTest() {
	repo, err := storage.NewSQLiteRepository(filepath.Join(s.T().TempDir(), "services.db"))
	s.Require().NoError(err)
	s.repo = repo
	s.ctx = context.Background()
	s.logger = log.Discard()
	s.now = time.Date(2025, 4, 15, 10, 0, 0, 0, time.UTC)

	s.alice, err = repo.CreateUser(s.ctx, core.User{Name: "Alice", Email: "alice@example.com", Currency: "EUR", PasswordHash: "x"})
	s.Require().NoError(err)
	s.bob, err = repo.CreateUser(s.ctx, core.User{Name: "Bob", Email: "bob@example.com", Currency: "EUR", PasswordHash: "x"})
	s.Require().NoError(err)

	s.notifications = NewNotificationService(repo, s.logger)
	s.budgets = NewBudgetService(repo, nil, s.logger)
	s.budgets.now = func() time.Time { return s.now }
	s.monitor = NewBudgetMonitor(s.budgets, s.notifications)
	s.reports = NewReportService(repo, repo, s.budgets, s.notifications,
		cache.NewLRUCache[core.MonthOverview](100, time.Hour),
		cache.NewLRUCache[[]core.TrendPoint](100, time.Hour),
		s.logger)
	s.reports.now = func() time.Time { return s.now }
}

func (s *ServicesSuite) TearDownTest() {
	s.Require().NoError(s.repo.Close())
}

func (s *ServicesSuite) addExpense(userID, title string, cents int64, d core.Date) core.Expense {
	e, err := s.repo.CreateExpense(s.ctx, core.Expense{
		UserID: userID, Title: title, Amount: core.MoneyFromCents(cents), Category: "food", Date: d,
	})
	s.Require().NoError(err)
	return e
}

func (s *ServicesSuite) setBudget(userID string, cents int64, threshold int) {
	_, err := s.budgets.Update(s.ctx, userID, core.MoneyFromCents(cents), threshold)
	s.Require().NoError(err)
}

func (s *ServicesSuite) unread(userID string) []core.Notification {
	items, err := s.notifications.List(s.ctx, userID, true)
	s.Require().NoError(err)
	return items
}

// --- expenses ---

func (s *ServicesSuite) TestExpenseCreateNormalizesAndPublishes() {
	pub := &fakePublisher{}
	inv := &countingInvalidator{}
	svc := NewExpenseService(s.repo, pub, inv, s.monitor, s.logger)

	created, err := svc.Create(s.ctx, s.alice.ID, core.Expense{
		Title: "  Lunch ", Amount: core.MoneyFromCents(1250), Category: " Food ", Date: core.NewDate(2025, 4, 2),
	})
	s.Require().NoError(err)
	s.Equal("Lunch", created.Title)
	s.Equal("food", created.Category)
	s.Equal(s.alice.ID, created.UserID)
	s.NotEmpty(created.ID)

	s.Equal([]amqp.EventType{amqp.EventExpenseCreated}, pub.types())
	s.Equal(created.ID, pub.events[0].ExpenseID)
	s.Equal(1, inv.count(s.alice.ID))
}

func (s *ServicesSuite) TestExpenseCreateRejectsInvalid() {
	pub := &fakePublisher{}
	svc := NewExpenseService(s.repo, pub, nil, nil, s.logger)

	_, err := svc.Create(s.ctx, s.alice.ID, core.Expense{Title: "x", Category: "food", Date: core.NewDate(2025, 4, 2)})
	s.ErrorIs(err, core.ErrInvalidAmount)
	_, err = svc.Create(s.ctx, s.alice.ID, core.Expense{Title: " ", Amount: core.MoneyFromCents(1), Category: "food", Date: core.NewDate(2025, 4, 2)})
	s.ErrorIs(err, core.ErrEmptyTitle)
	s.Empty(pub.types())
}

func (s *ServicesSuite) TestExpensePublishFailureDoesNotFailWrite() {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewExpenseService(s.repo, pub, nil, nil, s.logger)

	created, err := svc.Create(s.ctx, s.alice.ID, core.Expense{
		Title: "Taxi", Amount: core.MoneyFromCents(900), Category: "transport", Date: core.NewDate(2025, 4, 3),
	})
	s.Require().NoError(err)

	_, err = s.repo.GetExpense(s.ctx, s.alice.ID, created.ID)
	s.NoError(err)
}

func (s *ServicesSuite) TestExpenseWithoutPublisherChecksBudgetSynchronously() {
	s.setBudget(s.alice.ID, 10000, 80)
	svc := NewExpenseService(s.repo, nil, nil, s.monitor, s.logger)

	_, err := svc.Create(s.ctx, s.alice.ID, core.Expense{
		Title: "Groceries", Amount: core.MoneyFromCents(8500), Category: "food", Date: core.NewDate(2025, 4, 3),
	})
	s.Require().NoError(err)

	items := s.unread(s.alice.ID)
	s.Require().Len(items, 1)
	s.Equal(core.NotifyBudgetAlert, items[0].Kind)
	s.Contains(items[0].Message, "85.0%")
}

func (s *ServicesSuite) TestExpenseUpdateDeleteAndScoping() {
	pub := &fakePublisher{}
	svc := NewExpenseService(s.repo, pub, nil, nil, s.logger)
	e := s.addExpense(s.alice.ID, "Coffee", 300, core.NewDate(2025, 4, 1))

	updated, err := svc.Update(s.ctx, s.alice.ID, e.ID, core.Expense{
		Title: "Coffee beans", Amount: core.MoneyFromCents(1500), Category: "Food", Date: core.NewDate(2025, 3, 30),
	})
	s.Require().NoError(err)
	s.Equal("Coffee beans", updated.Title)
	s.Equal(int64(1500), updated.Amount.Cents)

	_, err = svc.Update(s.ctx, s.bob.ID, e.ID, updated)
	s.ErrorIs(err, storage.ErrNotFound)
	s.ErrorIs(svc.Delete(s.ctx, s.bob.ID, e.ID), storage.ErrNotFound)

	s.Require().NoError(svc.Delete(s.ctx, s.alice.ID, e.ID))
	_, err = svc.Get(s.ctx, s.alice.ID, e.ID)
	s.ErrorIs(err, storage.ErrNotFound)

	s.Equal([]amqp.EventType{amqp.EventExpenseUpdated, amqp.EventExpenseDeleted}, pub.types())
}

func (s *ServicesSuite) TestExpenseListPaging() {
	svc := NewExpenseService(s.repo, nil, nil, nil, s.logger)
	for i := 1; i <= 3; i++ {
		s.addExpense(s.alice.ID, "e", int64(i*100), core.NewDate(2025, 4, i))
	}
	s.addExpense(s.bob.ID, "bob", 100, core.NewDate(2025, 4, 1))

	page, err := svc.List(s.ctx, s.alice.ID, storage.ExpenseFilter{Limit: 2})
	s.Require().NoError(err)
	s.Equal(3, page.Total)
	s.Len(page.Items, 2)
	s.Equal(core.NewDate(2025, 4, 3), page.Items[0].Date)

	page, err = svc.List(s.ctx, s.alice.ID, storage.ExpenseFilter{Limit: 10000, Offset: -5})
	s.Require().NoError(err)
	s.Equal(MaxPageSize, page.Limit)
	s.Equal(0, page.Offset)

	_, err = svc.List(s.ctx, s.alice.ID, storage.ExpenseFilter{From: core.NewDate(2025, 4, 10), To: core.NewDate(2025, 4, 1)})
	s.ErrorIs(err, core.ErrInvalidDate)
}

// --- budget ---

func (s *ServicesSuite) TestBudgetDerivedFigures() {
	s.setBudget(s.alice.ID, 10000, 80)
	s.addExpense(s.alice.ID, "a", 12050, core.NewDate(2025, 4, 2))

	b, err := s.budgets.Get(s.ctx, s.alice.ID, 0, 0)
	s.Require().NoError(err)
	s.Equal(2025, b.Year)
	s.Equal(4, b.Month)
	s.Equal(int64(12050), b.Spent.Cents)
	s.Equal(int64(-2050), b.Remaining.Cents)
	s.Equal(120.5, b.UsedPercent)
	s.Equal(core.BudgetExceeded, b.Status())

	_, err = s.budgets.Update(s.ctx, s.alice.ID, core.MoneyFromCents(100), 0)
	s.ErrorIs(err, core.ErrInvalidThreshold)
	_, err = s.budgets.Get(s.ctx, s.alice.ID, 2025, 13)
	s.ErrorIs(err, core.ErrInvalidDate)
}

func (s *ServicesSuite) TestBudgetEvaluateRaisesEachKindOnce() {
	s.setBudget(s.alice.ID, 10000, 80)

	s.addExpense(s.alice.ID, "a", 8000, core.NewDate(2025, 4, 2))
	kind, _, err := s.budgets.Evaluate(s.ctx, s.alice.ID, 2025, 4)
	s.Require().NoError(err)
	s.Equal(core.NotifyBudgetAlert, kind)

	kind, _, err = s.budgets.Evaluate(s.ctx, s.alice.ID, 2025, 4)
	s.Require().NoError(err)
	s.Empty(kind)

	s.addExpense(s.alice.ID, "b", 3000, core.NewDate(2025, 4, 3))
	kind, _, err = s.budgets.Evaluate(s.ctx, s.alice.ID, 2025, 4)
	s.Require().NoError(err)
	s.Equal(core.NotifyBudgetExceeded, kind)

	kind, _, err = s.budgets.Evaluate(s.ctx, s.alice.ID, 2025, 4)
	s.Require().NoError(err)
	s.Empty(kind)

	// Another month starts fresh.
	s.addExpense(s.alice.ID, "c", 20000, core.NewDate(2025, 5, 1))
	kind, _, err = s.budgets.Evaluate(s.ctx, s.alice.ID, 2025, 5)
	s.Require().NoError(err)
	s.Equal(core.NotifyBudgetExceeded, kind)
}

func (s *ServicesSuite) TestBudgetUnsetNeverAlerts() {
	s.addExpense(s.alice.ID, "a", 999999, core.NewDate(2025, 4, 2))
	n, err := s.monitor.Check(s.ctx, s.alice.ID, 2025, 4)
	s.Require().NoError(err)
	s.Nil(n)
}

// --- notifications ---

func (s *ServicesSuite) TestNotifications() {
	_, err := s.notifications.Notify(s.ctx, s.alice.ID, core.NotifyBudgetAlert, "  ")
	s.Error(err)

	first, err := s.notifications.Notify(s.ctx, s.alice.ID, core.NotifyBudgetAlert, "one")
	s.Require().NoError(err)
	_, err = s.notifications.Notify(s.ctx, s.alice.ID, core.NotifyRecurringCreated, "two")
	s.Require().NoError(err)

	count, err := s.notifications.UnreadCount(s.ctx, s.alice.ID)
	s.Require().NoError(err)
	s.Equal(2, count)

	s.Require().NoError(s.notifications.MarkRead(s.ctx, s.alice.ID, first.ID))
	s.ErrorIs(s.notifications.MarkRead(s.ctx, s.bob.ID, first.ID), storage.ErrNotFound)
	s.Len(s.unread(s.alice.ID), 1)

	n, err := s.notifications.MarkAllRead(s.ctx, s.alice.ID)
	s.Require().NoError(err)
	s.Equal(1, n)
	s.Empty(s.unread(s.alice.ID))
}

// --- reports ---

func (s *ServicesSuite) TestMonthOverviewIsCachedUntilInvalidated() {
	s.addExpense(s.alice.ID, "a", 1000, core.NewDate(2025, 4, 2))

	ov, err := s.reports.MonthOverview(s.ctx, s.alice.ID, 2025, 4)
	s.Require().NoError(err)
	s.Equal(int64(1000), ov.Total.Cents)

	// Written behind the service's back: the cached value is served.
	s.addExpense(s.alice.ID, "b", 500, core.NewDate(2025, 4, 3))
	ov, err = s.reports.MonthOverview(s.ctx, s.alice.ID, 2025, 4)
	s.Require().NoError(err)
	s.Equal(int64(1000), ov.Total.Cents)

	s.reports.Invalidate(s.ctx, s.alice.ID)
	ov, err = s.reports.MonthOverview(s.ctx, s.alice.ID, 2025, 4)
	s.Require().NoError(err)
	s.Equal(int64(1500), ov.Total.Cents)
	s.Equal(2, ov.Count)
}

func (s *ServicesSuite) TestExpenseWritesInvalidateReports() {
	svc := NewExpenseService(s.repo, nil, s.reports, nil, s.logger)
	_, err := s.reports.MonthOverview(s.ctx, s.alice.ID, 2025, 4)
	s.Require().NoError(err)

	created, err := svc.Create(s.ctx, s.alice.ID, core.Expense{
		Title: "x", Amount: core.MoneyFromCents(700), Category: "food", Date: core.NewDate(2025, 4, 5),
	})
	s.Require().NoError(err)

	ov, err := s.reports.MonthOverview(s.ctx, s.alice.ID, 2025, 4)
	s.Require().NoError(err)
	s.Equal(int64(700), ov.Total.Cents)

	// Moving the expense to May empties the cached April overview.
	moved := created
	moved.Date = core.NewDate(2025, 5, 2)
	_, err = svc.Update(s.ctx, s.alice.ID, created.ID, moved)
	s.Require().NoError(err)

	ov, err = s.reports.MonthOverview(s.ctx, s.alice.ID, 2025, 4)
	s.Require().NoError(err)
	s.Equal(int64(0), ov.Total.Cents)
	ov, err = s.reports.MonthOverview(s.ctx, s.alice.ID, 2025, 5)
	s.Require().NoError(err)
	s.Equal(int64(700), ov.Total.Cents)
}

func (s *ServicesSuite) TestTrend() {
	s.addExpense(s.alice.ID, "jan", 100, core.NewDate(2025, 1, 10))
	s.addExpense(s.alice.ID, "mar", 300, core.NewDate(2025, 3, 10))
	s.addExpense(s.alice.ID, "dec", 50, core.NewDate(2024, 12, 31))

	pts, err := s.reports.Trend(s.ctx, s.alice.ID, 2025, 3, 4)
	s.Require().NoError(err)
	s.Require().Len(pts, 4)
	s.Equal(core.TrendPoint{Year: 2024, Month: 12, Total: core.MoneyFromCents(50)}, pts[0])
	s.Equal(int64(100), pts[1].Total.Cents)
	s.Equal(int64(0), pts[2].Total.Cents)
	s.Equal(int64(300), pts[3].Total.Cents)

	pts, err = s.reports.Trend(s.ctx, s.alice.ID, 2025, 3, 1000)
	s.Require().NoError(err)
	s.Len(pts, MaxTrendMonths)
}

func (s *ServicesSuite) TestSummary() {
	s.setBudget(s.alice.ID, 1000, 50)
	for i := 1; i <= 7; i++ {
		s.addExpense(s.alice.ID, "e", 100, core.NewDate(2025, 4, i))
	}
	_, err := s.notifications.Notify(s.ctx, s.alice.ID, core.NotifyBudgetAlert, "heads up")
	s.Require().NoError(err)

	sum, err := s.reports.Summary(s.ctx, s.alice.ID, 0, 0)
	s.Require().NoError(err)
	s.Equal(int64(700), sum.Overview.Total.Cents)
	s.Equal(core.BudgetAlert, sum.BudgetStatus)
	s.Len(sum.Recent, recentExpenses)
	s.Equal(1, sum.Unread)
}

// --- recurring ---

func (s *ServicesSuite) newProcessor() *RecurringProcessor {
	return NewRecurringProcessor(s.repo, s.reports, s.notifications, s.monitor, s.logger)
}

func (s *ServicesSuite) TestRecurringCatchUpKeepsMonthEnd() {
	recurring := NewRecurringService(s.repo, s.logger)
	re, err := recurring.Create(s.ctx, s.alice.ID, core.RecurringExpense{
		Title: "Rent", Amount: core.MoneyFromCents(50000), Category: "Housing",
		Frequency: core.Monthly, NextOccurrence: core.NewDate(2025, 1, 31), Active: true,
	})
	s.Require().NoError(err)

	res, err := s.newProcessor().ProcessDue(s.ctx, s.now)
	s.Require().NoError(err)
	s.Equal(3, res.Created)
	s.Equal(1, res.Templates)

	got, err := recurring.Get(s.ctx, s.alice.ID, re.ID)
	s.Require().NoError(err)
	s.Equal(core.NewDate(2025, 4, 30), got.NextOccurrence)
	s.True(got.NextOccurrence.After(core.DateOf(s.now)))

	items, err := s.repo.ListExpenses(s.ctx, s.alice.ID, storage.ExpenseFilter{})
	s.Require().NoError(err)
	s.Require().Len(items, 3)
	s.Equal(core.NewDate(2025, 3, 31), items[0].Date)
	s.Equal(core.NewDate(2025, 2, 28), items[1].Date)
	s.Equal(core.NewDate(2025, 1, 31), items[2].Date)

	kinds := map[core.NotificationKind]int{}
	for _, n := range s.unread(s.alice.ID) {
		kinds[n.Kind]++
	}
	s.Equal(1, kinds[core.NotifyRecurringCreated])

	// A second run has nothing left to do.
	res, err = s.newProcessor().ProcessDue(s.ctx, s.now)
	s.Require().NoError(err)
	s.Equal(0, res.Created)
}

func (s *ServicesSuite) TestRecurringSkipsInactiveAndFuture() {
	recurring := NewRecurringService(s.repo, s.logger)
	paused, err := recurring.Create(s.ctx, s.alice.ID, core.RecurringExpense{
		Title: "Gym", Amount: core.MoneyFromCents(3000), Category: "sport",
		Frequency: core.Monthly, NextOccurrence: core.NewDate(2025, 4, 1), Active: true,
	})
	s.Require().NoError(err)
	_, err = recurring.SetActive(s.ctx, s.alice.ID, paused.ID, false)
	s.Require().NoError(err)
	_, err = recurring.Create(s.ctx, s.alice.ID, core.RecurringExpense{
		Title: "Later", Amount: core.MoneyFromCents(100), Category: "misc",
		Frequency: core.Weekly, NextOccurrence: core.NewDate(2025, 4, 16), Active: true,
	})
	s.Require().NoError(err)

	res, err := s.newProcessor().ProcessDue(s.ctx, s.now)
	s.Require().NoError(err)
	s.Equal(0, res.Checked)
	s.Equal(0, res.Created)
}

func (s *ServicesSuite) TestRecurringCatchUpIsBounded() {
	recurring := NewRecurringService(s.repo, s.logger)
	re, err := recurring.Create(s.ctx, s.alice.ID, core.RecurringExpense{
		Title: "Paper", Amount: core.MoneyFromCents(150), Category: "news",
		Frequency: core.Daily, NextOccurrence: core.NewDate(2023, 1, 1), Active: true,
	})
	s.Require().NoError(err)

	res, err := s.newProcessor().ProcessDue(s.ctx, s.now)
	s.Require().NoError(err)
	s.Equal(MaxCatchUp, res.Created)

	got, err := recurring.Get(s.ctx, s.alice.ID, re.ID)
	s.Require().NoError(err)
	s.Equal(core.NewDate(2023, 1, 1).AddDate(0, 0, MaxCatchUp), got.NextOccurrence.Time)
}

func (s *ServicesSuite) TestRecurringPublishesInsteadOfCheckingBudget() {
	s.setBudget(s.alice.ID, 1000, 80)
	recurring := NewRecurringService(s.repo, s.logger)
	_, err := recurring.Create(s.ctx, s.alice.ID, core.RecurringExpense{
		Title: "Phone", Amount: core.MoneyFromCents(900), Category: "bills",
		Frequency: core.Weekly, NextOccurrence: core.NewDate(2025, 4, 7), Active: true,
	})
	s.Require().NoError(err)

	pub := &fakePublisher{}
	res, err := s.newProcessor().WithPublisher(pub).ProcessDue(s.ctx, s.now)
	s.Require().NoError(err)
	s.Equal(2, res.Created)
	s.Equal([]amqp.EventType{amqp.EventExpenseCreated, amqp.EventExpenseCreated}, pub.types())

	for _, n := range s.unread(s.alice.ID) {
		s.Equal(core.NotifyRecurringCreated, n.Kind)
	}
}

func (s *ServicesSuite) TestRecurringResumeSkipsPausedPeriod() {
	recurring := NewRecurringService(s.repo, s.logger)
	re, err := recurring.Create(s.ctx, s.alice.ID, core.RecurringExpense{
		Title: "Gym", Amount: core.MoneyFromCents(3000), Category: "sport",
		Frequency: core.Monthly, NextOccurrence: core.NewDate(2024, 5, 1), Active: true,
	})
	s.Require().NoError(err)

	recurring.now = func() time.Time { return time.Date(2024, 4, 20, 9, 0, 0, 0, time.UTC) }
	_, err = recurring.SetActive(s.ctx, s.alice.ID, re.ID, false)
	s.Require().NoError(err)

	recurring.now = func() time.Time { return s.now }
	resumed, err := recurring.SetActive(s.ctx, s.alice.ID, re.ID, true)
	s.Require().NoError(err)
	s.True(resumed.Active)
	s.Equal(core.NewDate(2025, 5, 1), resumed.NextOccurrence)

	res, err := s.newProcessor().ProcessDue(s.ctx, s.now)
	s.Require().NoError(err)
	s.Equal(0, res.Created)

	// Resuming an active template leaves an overdue occurrence alone.
	late, err := recurring.Create(s.ctx, s.alice.ID, core.RecurringExpense{
		Title: "Paper", Amount: core.MoneyFromCents(150), Category: "news",
		Frequency: core.Weekly, NextOccurrence: core.NewDate(2025, 4, 8), Active: true,
	})
	s.Require().NoError(err)
	again, err := recurring.SetActive(s.ctx, s.alice.ID, late.ID, true)
	s.Require().NoError(err)
	s.Equal(core.NewDate(2025, 4, 8), again.NextOccurrence)
}

func (s *ServicesSuite) TestProcessorInvalidatesSharedReportCache() {
	overviews := cache.NewLRUCache[core.MonthOverview](100, time.Hour)
	trends := cache.NewLRUCache[[]core.TrendPoint](100, time.Hour)

	// The API process reads through the same caches the worker invalidates.
	api := NewReportService(s.repo, s.repo, s.budgets, s.notifications, overviews, trends, s.logger)
	before, err := api.MonthOverview(s.ctx, s.alice.ID, 2025, 4)
	s.Require().NoError(err)
	s.Equal(0, before.Count)

	worker := NewSet(SetConfig{Store: s.repo, Overviews: overviews, Trends: trends, Logger: s.logger})
	_, err = worker.Recurring.Create(s.ctx, s.alice.ID, core.RecurringExpense{
		Title: "Phone", Amount: core.MoneyFromCents(900), Category: "bills",
		Frequency: core.Monthly, NextOccurrence: core.NewDate(2025, 4, 2), Active: true,
	})
	s.Require().NoError(err)
	res, err := worker.Processor.ProcessDue(s.ctx, s.now)
	s.Require().NoError(err)
	s.Equal(1, res.Created)

	after, err := api.MonthOverview(s.ctx, s.alice.ID, 2025, 4)
	s.Require().NoError(err)
	s.Equal(1, after.Count)
	s.Equal(int64(900), after.Total.Cents)
}

func (s *ServicesSuite) TestRecurringUpdateKeepsAnchor() {
	recurring := NewRecurringService(s.repo, s.logger)
	re, err := recurring.Create(s.ctx, s.alice.ID, core.RecurringExpense{
		Title: "Rent", Amount: core.MoneyFromCents(50000), Category: "housing",
		Frequency: core.Monthly, NextOccurrence: core.NewDate(2025, 1, 31), Active: true,
	})
	s.Require().NoError(err)
	_, err = s.newProcessor().ProcessDue(s.ctx, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)

	re, err = recurring.Get(s.ctx, s.alice.ID, re.ID)
	s.Require().NoError(err)
	s.Equal(core.NewDate(2025, 2, 28), re.NextOccurrence)
	s.Equal(31, re.AnchorDay)

	re.Amount = core.MoneyFromCents(52000)
	re, err = recurring.Update(s.ctx, s.alice.ID, re.ID, re)
	s.Require().NoError(err)
	s.Equal(31, re.AnchorDay)

	re.NextOccurrence = core.NewDate(2025, 3, 15)
	re, err = recurring.Update(s.ctx, s.alice.ID, re.ID, re)
	s.Require().NoError(err)
	s.Equal(15, re.AnchorDay)

	_, err = recurring.Update(s.ctx, s.bob.ID, re.ID, re)
	s.ErrorIs(err, storage.ErrNotFound)
	s.ErrorIs(recurring.Delete(s.ctx, s.bob.ID, re.ID), storage.ErrNotFound)
	s.NoError(recurring.Delete(s.ctx, s.alice.ID, re.ID))
}

func (s *ServicesSuite) TestRecurringCreateValidates() {
	recurring := NewRecurringService(s.repo, s.logger)
	_, err := recurring.Create(s.ctx, s.alice.ID, core.RecurringExpense{
		Title: "x", Amount: core.MoneyFromCents(1), Category: "c",
		Frequency: "hourly", NextOccurrence: core.NewDate(2025, 1, 1),
	})
	s.ErrorIs(err, core.ErrInvalidFrequency)
}

// --- profile ---

func (s *ServicesSuite) TestProfileUpdate() {
	profiles := NewProfileService(s.repo, s.logger)
	name, currency := "  Alice Liddell ", "usd"

	u, err := profiles.Update(s.ctx, s.alice.ID, ProfileUpdate{Name: &name, Currency: &currency})
	s.Require().NoError(err)
	s.Equal("Alice Liddell", u.Name)
	s.Equal("USD", u.Currency)

	// The password hash survives a profile edit.
	stored, err := s.repo.GetUserByID(s.ctx, s.alice.ID)
	s.Require().NoError(err)
	s.Equal("x", stored.PasswordHash)

	taken := "BOB@example.com"
	_, err = profiles.Update(s.ctx, s.alice.ID, ProfileUpdate{Email: &taken})
	s.ErrorIs(err, ErrEmailInUse)

	bad := "not-an-email"
	_, err = profiles.Update(s.ctx, s.alice.ID, ProfileUpdate{Email: &bad})
	s.ErrorIs(err, core.ErrInvalidEmail)

	avatar := "ftp://example.com/a.png"
	_, err = profiles.Update(s.ctx, s.alice.ID, ProfileUpdate{Avatar: &avatar})
	s.ErrorIs(err, core.ErrInvalidAvatar)
}

func (s *ServicesSuite) TestBudgetSweepCatchesMissedAlerts() {
	s.setBudget(s.alice.ID, 1000, 80)
	s.setBudget(s.bob.ID, 100000, 80)
	s.addExpense(s.alice.ID, "a", 900, core.NewDate(2025, 4, 2))
	s.addExpense(s.bob.ID, "b", 900, core.NewDate(2025, 4, 2))

	raised, err := s.monitor.Sweep(s.ctx, 2025, 4)
	s.Require().NoError(err)
	s.Equal(1, raised)
	s.Len(s.unread(s.alice.ID), 1)
	s.Empty(s.unread(s.bob.ID))

	raised, err = s.monitor.Sweep(s.ctx, 2025, 4)
	s.Require().NoError(err)
	s.Zero(raised)
}
