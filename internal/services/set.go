package services

import (
	"time"

	"expensetracker/internal/cache"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/storage"

	"github.com/redis/go-redis/v9"
)

// Redis namespaces of the report caches. Every process that reads or
// invalidates reports must use the same ones.
const (
	overviewNamespace = "overview"
	trendNamespace    = "trend"
)

// RedisReportCaches returns the report caches backed by a shared Redis.
func RedisReportCaches(rdb *redis.Client, ttl time.Duration, logger *log.Logger) (cache.Cache[core.MonthOverview], cache.Cache[[]core.TrendPoint]) {
	return cache.NewRedisCache[core.MonthOverview](rdb, overviewNamespace, ttl, logger),
		cache.NewRedisCache[[]core.TrendPoint](rdb, trendNamespace, ttl, logger)
}

// SetConfig holds what NewSet needs. Publisher may be nil; caches default to
// in-process LRUs.
type SetConfig struct {
	Store     *storage.SQLiteRepository
	Publisher EventPublisher
	Overviews cache.Cache[core.MonthOverview]
	Trends    cache.Cache[[]core.TrendPoint]
	Logger    *log.Logger
}

// Set is every service wired against one repository.
type Set struct {
	Expenses      *ExpenseService
	Budget        *BudgetService
	Monitor       *BudgetMonitor
	Profile       *ProfileService
	Recurring     *RecurringService
	Processor     *RecurringProcessor
	Reports       *ReportService
	Notifications *NotificationService
}

// NewSet wires the services. Budget changes and expense writes invalidate
// the report caches.
func NewSet(cfg SetConfig) *Set {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}
	if cfg.Overviews == nil {
		cfg.Overviews = cache.NewLRUCache[core.MonthOverview](100, 5*time.Minute)
	}
	if cfg.Trends == nil {
		cfg.Trends = cache.NewLRUCache[[]core.TrendPoint](100, 5*time.Minute)
	}

	repo := cfg.Store
	notifications := NewNotificationService(repo, logger)
	budgets := NewBudgetService(repo, nil, logger)
	reports := NewReportService(repo, repo, budgets, notifications, cfg.Overviews, cfg.Trends, logger)
	budgets.cache = reports
	monitor := NewBudgetMonitor(budgets, notifications)

	return &Set{
		Expenses:      NewExpenseService(repo, cfg.Publisher, reports, monitor, logger),
		Budget:        budgets,
		Monitor:       monitor,
		Profile:       NewProfileService(repo, logger),
		Recurring:     NewRecurringService(repo, logger),
		Processor:     NewRecurringProcessor(repo, reports, notifications, monitor, logger).WithPublisher(cfg.Publisher),
		Reports:       reports,
		Notifications: notifications,
	}
}

// SetClock overrides the time source of the services that resolve "current
// month" defaults or "today".
func (s *Set) SetClock(now func() time.Time) {
	s.Budget.now = now
	s.Reports.now = now
	s.Recurring.now = now
}
