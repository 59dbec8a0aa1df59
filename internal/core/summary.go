package core

import (
	"sort"
	"time"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
	Count  int    `json:"count"`
}

// MonthOverview is a compact summary for a specific year+month.
type MonthOverview struct {
	Year       int              `json:"year"`
	Month      int              `json:"month"` // 1-12
	Total      Money            `json:"total"`
	Count      int              `json:"count"`
	ByCategory []CategoryAmount `json:"by_category"`
}

// TrendPoint is one month in a spending trend.
type TrendPoint struct {
	Year  int   `json:"year"`
	Month int   `json:"month"`
	Total Money `json:"total"`
}

// Summary is the dashboard payload.
type Summary struct {
	Overview     MonthOverview  `json:"overview"`
	Budget       BudgetSettings `json:"budget"`
	BudgetStatus BudgetStatus   `json:"budget_status"`
	Recent       []Expense      `json:"recent"`
	Unread       int            `json:"unread_notifications"`
}

// NotificationKind distinguishes notification sources.
type NotificationKind string

const (
	NotifyBudgetAlert      NotificationKind = "budget_alert"
	NotifyBudgetExceeded   NotificationKind = "budget_exceeded"
	NotifyRecurringCreated NotificationKind = "recurring_created"
)

// Notification is a message shown to the user.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Kind      NotificationKind `json:"kind"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

// BuildOverview aggregates expenses of a single month. Categories are sorted
// by amount descending, then by name. Expenses outside the month are ignored.
func BuildOverview(year, month int, expenses []Expense) MonthOverview {
	ov := MonthOverview{Year: year, Month: month, ByCategory: []CategoryAmount{}}
	byCat := map[string]*CategoryAmount{}
	for _, e := range expenses {
		if e.Date.Year() != year || int(e.Date.Month()) != month {
			continue
		}
		ov.Total = ov.Total.Add(e.Amount)
		ov.Count++
		ca, ok := byCat[e.Category]
		if !ok {
			ca = &CategoryAmount{Name: e.Category}
			byCat[e.Category] = ca
		}
		ca.Amount = ca.Amount.Add(e.Amount)
		ca.Count++
	}
	for _, ca := range byCat {
		ov.ByCategory = append(ov.ByCategory, *ca)
	}
	SortCategories(ov.ByCategory)
	return ov
}

// SortCategories orders by amount descending, ties broken by name.
func SortCategories(cats []CategoryAmount) {
	sort.Slice(cats, func(i, j int) bool {
		if cats[i].Amount.Cents != cats[j].Amount.Cents {
			return cats[i].Amount.Cents > cats[j].Amount.Cents
		}
		return cats[i].Name < cats[j].Name
	})
}

// PreviousMonths returns n (year, month) pairs ending at the given month,
// oldest first.
func PreviousMonths(year, month, n int) [][2]int {
	out := make([][2]int, n)
	t := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	for i := n - 1; i >= 0; i-- {
		out[i] = [2]int{t.Year(), int(t.Month())}
		t = t.AddDate(0, -1, 0)
	}
	return out
}

// SortExpenses orders newest first: by date, then creation time.
func SortExpenses(items []Expense) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].Date.Equal(items[j].Date.Time) {
			return items[i].Date.Time.After(items[j].Date.Time)
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}
