package core

import (
	"errors"
	"math"
	"time"
)

var (
	ErrInvalidThreshold = errors.New("alert threshold must be between 1 and 100")
	ErrInvalidBudget    = errors.New("monthly budget cannot be negative")
)

// BudgetSettings holds the per-user monthly budget. Spent, Remaining and
// UsedPercent are derived on read for a given month and never stored.
type BudgetSettings struct {
	UserID         string    `json:"user_id"`
	MonthlyBudget  Money     `json:"monthly_budget"`
	AlertThreshold int       `json:"alert_threshold"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`

	Year        int     `json:"year,omitempty"`
	Month       int     `json:"month,omitempty"`
	Spent       Money   `json:"spent"`
	Remaining   Money   `json:"remaining"`
	UsedPercent float64 `json:"used_percent"`
}

// BudgetStatus classifies spending against the budget.
type BudgetStatus string

const (
	BudgetUnset    BudgetStatus = "unset"
	BudgetOK       BudgetStatus = "ok"
	BudgetAlert    BudgetStatus = "alert"
	BudgetExceeded BudgetStatus = "exceeded"
)

// DefaultBudget returns the settings used when a user never configured one.
func DefaultBudget(userID string) BudgetSettings {
	return BudgetSettings{UserID: userID, AlertThreshold: DefaultAlertPercent}
}

func (b BudgetSettings) Validate() error {
	if b.MonthlyBudget.Cents < 0 {
		return ErrInvalidBudget
	}
	if b.AlertThreshold < 1 || b.AlertThreshold > 100 {
		return ErrInvalidThreshold
	}
	return nil
}

// WithSpent fills the derived figures for the given month.
func (b BudgetSettings) WithSpent(year, month int, spent Money) BudgetSettings {
	b.Year = year
	b.Month = month
	b.Spent = spent
	b.Remaining = b.MonthlyBudget.Sub(spent)
	b.UsedPercent = 0
	if b.MonthlyBudget.Cents > 0 {
		pct := float64(spent.Cents) * 100 / float64(b.MonthlyBudget.Cents)
		b.UsedPercent = math.Round(pct*10) / 10
	}
	return b
}

// Status reports where the derived figures sit relative to the threshold.
func (b BudgetSettings) Status() BudgetStatus {
	if b.MonthlyBudget.Cents == 0 {
		return BudgetUnset
	}
	if b.Spent.Cents > b.MonthlyBudget.Cents {
		return BudgetExceeded
	}
	if b.Spent.Cents*100 >= b.MonthlyBudget.Cents*int64(b.AlertThreshold) {
		return BudgetAlert
	}
	return BudgetOK
}
