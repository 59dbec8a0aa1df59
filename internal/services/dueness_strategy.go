// Package services holds the business logic between the HTTP layer and
// storage: expenses, budgets, profiles, recurring templates, reports and
// notifications.
package services

import (
	"fmt"

	"expensetracker/internal/core"
)

// DuenessChecker is the strategy for one repetition frequency: whether an
// occurrence is due and which occurrence follows it.
type DuenessChecker interface {
	IsDue(next, today core.Date) bool
	Next(from core.Date, anchorDay int) core.Date
}

// onOrBefore is the dueness rule shared by the calendar frequencies.
type onOrBefore struct{}

func (onOrBefore) IsDue(next, today core.Date) bool {
	return !next.IsZero() && !next.After(today)
}

type DailyChecker struct{ onOrBefore }

func (DailyChecker) Next(from core.Date, _ int) core.Date {
	return core.Daily.Next(from, 0)
}

type WeeklyChecker struct{ onOrBefore }

func (WeeklyChecker) Next(from core.Date, _ int) core.Date {
	return core.Weekly.Next(from, 0)
}

// MonthlyChecker keeps the anchor day, clamped to short months.
type MonthlyChecker struct{ onOrBefore }

func (MonthlyChecker) Next(from core.Date, anchorDay int) core.Date {
	return core.Monthly.Next(from, anchorDay)
}

// YearlyChecker keeps month and anchor day; Feb 29 falls back to Feb 28.
type YearlyChecker struct{ onOrBefore }

func (YearlyChecker) Next(from core.Date, anchorDay int) core.Date {
	return core.Yearly.Next(from, anchorDay)
}

var duenessStrategies = map[core.Frequency]DuenessChecker{
	core.Daily:   DailyChecker{},
	core.Weekly:  WeeklyChecker{},
	core.Monthly: MonthlyChecker{},
	core.Yearly:  YearlyChecker{},
}

// GetDuenessChecker returns the checker registered for frequency.
func GetDuenessChecker(frequency core.Frequency) (DuenessChecker, error) {
	checker, ok := duenessStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", frequency)
	}
	return checker, nil
}

// RegisterDuenessChecker installs or replaces the checker for frequency.
// It is not safe to call while a processor is running.
func RegisterDuenessChecker(frequency core.Frequency, checker DuenessChecker) {
	duenessStrategies[frequency] = checker
}

// DueOccurrences lists every occurrence of re due on or before today,
// oldest first, stopping after limit. It also returns the first occurrence
// that is not yet due (or the one after the last listed when truncated).
func DueOccurrences(checker DuenessChecker, re core.RecurringExpense, today core.Date, limit int) ([]core.Date, core.Date) {
	anchor := re.AnchorDay
	if anchor == 0 {
		anchor = re.NextOccurrence.Day()
	}
	var dates []core.Date
	next := re.NextOccurrence
	for checker.IsDue(next, today) && len(dates) < limit {
		dates = append(dates, next)
		next = checker.Next(next, anchor)
	}
	return dates, next
}

// skipPast returns the first occurrence of re on or after today.
func skipPast(checker DuenessChecker, re core.RecurringExpense, today core.Date) core.Date {
	anchor := re.AnchorDay
	if anchor == 0 {
		anchor = re.NextOccurrence.Day()
	}
	next := re.NextOccurrence
	for next.Before(today) {
		next = checker.Next(next, anchor)
	}
	return next
}
