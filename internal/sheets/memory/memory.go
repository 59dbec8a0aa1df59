// Package memory is an in-process spreadsheet exporter used by tests and
// local runs without Google credentials.
package memory

import (
	"context"
	"fmt"
	"sync"

	"expensetracker/internal/core"
	ports "expensetracker/internal/sheets"
)

var (
	_ ports.Exporter      = (*Store)(nil)
	_ ports.ExpenseLister = (*Store)(nil)
)

type Store struct {
	mu    sync.Mutex
	items []core.Expense
}

func New() *Store {
	return &Store{}
}

// Append stores the expense and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, e)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// UpdateExpense replaces the stored row with the same id, or appends.
func (s *Store) UpdateExpense(ctx context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	if i := s.indexOf(e.ID); i >= 0 {
		s.items[i] = e
		s.mu.Unlock()
		return fmt.Sprintf("mem:%d", i+1), nil
	}
	s.mu.Unlock()
	return s.Append(ctx, e)
}

func (s *Store) DeleteExpense(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(e.ID)
	if i < 0 {
		return ports.ErrNotExported
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return nil
}

func (s *Store) ListExpenses(_ context.Context, userID string, year, month int) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Expense
	for _, e := range s.items {
		if e.UserID == userID && e.Date.Year() == year && int(e.Date.Month()) == month {
			out = append(out, e)
		}
	}
	core.SortExpenses(out)
	return out, nil
}

// Len reports how many rows are stored.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) indexOf(id string) int {
	for i, e := range s.items {
		if e.ID == id {
			return i
		}
	}
	return -1
}
