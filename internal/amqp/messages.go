package amqp

import (
	"encoding/json"
	"time"

	"expensetracker/internal/core"
)

// EventType names what happened to an expense.
type EventType string

const (
	EventExpenseCreated EventType = "expense.created"
	EventExpenseUpdated EventType = "expense.updated"
	EventExpenseDeleted EventType = "expense.deleted"
)

// ExpenseEvent is published after every expense write. It carries enough of
// the expense for the budget check; consumers needing more reload it.
type ExpenseEvent struct {
	Type        EventType `json:"type"`
	UserID      string    `json:"user_id"`
	ExpenseID   string    `json:"expense_id"`
	Title       string    `json:"title,omitempty"`
	AmountCents int64     `json:"amount_cents"`
	Category    string    `json:"category,omitempty"`
	Date        string    `json:"date"`
	Description string    `json:"description,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewExpenseEvent builds an event for e stamped with the current time.
func NewExpenseEvent(t EventType, e core.Expense) *ExpenseEvent {
	return &ExpenseEvent{
		Type:        t,
		UserID:      e.UserID,
		ExpenseID:   e.ID,
		Title:       e.Title,
		AmountCents: e.Amount.Cents,
		Category:    e.Category,
		Date:        e.Date.String(),
		Description: e.Description,
		Timestamp:   time.Now(),
	}
}

// Month returns the year and month the expense is dated in.
func (m *ExpenseEvent) Month() (int, int, error) {
	d, err := core.ParseDate(m.Date)
	if err != nil {
		return 0, 0, err
	}
	return d.Year(), int(d.Month()), nil
}

// Expense rebuilds the expense snapshot carried by the event.
func (m *ExpenseEvent) Expense() (core.Expense, error) {
	d, err := core.ParseDate(m.Date)
	if err != nil {
		return core.Expense{}, err
	}
	return core.Expense{
		ID:          m.ExpenseID,
		UserID:      m.UserID,
		Title:       m.Title,
		Amount:      core.Money{Cents: m.AmountCents},
		Category:    m.Category,
		Date:        d,
		Description: m.Description,
	}, nil
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventFromJSON parses a message body.
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var msg ExpenseEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
