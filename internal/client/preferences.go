package client

import (
	"context"
	"strings"
	"sync"

	"expensetracker/internal/core"
)

// Prefs are device-local display settings.
type Prefs struct {
	DarkMode bool `json:"dark_mode"`
	// Currency overrides the profile currency for display. Empty means the
	// profile's.
	Currency string `json:"currency,omitempty"`
}

// Preferences persists Prefs and notifies listeners on every change.
type Preferences struct {
	store LocalStore

	mu        sync.RWMutex
	current   Prefs
	listeners []func(Prefs)
}

// LoadPreferences reads the stored prefs, or the defaults when none exist.
func LoadPreferences(ctx context.Context, store LocalStore) (*Preferences, error) {
	p, _, err := getJSON[Prefs](ctx, store, keyPrefs)
	if err != nil {
		return nil, err
	}
	return &Preferences{store: store, current: p}, nil
}

func (p *Preferences) Get() Prefs {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// OnChange registers fn to run after each change.
func (p *Preferences) OnChange(fn func(Prefs)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// SetDarkMode stores the theme choice and applies it.
func (p *Preferences) SetDarkMode(ctx context.Context, on bool) (Prefs, error) {
	return p.update(ctx, func(pr *Prefs) error {
		pr.DarkMode = on
		return nil
	})
}

// ToggleDarkMode flips the theme.
func (p *Preferences) ToggleDarkMode(ctx context.Context) (Prefs, error) {
	return p.update(ctx, func(pr *Prefs) error {
		pr.DarkMode = !pr.DarkMode
		return nil
	})
}

// SetCurrency sets the display currency; an empty code clears the override.
func (p *Preferences) SetCurrency(ctx context.Context, code string) (Prefs, error) {
	return p.update(ctx, func(pr *Prefs) error {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code != "" && !core.ValidCurrency(code) {
			return core.ErrInvalidCurrency
		}
		pr.Currency = code
		return nil
	})
}

// DisplayCurrency picks the override, then the profile's currency.
func (p *Preferences) DisplayCurrency(profile core.User) string {
	if c := p.Get().Currency; c != "" {
		return c
	}
	if profile.Currency != "" {
		return profile.Currency
	}
	return core.DefaultCurrency
}

func (p *Preferences) update(ctx context.Context, fn func(*Prefs) error) (Prefs, error) {
	p.mu.Lock()
	prev := p.current
	next := prev
	if err := fn(&next); err != nil {
		p.mu.Unlock()
		return prev, err
	}
	if err := setJSON(ctx, p.store, keyPrefs, next); err != nil {
		p.mu.Unlock()
		return prev, err
	}
	p.current = next
	listeners := append([]func(Prefs){}, p.listeners...)
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
	return next, nil
}
