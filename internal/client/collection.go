package client

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const (
	keySession = "session"
	keyUsers   = "users"
	keyPrefs   = "prefs"
)

func userKey(userID, kind string) string {
	return fmt.Sprintf("u:%s:%s", userID, kind)
}

// localID marks records created without the backend.
func localID() string {
	return "local-" + uuid.NewString()
}

// collection is a list of records shadowed under one key.
type collection[T any] struct {
	store LocalStore
	key   string
	id    func(T) string
}

func (c collection[T]) All(ctx context.Context) ([]T, error) {
	items, _, err := getJSON[[]T](ctx, c.store, c.key)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func (c collection[T]) Replace(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	return setJSON(ctx, c.store, c.key, items)
}

// Put inserts v or replaces the record with the same id.
func (c collection[T]) Put(ctx context.Context, v T) error {
	items, err := c.All(ctx)
	if err != nil {
		return err
	}
	id := c.id(v)
	for i := range items {
		if c.id(items[i]) == id {
			items[i] = v
			return c.Replace(ctx, items)
		}
	}
	return c.Replace(ctx, append(items, v))
}

func (c collection[T]) Get(ctx context.Context, id string) (T, bool, error) {
	var zero T
	items, err := c.All(ctx)
	if err != nil {
		return zero, false, err
	}
	for _, it := range items {
		if c.id(it) == id {
			return it, true, nil
		}
	}
	return zero, false, nil
}

// Remove deletes the record and reports whether it existed.
func (c collection[T]) Remove(ctx context.Context, id string) (bool, error) {
	items, err := c.All(ctx)
	if err != nil {
		return false, err
	}
	for i := range items {
		if c.id(items[i]) == id {
			items = append(items[:i], items[i+1:]...)
			return true, c.Replace(ctx, items)
		}
	}
	return false, nil
}

// doc is a single value shadowed under one key.
type doc[T any] struct {
	store LocalStore
	key   string
}

func (d doc[T]) Load(ctx context.Context) (T, bool, error) {
	return getJSON[T](ctx, d.store, d.key)
}

func (d doc[T]) Save(ctx context.Context, v T) error {
	return setJSON(ctx, d.store, d.key, v)
}

func (d doc[T]) Clear(ctx context.Context) error {
	return d.store.Delete(ctx, d.key)
}
