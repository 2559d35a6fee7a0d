// Package storetest provides an in-memory Backend for tests of code built on
// store.Store.
package storetest

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"storefront/internal/models"
)

// Backend is an in-memory REST collection. Created items get ids "new-1",
// "new-2", ... through WithID.
type Backend[T models.Entity] struct {
	mu sync.Mutex

	items   []T
	queries []url.Values
	calls   map[string]int
	seq     int

	// WithID returns item carrying id. Without it created items keep their
	// (empty) id.
	WithID func(item T, id string) T
	// ListFilter, when set, narrows List results by query.
	ListFilter func(item T, query url.Values) bool

	ListErr   error
	SaveErr   error
	DeleteErr error
}

func New[T models.Entity](items ...T) *Backend[T] {
	return &Backend[T]{items: append([]T{}, items...), calls: map[string]int{}}
}

func (b *Backend[T]) List(ctx context.Context, query url.Values) ([]T, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["list"]++
	b.queries = append(b.queries, query)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.ListErr != nil {
		return nil, b.ListErr
	}

	out := []T{}
	for _, item := range b.items {
		if b.ListFilter == nil || b.ListFilter(item, query) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (b *Backend[T]) Create(ctx context.Context, item T) (T, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["create"]++
	if b.SaveErr != nil {
		var zero T
		return zero, b.SaveErr
	}
	b.seq++
	if b.WithID != nil {
		item = b.WithID(item, fmt.Sprintf("new-%d", b.seq))
	}
	b.items = append(b.items, item)
	return item, nil
}

func (b *Backend[T]) Update(ctx context.Context, id string, item T) (T, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["update"]++
	if b.SaveErr != nil {
		var zero T
		return zero, b.SaveErr
	}
	for i := range b.items {
		if b.items[i].GetID() == id {
			b.items[i] = item
			return item, nil
		}
	}
	b.items = append(b.items, item)
	return item, nil
}

func (b *Backend[T]) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["delete"]++
	if b.DeleteErr != nil {
		return b.DeleteErr
	}
	for i := range b.items {
		if b.items[i].GetID() == id {
			b.items = append(b.items[:i], b.items[i+1:]...)
			break
		}
	}
	return nil
}

// Calls reports how often op ("list", "create", "update", "delete") ran.
func (b *Backend[T]) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// LastQuery returns the query of the most recent List call.
func (b *Backend[T]) LastQuery() url.Values {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queries) == 0 {
		return nil
	}
	return b.queries[len(b.queries)-1]
}

// ServerItems returns the backend's current collection.
func (b *Backend[T]) ServerItems() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]T{}, b.items...)
}
