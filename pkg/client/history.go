package client

import (
	"context"
	"sync"
)

// QueryCache holds fetched listings by path until invalidated. There is no
// expiry; a successful analysis is what makes a listing stale.
type QueryCache struct {
	mu      sync.Mutex
	entries map[string]any
}

func NewQueryCache() *QueryCache { return &QueryCache{entries: map[string]any{}} }

func (q *QueryCache) get(key string) (any, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	v, ok := q.entries[key]
	return v, ok
}

func (q *QueryCache) put(key string, v any) {
	q.mu.Lock()
	q.entries[key] = v
	q.mu.Unlock()
}

func (q *QueryCache) Has(key string) bool {
	_, ok := q.get(key)
	return ok
}

// Invalidate drops key so the next Refresh fetches again.
func (q *QueryCache) Invalidate(key string) {
	q.mu.Lock()
	delete(q.entries, key)
	q.mu.Unlock()
}

// Fetch returns the cached value for key or loads and caches it. Errors
// are not cached.
func Fetch[T any](ctx context.Context, q *QueryCache, key string, load func(context.Context) (T, error)) (T, error) {
	if v, ok := q.get(key); ok {
		if t, ok := v.(T); ok {
			return t, nil
		}
	}
	v, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	q.put(key, v)
	return v, nil
}

type HistoryState int

const (
	HistoryLoading HistoryState = iota
	HistoryEmpty
	HistoryReady
)

func (s HistoryState) String() string {
	switch s {
	case HistoryEmpty:
		return "empty"
	case HistoryReady:
		return "ready"
	default:
		return "loading"
	}
}

// MaxHistoryEntries is how many records a history view shows.
const MaxHistoryEntries = 5

// History is the "recent results" view over one listing.
type History[T any] struct {
	cache *QueryCache
	key   string
	load  func(context.Context) ([]T, error)

	mu    sync.Mutex
	state HistoryState
	items []T
	err   error
}

func NewHistory[T any](cache *QueryCache, key string, load func(context.Context) ([]T, error)) *History[T] {
	return &History[T]{cache: cache, key: key, load: load}
}

// Refresh loads the listing, from the cache when present. On error the
// view stays loading and Err reports the failure.
func (h *History[T]) Refresh(ctx context.Context) error {
	h.mu.Lock()
	h.state = HistoryLoading
	h.mu.Unlock()

	items, err := Fetch(ctx, h.cache, h.key, h.load)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
	if err != nil {
		h.items = nil
		return err
	}
	h.items = items
	if len(items) == 0 {
		h.state = HistoryEmpty
	} else {
		h.state = HistoryReady
	}
	return nil
}

func (h *History[T]) State() HistoryState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *History[T]) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Entries returns at most MaxHistoryEntries records, newest first as the
// server orders them.
func (h *History[T]) Entries() []T {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := min(len(h.items), MaxHistoryEntries)
	return append([]T(nil), h.items[:n]...)
}
