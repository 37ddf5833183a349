package store

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// CachedValue is a lazy, write-through cache around one expensive value.
// Get loads at most once no matter how many callers race; Set persists
// through the writer and only then updates the cache; Clear drops the
// in-memory value without touching persisted storage.
type CachedValue[T any] struct {
	mu     sync.Mutex
	value  *T
	gen    uint64
	sf     singleflight.Group
	loader func(ctx context.Context) (T, error)
	writer func(ctx context.Context, value T) error
}

// NewCachedValue wraps a loader and writer pair.
func NewCachedValue[T any](
	loader func(ctx context.Context) (T, error),
	writer func(ctx context.Context, value T) error,
) *CachedValue[T] {
	return &CachedValue[T]{loader: loader, writer: writer}
}

// Get returns the cached value, invoking the loader exactly once when the
// cache is empty. Concurrent callers share the in-flight load.
func (c *CachedValue[T]) Get(ctx context.Context) (T, error) {
	c.mu.Lock()
	if c.value != nil {
		v := *c.value
		c.mu.Unlock()
		return v, nil
	}
	gen := c.gen
	c.mu.Unlock()

	result, err, _ := c.sf.Do("load", func() (any, error) {
		value, err := c.loader(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		// A Clear issued while the load was in flight invalidates the
		// result; hand it to the caller but do not cache it.
		if c.gen == gen {
			c.value = &value
		}
		c.mu.Unlock()
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

// Set persists the value through the writer, then updates the cache.
// The cache is untouched when the writer fails.
func (c *CachedValue[T]) Set(ctx context.Context, value T) error {
	if err := c.writer(ctx, value); err != nil {
		return err
	}
	c.mu.Lock()
	c.value = &value
	c.mu.Unlock()
	return nil
}

// Clear drops the cached value. The next Get loads from storage again;
// a load already in flight is detached so its result is never cached.
func (c *CachedValue[T]) Clear() {
	c.mu.Lock()
	c.gen++
	c.value = nil
	c.mu.Unlock()
	c.sf.Forget("load")
}
