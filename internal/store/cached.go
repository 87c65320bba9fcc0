package store

import (
	"context"

	"paytrack/internal/cache"
)

// Lookup is a cached Get result; absent keys are cached too.
type Lookup struct {
	Value string
	Found bool
}

// Cached is a read-through cache in front of another Store. Writes go to the
// underlying store first and invalidate the cached key.
type Cached struct {
	next  Store
	cache cache.Cache[Lookup]
}

var _ Store = (*Cached)(nil)

func NewCached(next Store, c cache.Cache[Lookup]) *Cached {
	return &Cached{next: next, cache: c}
}

func (c *Cached) Get(ctx context.Context, key string) (string, bool, error) {
	if hit, ok := c.cache.Get(key); ok {
		return hit.Value, hit.Found, nil
	}
	v, found, err := c.next.Get(ctx, key)
	if err != nil {
		return "", false, err
	}
	c.cache.Set(key, Lookup{Value: v, Found: found})
	return v, found, nil
}

func (c *Cached) Set(ctx context.Context, key, value string) error {
	c.cache.Delete(key)
	if err := c.next.Set(ctx, key, value); err != nil {
		return err
	}
	c.cache.Set(key, Lookup{Value: value, Found: true})
	return nil
}

func (c *Cached) Remove(ctx context.Context, key string) error {
	c.cache.Delete(key)
	return c.next.Remove(ctx, key)
}

// Unwrap returns the underlying store.
func (c *Cached) Unwrap() Store {
	return c.next
}
