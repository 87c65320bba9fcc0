package store_test

import (
	"context"
	"errors"
	"testing"

	"paytrack/internal/cache"
	"paytrack/internal/store"
	"paytrack/internal/store/memory"
)

type countingStore struct {
	store.Store
	gets int
	fail error
}

func (c *countingStore) Get(ctx context.Context, key string) (string, bool, error) {
	c.gets++
	if c.fail != nil {
		return "", false, c.fail
	}
	return c.Store.Get(ctx, key)
}

func TestCachedReadThrough(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{Store: memory.New()}
	s := store.NewCached(inner, cache.NewLRUCache[store.Lookup](8, 0))

	// absent keys are cached as well
	for i := 0; i < 2; i++ {
		if _, ok, err := s.Get(ctx, store.KeyHourlyRate); ok || err != nil {
			t.Fatalf("expected absent, ok=%v err=%v", ok, err)
		}
	}
	if inner.gets != 1 {
		t.Fatalf("expected 1 underlying get, got %d", inner.gets)
	}

	if err := s.Set(ctx, store.KeyHourlyRate, "20"); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := s.Get(ctx, store.KeyHourlyRate)
	if err != nil || !ok || v != "20" {
		t.Fatalf("unexpected get after set: %q %v %v", v, ok, err)
	}
	if inner.gets != 1 {
		t.Fatalf("set should refresh the cache, got %d gets", inner.gets)
	}

	if err := s.Remove(ctx, store.KeyHourlyRate); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok, _ := s.Get(ctx, store.KeyHourlyRate); ok {
		t.Fatal("removed key still visible")
	}
	if inner.gets != 2 {
		t.Fatalf("expected a fresh underlying get after remove, got %d", inner.gets)
	}
}

func TestCachedDoesNotCacheErrors(t *testing.T) {
	boom := errors.New("disk on fire")
	inner := &countingStore{Store: memory.New(), fail: boom}
	s := store.NewCached(inner, cache.NewLRUCache[store.Lookup](8, 0))

	if _, _, err := s.Get(context.Background(), "k"); !errors.Is(err, boom) {
		t.Fatalf("expected error, got %v", err)
	}
	inner.fail = nil
	if _, _, err := s.Get(context.Background(), "k"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.gets != 2 {
		t.Fatalf("expected 2 underlying gets, got %d", inner.gets)
	}
}
