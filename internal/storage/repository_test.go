package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"paytrack/internal/store"
)

func newTestRepo(t *testing.T) (*SQLiteRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "paytrack.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo, path
}

func TestSQLiteRepositoryGetSetRemove(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	if _, ok, err := repo.Get(ctx, store.KeyWorkDays); ok || err != nil {
		t.Fatalf("expected missing key, ok=%v err=%v", ok, err)
	}
	if err := repo.Set(ctx, store.KeyWorkDays, "[]"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := repo.Set(ctx, store.KeyWorkDays, `[{"a":1}]`); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, ok, err := repo.Get(ctx, store.KeyWorkDays)
	if err != nil || !ok || v != `[{"a":1}]` {
		t.Fatalf("unexpected value %q ok=%v err=%v", v, ok, err)
	}

	if err := repo.Set(ctx, store.KeyHourlyRate, "15.5"); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	keys, err := repo.Keys(ctx)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != store.KeyHourlyRate || keys[1] != store.KeyWorkDays {
		t.Fatalf("unexpected keys: %v", keys)
	}

	if err := repo.Remove(ctx, store.KeyWorkDays); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok, _ := repo.Get(ctx, store.KeyWorkDays); ok {
		t.Fatal("key still present after remove")
	}
	// removing a missing key is fine
	if err := repo.Remove(ctx, "missing"); err != nil {
		t.Fatalf("remove missing: %v", err)
	}
}

func TestSQLiteRepositorySurvivesReopen(t *testing.T) {
	ctx := context.Background()
	repo, path := newTestRepo(t)
	if err := repo.Set(ctx, store.KeyHourlyRate, "22.00"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := repo.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	v, ok, err := reopened.Get(ctx, store.KeyHourlyRate)
	if err != nil || !ok || v != "22.00" {
		t.Fatalf("value lost across reopen: %q ok=%v err=%v", v, ok, err)
	}
}

func TestSQLiteRepositoryClosed(t *testing.T) {
	repo, _ := newTestRepo(t)
	if err := repo.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := repo.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, _, err := repo.Get(context.Background(), "k"); !errors.Is(err, store.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := repo.Set(context.Background(), "k", "v"); !errors.Is(err, store.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
