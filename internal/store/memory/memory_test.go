package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"paytrack/internal/store"
)

func TestMemoryStoreSetGetRemove(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, ok, err := s.Get(ctx, store.KeyHourlyRate); ok || err != nil {
		t.Fatalf("expected absent key, got ok=%v err=%v", ok, err)
	}
	if err := s.Set(ctx, store.KeyHourlyRate, "15.5"); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := s.Get(ctx, store.KeyHourlyRate)
	if err != nil || !ok || v != "15.5" {
		t.Fatalf("unexpected get: v=%q ok=%v err=%v", v, ok, err)
	}
	if err := s.Remove(ctx, store.KeyHourlyRate); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok, _ := s.Get(ctx, store.KeyHourlyRate); ok {
		t.Fatal("key still present after remove")
	}
	// removing an absent key is not an error
	if err := s.Remove(ctx, "nope"); err != nil {
		t.Fatalf("remove absent: %v", err)
	}
}

func TestMemoryStoreClosed(t *testing.T) {
	s := New()
	_ = s.Close()
	if err := s.Set(context.Background(), "k", "v"); !errors.Is(err, store.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, _, err := s.Get(context.Background(), "k"); !errors.Is(err, store.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestNewFromFilesSeeds(t *testing.T) {
	dir := t.TempDir()
	// No files -> empty store
	s := NewFromFiles(dir)
	if len(s.Keys()) != 0 {
		t.Fatalf("expected empty store, got %v", s.Keys())
	}

	mustWrite := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	mustWrite(store.KeyHourlyRate, "# default rate\n\n15.50\n")

	s = NewFromFiles(dir)
	v, ok, _ := s.Get(context.Background(), store.KeyHourlyRate)
	if !ok || v != "15.50" {
		t.Fatalf("unexpected seeded rate: %q ok=%v", v, ok)
	}
	if _, ok, _ := s.Get(context.Background(), store.KeyWorkDays); ok {
		t.Fatal("workDays should not be seeded")
	}
}
