package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"paytrack/internal/store"
)

// Store keeps values in process memory. It is mostly useful for tests and
// for running without a database; nothing survives a restart.
type Store struct {
	mu     sync.Mutex
	values map[string]string
	closed bool
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{values: make(map[string]string)}
}

// NewFromFiles seeds a store from base. Each file named after a store key
// (e.g. base/hourlyRate) provides that key's value. Lines starting with '#'
// and blank lines are ignored. Missing files are skipped.
func NewFromFiles(base string) *Store {
	s := New()
	for _, key := range []string{store.KeyHourlyRate, store.KeyWorkDays} {
		lines := readLines(filepath.Join(base, key))
		if len(lines) == 0 {
			continue
		}
		s.values[key] = strings.Join(lines, "\n")
	}
	return s
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", false, store.ErrClosed
	}
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	s.values[key] = value
	return nil
}

func (s *Store) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	delete(s.values, key)
	return nil
}

// Keys returns the stored keys in no particular order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	return keys
}

// Close makes every later call fail with store.ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
