// Package backend assembles the store, cache and notifier chosen by the
// configuration.
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"paytrack/internal/amqp"
	"paytrack/internal/app"
	"paytrack/internal/cache"
	"paytrack/internal/config"
	"paytrack/internal/log"
	"paytrack/internal/storage"
	"paytrack/internal/store"
	"paytrack/internal/store/memory"
)

const minCleanupInterval = time.Minute

// Checker reports whether a dependency is usable.
type Checker func(ctx context.Context) error

// Backend is the wired storage side of the application.
type Backend struct {
	Store    store.Store
	Raw      store.Store // Store without the read cache
	Notifier app.Notifier // nil when notifications are disabled
	Broker   *amqp.Client // same client as Notifier, for consumers
	Checks   map[string]Checker

	closers []func() error
}

// New builds the backend for cfg. An unreachable AMQP broker is logged and
// leaves notifications disabled; storage failures are returned.
func New(cfg *config.Config, logger *log.Logger) (*Backend, error) {
	logger = logger.WithComponent(log.ComponentBackend)
	b := &Backend{Checks: make(map[string]Checker)}

	switch cfg.DataBackend {
	case config.BackendSQLite:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize SQLite repository: %w", err)
		}
		b.Store = repo
		b.Checks["sqlite"] = repo.Ping
		b.closers = append(b.closers, repo.Close)
		logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
	case config.BackendMemory:
		var st *memory.Store
		if cfg.DataDir != "" {
			st = memory.NewFromFiles(cfg.DataDir)
		} else {
			st = memory.New()
		}
		b.Store = st
		b.closers = append(b.closers, st.Close)
		logger.Info("Initialized memory backend", "data_directory", cfg.DataDir)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.DataBackend)
	}

	b.Raw = b.Store
	if cfg.CacheSize > 0 {
		lru := cache.NewLRUCache[store.Lookup](cfg.CacheSize, cfg.CacheTTL)
		b.Store = store.NewCached(b.Store, lru)
		if cfg.CacheTTL > 0 {
			mgr := cache.NewManager()
			mgr.Register(lru)
			mgr.StartCleanup(max(cfg.CacheTTL, minCleanupInterval))
			b.closers = append(b.closers, func() error { mgr.Stop(); return nil })
		}
	}

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without notifications", log.FieldError, err)
		} else {
			b.Notifier = client
			b.Broker = client
			b.closers = append(b.closers, client.Close)
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}
	return b, nil
}

// Close releases resources in reverse order of creation.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	b.closers = nil
	return errors.Join(errs...)
}
