// Package worker reacts to ledger change notifications.
package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"paytrack/internal/amqp"
	"paytrack/internal/app"
	"paytrack/internal/log"
	"paytrack/internal/store"
)

// BackupFile is the name of the backup written into the worker's directory.
const BackupFile = "work-days-backup.csv"

// BackupWorker mirrors the stored ledger into a detailed CSV backup each time
// it changes. The message only says that something changed; the ledger is
// read back from the store.
type BackupWorker struct {
	store  store.Store
	dir    string
	logger *log.Logger
}

// NewBackupWorker builds a worker over st. A read-through cache in front of
// the store is bypassed since other processes write the ledger.
func NewBackupWorker(st store.Store, dir string, logger *log.Logger) *BackupWorker {
	if c, ok := st.(interface{ Unwrap() store.Store }); ok {
		st = c.Unwrap()
	}
	return &BackupWorker{store: st, dir: dir, logger: logger.WithComponent(log.ComponentBackend)}
}

// Path returns where the backup is written.
func (w *BackupWorker) Path() string {
	return filepath.Join(w.dir, BackupFile)
}

// HandleChange processes a single ledger change message.
func (w *BackupWorker) HandleChange(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	w.logger.InfoContext(ctx, "Processing ledger change", "id", msg.ID, "kind", msg.Kind)

	n, err := w.backup(ctx)
	if err != nil {
		return err
	}
	if n != msg.Entries {
		// the store lags when the publisher's write failed
		w.logger.WarnContext(ctx, "Stored ledger differs from notification",
			"id", msg.ID, log.FieldEntries, n, "notified_entries", msg.Entries)
	}
	return nil
}

// StartupBackup writes a backup of the current ledger so that changes made
// while the worker was down are not missed.
func (w *BackupWorker) StartupBackup(ctx context.Context) error {
	n, err := w.backup(ctx)
	if err != nil {
		return err
	}
	w.logger.InfoContext(ctx, "Startup backup written", "path", w.Path(), log.FieldEntries, n)
	return nil
}

func (w *BackupWorker) backup(ctx context.Context) (int, error) {
	session := app.NewSession(w.store, app.WithLogger(w.logger))
	session.Restore(ctx)

	text, err := session.ExportDetailed()
	if err != nil {
		return 0, fmt.Errorf("encode backup: %w", err)
	}
	if err := writeAtomic(w.Path(), []byte(text)); err != nil {
		return 0, fmt.Errorf("write backup: %w", err)
	}
	return session.Ledger().Len(), nil
}

// writeAtomic replaces path so readers never see a partial file.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".backup-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
