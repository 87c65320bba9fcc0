// Package app holds the application session: the current ledger and rate of
// one user, restored from and written back to a store.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"paytrack/internal/core"
	"paytrack/internal/csvcodec"
	"paytrack/internal/log"
	"paytrack/internal/store"
)

// Change kinds published to the notifier.
const (
	KindAdd    = "add"
	KindClear  = "clear"
	KindImport = "import"
	KindRate   = "rate"
	KindSave   = "save"
)

// Notifier is told about every ledger change. Errors are logged only.
type Notifier interface {
	LedgerChanged(ctx context.Context, kind string, l core.Ledger) error
}

// Session owns the ledger and the hourly rate. It is not safe for concurrent
// use; callers serialise access.
type Session struct {
	store       store.Store
	notifier    Notifier
	logger      *log.Logger
	defaultRate decimal.Decimal
	currency    string

	ledger core.Ledger
	rate   decimal.Decimal
}

type Option func(*Session)

func WithNotifier(n Notifier) Option {
	return func(s *Session) { s.notifier = n }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Session) { s.logger = l.WithComponent(log.ComponentSession) }
}

// WithDefaultRate sets the rate used when none is stored. Negative values are
// ignored.
func WithDefaultRate(r decimal.Decimal) Option {
	return func(s *Session) {
		if !r.IsNegative() {
			s.defaultRate = r
		}
	}
}

// WithCurrency sets the symbol shown in the CSV earnings header.
func WithCurrency(symbol string) Option {
	return func(s *Session) { s.currency = symbol }
}

// NewSession returns an empty session. Call Restore to load persisted state.
func NewSession(st store.Store, opts ...Option) *Session {
	s := &Session{
		store:    st,
		currency: csvcodec.DefaultCurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentSession)
	}
	s.rate = s.defaultRate
	return s
}

// Restore loads the rate and the ledger from the store. Read or decode
// failures are logged and leave the default rate or an empty ledger in place.
func (s *Session) Restore(ctx context.Context) {
	s.rate = s.defaultRate
	s.ledger = core.Ledger{}

	if raw, ok, err := s.store.Get(ctx, store.KeyHourlyRate); err != nil {
		s.logger.WarnContext(ctx, "Failed to read hourly rate, using default", log.FieldError, err)
	} else if ok {
		if r, err := core.ParseRate(raw); err != nil {
			s.logger.WarnContext(ctx, "Stored hourly rate is invalid, using default", log.FieldError, err, "value", raw)
		} else {
			s.rate = r
		}
	}

	raw, ok, err := s.store.Get(ctx, store.KeyWorkDays)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to read work days, starting empty", log.FieldError, err)
		return
	}
	if !ok {
		return
	}
	l, err := decodeLedger(raw)
	if err != nil {
		s.logger.WarnContext(ctx, "Stored work days are corrupted, starting empty", log.FieldError, err)
		return
	}
	s.ledger = l
	s.logger.InfoContext(ctx, "Session restored",
		log.FieldOperation, log.OpRestore,
		log.FieldEntries, l.Len(),
		log.FieldRate, s.rate.String())
}

func (s *Session) Ledger() core.Ledger {
	return s.ledger
}

func (s *Session) Rate() decimal.Decimal {
	return s.rate
}

func (s *Session) Totals() core.Totals {
	return s.ledger.Totals()
}

func (s *Session) Currency() string {
	return s.currency
}

// AddDay records a work day at the current rate.
func (s *Session) AddDay(ctx context.Context, date core.Date, timeIn, timeOut string) (core.WorkEntry, error) {
	next, entry, err := s.ledger.Add(core.EntryInput{Date: date, TimeIn: timeIn, TimeOut: timeOut, Rate: s.rate})
	if err != nil {
		return core.WorkEntry{}, err
	}
	s.ledger = next
	s.logger.InfoContext(ctx, "Work day added", log.NewFields().
		WithOperation(log.OpAdd).
		WithEntry(entry.Date.String(), core.FormatAmount(entry.HoursWorked), core.FormatAmount(entry.Earnings), entry.Rate.String()).
		ToSlice()...)
	s.persistLedger(ctx)
	s.notify(ctx, KindAdd)
	return entry, nil
}

// SetRate changes the rate for future entries. Existing entries keep theirs.
func (s *Session) SetRate(ctx context.Context, rate decimal.Decimal) error {
	if err := core.ValidateRate(rate); err != nil {
		return err
	}
	s.rate = rate
	s.persist(ctx, store.KeyHourlyRate, rate.String())
	s.notify(ctx, KindRate)
	return nil
}

// Clear empties the ledger and removes the persisted work days. The rate is
// kept.
func (s *Session) Clear(ctx context.Context) {
	s.ledger = s.ledger.Clear()
	if err := s.store.Remove(ctx, store.KeyWorkDays); err != nil {
		s.logger.WarnContext(ctx, "Failed to remove work days", log.FieldError, err)
	}
	s.logger.InfoContext(ctx, "Ledger cleared", log.FieldOperation, log.OpClear)
	s.notify(ctx, KindClear)
}

// Save writes the rate and the ledger. Unlike the automatic writes after
// each change, failures are returned.
func (s *Session) Save(ctx context.Context) error {
	body, err := encodeLedger(s.ledger)
	if err != nil {
		return err
	}
	errRate := s.store.Set(ctx, store.KeyHourlyRate, s.rate.String())
	errDays := s.store.Set(ctx, store.KeyWorkDays, body)
	if err := errors.Join(errRate, errDays); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	s.logger.InfoContext(ctx, "Session saved", log.FieldOperation, log.OpSave, log.FieldEntries, s.ledger.Len())
	s.notify(ctx, KindSave)
	return nil
}

// ExportCSV renders the ledger in the plain CSV format.
func (s *Session) ExportCSV() string {
	return csvcodec.Encoder{Currency: s.currency}.Encode(s.ledger)
}

// ExportDetailed renders the ledger in the rate-preserving backup format.
func (s *Session) ExportDetailed() (string, error) {
	return csvcodec.EncodeDetailed(s.ledger)
}

func (s *Session) persistLedger(ctx context.Context) {
	body, err := encodeLedger(s.ledger)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to encode work days", log.FieldError, err)
		return
	}
	s.persist(ctx, store.KeyWorkDays, body)
}

// persist writes without reporting failures; memory stays authoritative.
func (s *Session) persist(ctx context.Context, key, value string) {
	if err := s.store.Set(ctx, key, value); err != nil {
		s.logger.WarnContext(ctx, "Failed to persist value", log.FieldKey, key, log.FieldError, err)
	}
}

func (s *Session) notify(ctx context.Context, kind string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.LedgerChanged(ctx, kind, s.ledger); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish ledger change", "kind", kind, log.FieldError, err)
	}
}

func encodeLedger(l core.Ledger) (string, error) {
	entries := l.Entries()
	if entries == nil {
		entries = []core.WorkEntry{}
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("encode work days: %w", err)
	}
	return string(b), nil
}

func decodeLedger(raw string) (core.Ledger, error) {
	var entries []core.WorkEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return core.Ledger{}, fmt.Errorf("decode work days: %w", err)
	}
	return core.Ledger{}.ReplaceAll(entries)
}
