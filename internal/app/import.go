package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"paytrack/internal/core"
	"paytrack/internal/csvcodec"
	"paytrack/internal/log"
)

// maxParallelReads bounds ImportFiles.
const maxParallelReads = 4

type ImportOptions struct {
	// Detailed selects the rate-preserving backup format.
	Detailed bool
	// Recompute re-derives hours and earnings from the time fields and the
	// current rate instead of trusting the file.
	Recompute bool
}

// SkippedRow is a row left out of an import.
type SkippedRow struct {
	File string // empty for text imports
	*csvcodec.RowError
}

func (r SkippedRow) Error() string {
	if r.File == "" {
		return r.RowError.Error()
	}
	return r.File + ": " + r.RowError.Error()
}

type ImportResult struct {
	Imported int
	Skipped  []SkippedRow
	// Rejected counts rows dropped because recomputation gave no positive
	// hours.
	Rejected int
}

// ImportCSV replaces the ledger with the rows decoded from text. When no row
// is usable the ledger is left as it was and csvcodec.ErrEmptyImport is
// returned.
func (s *Session) ImportCSV(ctx context.Context, text string, opts ImportOptions) (*ImportResult, error) {
	imp, err := decode(text, opts.Detailed)
	if err != nil {
		return nil, err
	}
	res := &ImportResult{}
	for _, rowErr := range imp.Skipped {
		res.Skipped = append(res.Skipped, SkippedRow{RowError: rowErr})
	}
	return s.apply(ctx, imp.Ledger.Entries(), res, opts)
}

// ImportFiles reads and decodes the files concurrently and replaces the
// ledger with their rows merged in argument order. Files without usable rows
// contribute nothing; the import fails only when no file has any.
func (s *Session) ImportFiles(ctx context.Context, paths []string, opts ImportOptions) (*ImportResult, error) {
	if len(paths) == 0 {
		return nil, csvcodec.ErrEmptyImport
	}
	imports := make([]*csvcodec.Import, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelReads)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			imp, err := decode(string(data), opts.Detailed)
			if errors.Is(err, csvcodec.ErrEmptyImport) {
				s.logger.WarnContext(gctx, "File has no usable rows", "file", path, log.FieldError, err)
				return nil
			}
			if err != nil {
				return fmt.Errorf("decode %s: %w", path, err)
			}
			imports[i] = imp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &ImportResult{}
	var entries []core.WorkEntry
	for i, imp := range imports {
		if imp == nil {
			continue
		}
		entries = append(entries, imp.Ledger.Entries()...)
		for _, rowErr := range imp.Skipped {
			res.Skipped = append(res.Skipped, SkippedRow{File: filepath.Base(paths[i]), RowError: rowErr})
		}
	}
	if len(entries) == 0 {
		return nil, csvcodec.ErrEmptyImport
	}
	return s.apply(ctx, entries, res, opts)
}

func (s *Session) apply(ctx context.Context, entries []core.WorkEntry, res *ImportResult, opts ImportOptions) (*ImportResult, error) {
	if opts.Recompute {
		kept := entries[:0]
		for _, e := range entries {
			re, err := core.Recompute(e, s.rate)
			if err != nil {
				res.Rejected++
				continue
			}
			kept = append(kept, re)
		}
		entries = kept
		if len(entries) == 0 {
			return nil, fmt.Errorf("%w: every row was rejected on recompute", csvcodec.ErrEmptyImport)
		}
	}

	next, err := s.ledger.ReplaceAll(entries)
	if err != nil {
		return nil, err
	}
	s.ledger = next
	res.Imported = next.Len()

	s.logger.InfoContext(ctx, "Ledger imported",
		log.FieldOperation, log.OpImport,
		log.FieldEntries, res.Imported,
		log.FieldSkipped, len(res.Skipped),
		"recompute", opts.Recompute)
	s.persistLedger(ctx)
	s.notify(ctx, KindImport)
	return res, nil
}

func decode(text string, detailed bool) (*csvcodec.Import, error) {
	if detailed {
		return csvcodec.DecodeDetailed(text)
	}
	return csvcodec.Parse(text)
}
