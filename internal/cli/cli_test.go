package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"paytrack/internal/config"
	"paytrack/internal/core"
	"paytrack/internal/csvcodec"
	"paytrack/internal/log"
	"paytrack/internal/store"
	"paytrack/internal/store/memory"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:              "8081",
		DataBackend:       config.BackendMemory,
		DefaultHourlyRate: "10",
		CurrencySymbol:    "€",
		LogLevel:          "error",
		LogFormat:         "text",
	}
}

// run executes one command line against st and returns stdout and stderr.
func run(t *testing.T, st store.Store, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := Run(context.Background(), args,
		WithConfig(testConfig()),
		WithStore(st),
		WithLogger(log.Discard()),
		WithOutput(&out, &errOut),
		withClock(func() time.Time { return time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC) }),
	)
	return out.String(), errOut.String(), err
}

func mustRun(t *testing.T, st store.Store, args ...string) string {
	t.Helper()
	out, _, err := run(t, st, args...)
	if err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out
}

func TestAddShowTotals(t *testing.T) {
	st := memory.New()

	out := mustRun(t, st, "add", "2025-05-01", "09:00", "17:00", "--rate", "15.50")
	if !strings.Contains(out, "8.00 h, 124.00 €") {
		t.Fatalf("unexpected add output: %q", out)
	}
	mustRun(t, st, "add", "2025-05-02", "10:00", "18:30")

	show := mustRun(t, st, "show")
	for _, want := range []string{"2025-05-01", "2025-05-02", "TOTAL", "16.50", "255.75"} {
		if !strings.Contains(show, want) {
			t.Errorf("show output missing %q:\n%s", want, show)
		}
	}

	totals := mustRun(t, st, "totals")
	if !strings.Contains(totals, "255.75 €") || !strings.Contains(totals, "15.50 €/h") {
		t.Fatalf("unexpected totals: %q", totals)
	}
}

func TestAddRejectedKeepsRateAndLedger(t *testing.T) {
	st := memory.New()
	_, _, err := run(t, st, "add", "2025-05-01", "17:00", "09:00", "--rate", "99")
	if !errors.Is(err, core.ErrRejectedEntry) {
		t.Fatalf("expected ErrRejectedEntry, got %v", err)
	}
	if out := mustRun(t, st, "rate"); !strings.HasPrefix(out, "10.00") {
		t.Fatalf("rate changed by rejected add: %q", out)
	}
	if out := mustRun(t, st, "show"); !strings.Contains(out, "No work days") {
		t.Fatalf("ledger changed by rejected add: %q", out)
	}
}

func TestAddArgumentErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{"bad date", []string{"add", "May first", "09:00", "17:00"}, core.ErrInvalidDate},
		{"bad time", []string{"add", "2025-05-01", "9", "17:00"}, core.ErrInvalidFormat},
		{"bad rate", []string{"add", "2025-05-01", "09:00", "17:00", "--rate", "-2"}, core.ErrInvalidRate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, memory.New(), tt.args...)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			var cliErr *CLIError
			if !errors.As(MapError(err), &cliErr) || cliErr.Hint == "" {
				t.Fatalf("expected a CLIError with a hint, got %v", MapError(err))
			}
		})
	}
}

func TestRateSetDoesNotTouchExistingDays(t *testing.T) {
	st := memory.New()
	mustRun(t, st, "add", "2025-05-01", "09:00", "17:00")
	mustRun(t, st, "rate", "set", "20")
	mustRun(t, st, "add", "2025-05-02", "09:00", "17:00")

	if out := mustRun(t, st, "rate", "get"); !strings.HasPrefix(out, "20.00") {
		t.Fatalf("unexpected rate: %q", out)
	}
	csv := mustRun(t, st, "export")
	if !strings.Contains(csv, "2025-05-01,09:00,17:00,8.00,80.00") || !strings.Contains(csv, "2025-05-02,09:00,17:00,8.00,160.00") {
		t.Fatalf("unexpected export:\n%s", csv)
	}
}

func TestClearRequiresConfirmation(t *testing.T) {
	st := memory.New()
	mustRun(t, st, "add", "2025-05-01", "09:00", "17:00", "--rate", "12")

	if _, _, err := run(t, st, "clear"); err == nil {
		t.Fatal("clear without --yes should fail")
	}
	if out := mustRun(t, st, "clear", "--yes"); !strings.Contains(out, "Cleared 1 work days") {
		t.Fatalf("unexpected clear output: %q", out)
	}
	if _, ok, _ := st.Get(context.Background(), store.KeyWorkDays); ok {
		t.Fatal("workDays should be removed")
	}
	if out := mustRun(t, st, "rate"); !strings.HasPrefix(out, "12.00") {
		t.Fatalf("clear must keep the rate: %q", out)
	}
}

func TestSave(t *testing.T) {
	st := memory.New()
	mustRun(t, st, "add", "2025-05-01", "09:00", "17:00")
	if out := mustRun(t, st, "save"); !strings.Contains(out, "Saved 1 work days") {
		t.Fatalf("unexpected save output: %q", out)
	}
	if _, ok, _ := st.Get(context.Background(), store.KeyHourlyRate); !ok {
		t.Fatal("save should write the rate")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	st := memory.New()
	mustRun(t, st, "add", "2025-05-01", "09:00", "17:00", "--rate", "15.50")
	mustRun(t, st, "add", "2025-05-02", "10:00", "18:30")

	plain := filepath.Join(dir, "plain.csv")
	mustRun(t, st, "export", "--output", plain)
	detailed := filepath.Join(dir, "backup.csv")
	mustRun(t, st, "export", "--format", "detailed", "-o", detailed)

	other := memory.New()
	out := mustRun(t, other, "import", plain)
	if !strings.Contains(out, "Imported 2 work days") {
		t.Fatalf("unexpected import output: %q", out)
	}
	if got := mustRun(t, other, "totals"); !strings.Contains(got, "255.75") {
		t.Fatalf("imported totals differ: %q", got)
	}

	restored := memory.New()
	mustRun(t, restored, "import", "--detailed", detailed)
	csv := mustRun(t, restored, "export")
	if !strings.Contains(csv, "TOTAL,,,16.50,255.75") {
		t.Fatalf("unexpected export after detailed import:\n%s", csv)
	}
}

func TestImportReportsSkippedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "days.csv")
	text := "Date,Time In,Time Out,Hours Worked,Earnings (€)\n" +
		"2025-05-01,09:00,17:00,8.00,124.00\n" +
		"2025-05-02,broken\n" +
		"TOTAL,,,8.00,124.00"
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	out, errOut, err := run(t, memory.New(), "import", path)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, "Imported 1 work days, skipped 1 rows") {
		t.Fatalf("unexpected output: %q", out)
	}
	if !strings.Contains(errOut, "line 3") {
		t.Fatalf("skipped row not reported: %q", errOut)
	}
}

func TestImportEmptyFileLeavesLedger(t *testing.T) {
	st := memory.New()
	mustRun(t, st, "add", "2025-05-01", "09:00", "17:00")
	path := filepath.Join(t.TempDir(), "empty.csv")
	if err := os.WriteFile(path, []byte("Date,Time In,Time Out,Hours Worked,Earnings\nTOTAL,,,0.00,0.00"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, err := run(t, st, "import", path)
	if !errors.Is(err, csvcodec.ErrEmptyImport) {
		t.Fatalf("expected ErrEmptyImport, got %v", err)
	}
	if out := mustRun(t, st, "show"); !strings.Contains(out, "2025-05-01") {
		t.Fatalf("ledger should be unchanged: %q", out)
	}
}

func TestExportStatements(t *testing.T) {
	dir := t.TempDir()
	st := memory.New()
	mustRun(t, st, "add", "2025-05-01", "09:00", "17:00")

	for _, format := range []string{"xlsx", "pdf"} {
		t.Run(format, func(t *testing.T) {
			path := filepath.Join(dir, "statement."+format)
			mustRun(t, st, "export", "--format", format, "--output", path)
			info, err := os.Stat(path)
			if err != nil {
				t.Fatalf("stat: %v", err)
			}
			if info.Size() == 0 {
				t.Fatal("statement is empty")
			}
		})
	}

	if _, _, err := run(t, st, "export", "--format", "odt"); err == nil {
		t.Fatal("unknown format should fail")
	}
}

func TestShowMonthFilter(t *testing.T) {
	st := memory.New()
	mustRun(t, st, "add", "2025-04-30", "09:00", "10:00")
	mustRun(t, st, "add", "2025-05-01", "09:00", "11:00")

	out := mustRun(t, st, "show", "--month", "2025-05")
	if strings.Contains(out, "2025-04-30") || !strings.Contains(out, "2025-05-01") {
		t.Fatalf("month filter not applied:\n%s", out)
	}
	if _, _, err := run(t, st, "show", "--month", "May"); !errors.Is(err, core.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestWatchWithoutBroker(t *testing.T) {
	_, _, err := run(t, memory.New(), "watch")
	var cliErr *CLIError
	if !errors.As(err, &cliErr) {
		t.Fatalf("expected CLIError, got %v", err)
	}
}

func TestDefaultExportName(t *testing.T) {
	got := defaultExportName(time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC), "pdf")
	if got != "work-days-2025-05.pdf" {
		t.Fatalf("got %q", got)
	}
}

func TestDefaultBackendPersistsBetweenRuns(t *testing.T) {
	for _, k := range []string{"DATA_BACKEND", "AMQP_URL", "PAYTRACK_CONFIG", "DATA_DIR"} {
		t.Setenv(k, "")
	}
	t.Setenv("SQLITE_DB_PATH", filepath.Join(t.TempDir(), "paytrack.db"))

	runDefault := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		err := Run(context.Background(), args, WithLogger(log.Discard()), WithOutput(&out, io.Discard))
		if err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		return out.String()
	}

	runDefault("add", "2025-05-01", "09:00", "17:00", "--rate", "15.50")
	out := runDefault("show")
	if !strings.Contains(out, "2025-05-01") || !strings.Contains(out, "124.00") {
		t.Fatalf("day recorded in the first run is missing:\n%s", out)
	}
	if rate := runDefault("rate"); !strings.HasPrefix(rate, "15.50") {
		t.Fatalf("rate not persisted: %q", rate)
	}
}
