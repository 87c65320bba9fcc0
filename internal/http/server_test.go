package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"paytrack/internal/app"
	"paytrack/internal/log"
	"paytrack/internal/store/memory"
)

func newTestServer(t *testing.T, opts ...Option) (*Server, *app.Session) {
	t.Helper()
	session := app.NewSession(memory.New(), app.WithLogger(log.Discard()), app.WithDefaultRate(decimal.RequireFromString("15.50")))
	session.Restore(context.Background())
	opts = append([]Option{WithLogger(log.Discard())}, opts...)
	srv := NewServer(":0", session, opts...)
	srv.now = func() time.Time { return time.Date(2025, 5, 31, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { srv.rateLimiter.stop() })
	return srv, session
}

func do(t *testing.T, srv *Server, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func addDay(t *testing.T, srv *Server, date, in, out string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(dayRequest{Date: date, TimeIn: in, TimeOut: out})
	return do(t, srv, http.MethodPost, "/api/days", "application/json", string(body))
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t, WithCheck("store", func(context.Context) error { return nil }))
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Fatalf("%s missing request id", path)
		}
	}

	failing, _ := newTestServer(t, WithCheck("store", func(context.Context) error { return errors.New("closed") }))
	rr := do(t, failing, http.MethodGet, "/readyz", "", "")
	if rr.Code != http.StatusServiceUnavailable || !strings.Contains(rr.Body.String(), "failed: closed") {
		t.Fatalf("unexpected readiness: %d %s", rr.Code, rr.Body.String())
	}
}

func TestAddDayAndLedger(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := addDay(t, srv, "2025-05-01", "09:00", "17:00")
	if rr.Code != http.StatusCreated {
		t.Fatalf("add status=%d body=%s", rr.Code, rr.Body.String())
	}
	var day struct {
		Entry struct {
			HoursWorked string `json:"hoursWorked"`
			Earnings    string `json:"earnings"`
		} `json:"entry"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &day); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if day.Entry.HoursWorked != "8" || day.Entry.Earnings != "124" {
		t.Fatalf("unexpected entry: %+v", day.Entry)
	}

	form := url.Values{"date": {"2025-05-02"}, "time_in": {"10:00"}, "time_out": {"18:30"}}
	rr = do(t, srv, http.MethodPost, "/api/days", "application/x-www-form-urlencoded", form.Encode())
	if rr.Code != http.StatusCreated {
		t.Fatalf("form add status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodGet, "/api/ledger", "", "")
	var view struct {
		Entries []json.RawMessage `json:"entries"`
		Totals  struct {
			TotalHours    decimal.Decimal `json:"totalHours"`
			TotalEarnings decimal.Decimal `json:"totalEarnings"`
		} `json:"totals"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode ledger: %v", err)
	}
	if len(view.Entries) != 2 || view.Totals.TotalHours.StringFixed(2) != "16.50" || view.Totals.TotalEarnings.StringFixed(2) != "255.75" {
		t.Fatalf("unexpected ledger: %s", rr.Body.String())
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("security headers missing")
	}
}

func TestAddZeroLengthDayIsRejected(t *testing.T) {
	srv, session := newTestServer(t)
	addDay(t, srv, "2025-05-01", "09:00", "17:00")

	rr := addDay(t, srv, "2025-05-02", "09:00", "09:00")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	if session.Ledger().Len() != 1 {
		t.Fatalf("ledger changed: %d entries", session.Ledger().Len())
	}
}

func TestAddDayValidation(t *testing.T) {
	srv, session := newTestServer(t)
	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{"date":`, http.StatusBadRequest},
		{"unknown field", `{"date":"2025-05-01","hours":8}`, http.StatusBadRequest},
		{"bad date", `{"date":"soon","time_in":"09:00","time_out":"17:00"}`, http.StatusUnprocessableEntity},
		{"bad time", `{"date":"2025-05-01","time_in":"9am","time_out":"17:00"}`, http.StatusUnprocessableEntity},
		{"overnight", `{"date":"2025-05-01","time_in":"22:00","time_out":"06:00"}`, http.StatusUnprocessableEntity},
		{"negative rate", `{"date":"2025-05-01","time_in":"09:00","time_out":"17:00","rate":"-2"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/days", "application/json", tt.body)
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rr.Code, rr.Body.String())
			}
		})
	}
	if !session.Ledger().IsEmpty() {
		t.Fatal("rejected requests changed the ledger")
	}
}

func TestAddDayWithRateUpdatesSessionRate(t *testing.T) {
	srv, session := newTestServer(t)

	// rejected day must not change the rate
	do(t, srv, http.MethodPost, "/api/days", "application/json", `{"date":"2025-05-01","time_in":"09:00","time_out":"09:00","rate":"30"}`)
	if session.Rate().StringFixed(2) != "15.50" {
		t.Fatalf("rate changed by rejected day: %s", session.Rate())
	}

	rr := do(t, srv, http.MethodPost, "/api/days", "application/json", `{"date":"2025-05-01","time_in":"09:00","time_out":"10:00","rate":"30"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d", rr.Code)
	}
	if session.Rate().IntPart() != 30 {
		t.Fatalf("rate not applied: %s", session.Rate())
	}
}

func TestRateEndpoints(t *testing.T) {
	srv, session := newTestServer(t)
	if rr := do(t, srv, http.MethodPut, "/api/rate", "application/json", `{"rate":"20,00"}`); rr.Code != http.StatusOK {
		t.Fatalf("set rate status=%d", rr.Code)
	}
	if session.Rate().IntPart() != 20 {
		t.Fatalf("unexpected rate %s", session.Rate())
	}
	if rr := do(t, srv, http.MethodPut, "/api/rate", "application/json", `{"rate":"abc"}`); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	rr := do(t, srv, http.MethodGet, "/api/rate", "", "")
	if !strings.Contains(rr.Body.String(), `"rate":"20"`) {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}

func TestClearAndSave(t *testing.T) {
	srv, session := newTestServer(t)
	addDay(t, srv, "2025-05-01", "09:00", "17:00")
	if rr := do(t, srv, http.MethodPost, "/api/save", "", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("save status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodDelete, "/api/days", "", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("clear status=%d", rr.Code)
	}
	if !session.Ledger().IsEmpty() {
		t.Fatal("ledger not cleared")
	}
}

func TestExportAndImport(t *testing.T) {
	srv, session := newTestServer(t)
	addDay(t, srv, "2025-05-01", "09:00", "17:00")
	addDay(t, srv, "2025-05-02", "10:00", "18:30")

	rr := do(t, srv, http.MethodGet, "/api/export.csv", "", "")
	want := "Date,Time In,Time Out,Hours Worked,Earnings (€)\n2025-05-01,09:00,17:00,8.00,124.00\n2025-05-02,10:00,18:30,8.50,131.75\nTOTAL,,,16.50,255.75"
	if rr.Body.String() != want {
		t.Fatalf("unexpected export:\n%s", rr.Body.String())
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "work-days-2025-05.csv") {
		t.Fatalf("unexpected disposition %q", cd)
	}

	do(t, srv, http.MethodDelete, "/api/days", "", "")
	rr = do(t, srv, http.MethodPost, "/api/import", "text/csv", want)
	if rr.Code != http.StatusOK {
		t.Fatalf("import status=%d body=%s", rr.Code, rr.Body.String())
	}
	if session.Ledger().Len() != 2 {
		t.Fatalf("expected 2 imported entries, got %d", session.Ledger().Len())
	}

	rr = do(t, srv, http.MethodPost, "/api/import", "text/csv", "Date\nTOTAL,,,0.00,0.00")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for empty import, got %d", rr.Code)
	}
	if session.Ledger().Len() != 2 {
		t.Fatal("empty import changed the ledger")
	}
}

func TestStatementExports(t *testing.T) {
	srv, _ := newTestServer(t)
	addDay(t, srv, "2025-05-01", "09:00", "17:00")

	rr := do(t, srv, http.MethodGet, "/api/export.pdf", "", "")
	if rr.Code != http.StatusOK || !bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("pdf export failed: %d", rr.Code)
	}
	rr = do(t, srv, http.MethodGet, "/api/export.xlsx", "", "")
	if rr.Code != http.StatusOK || !bytes.HasPrefix(rr.Body.Bytes(), []byte("PK")) {
		t.Fatalf("xlsx export failed: %d", rr.Code)
	}
}

func TestMutatingRequestsAreRateLimited(t *testing.T) {
	srv, _ := newTestServer(t, WithRateLimit(2))
	for i := 0; i < 2; i++ {
		if rr := do(t, srv, http.MethodPost, "/api/save", "", ""); rr.Code != http.StatusNoContent {
			t.Fatalf("request %d status=%d", i, rr.Code)
		}
	}
	rr := do(t, srv, http.MethodPost, "/api/save", "", "")
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	// reads are not limited
	if rr := do(t, srv, http.MethodGet, "/api/ledger", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("read status=%d", rr.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)
	if rr := do(t, srv, http.MethodGet, "/api/days", "", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}
