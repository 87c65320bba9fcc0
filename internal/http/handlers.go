package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"paytrack/internal/app"
	"paytrack/internal/core"
	"paytrack/internal/log"
	"paytrack/internal/report"
)

type ledgerView struct {
	Entries  []core.WorkEntry `json:"entries"`
	Totals   core.Totals      `json:"totals"`
	Rate     decimal.Decimal  `json:"rate"`
	Currency string           `json:"currency"`
}

type dayRequest struct {
	Date    string `json:"date"`
	TimeIn  string `json:"time_in"`
	TimeOut string `json:"time_out"`
	Rate    string `json:"rate,omitempty"`
}

type dayResponse struct {
	Entry  core.WorkEntry `json:"entry"`
	Totals core.Totals    `json:"totals"`
}

type rateRequest struct {
	Rate string `json:"rate"`
}

type rateResponse struct {
	Rate decimal.Decimal `json:"rate"`
}

type skippedRow struct {
	File  string `json:"file,omitempty"`
	Line  int    `json:"line"`
	Error string `json:"error"`
}

type importResponse struct {
	Imported int          `json:"imported"`
	Rejected int          `json:"rejected"`
	Skipped  []skippedRow `json:"skipped"`
	Totals   core.Totals  `json:"totals"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": s.now().Sub(s.started).Round(time.Second).String(),
	})
}

// handleReady runs every registered check with a short timeout.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			checks[name] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	writeJSON(w, code, map[string]any{"status": status, "checks": checks})
}

func (s *Server) ledgerView() ledgerView {
	entries := s.session.Ledger().Entries()
	if entries == nil {
		entries = []core.WorkEntry{}
	}
	return ledgerView{
		Entries:  entries,
		Totals:   s.session.Totals(),
		Rate:     s.session.Rate(),
		Currency: s.session.Currency(),
	}
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	view := s.ledgerView()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, view)
}

// handleAddDay records a work day. A rate in the request becomes the session
// rate, but only when the day is accepted.
func (s *Server) handleAddDay(w http.ResponseWriter, r *http.Request) {
	var req dayRequest
	if err := readInput(r, &req, map[string]*string{
		"date": &req.Date, "time_in": &req.TimeIn, "time_out": &req.TimeOut, "rate": &req.Rate,
	}); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	date, err := core.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid date %q", req.Date))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rate := s.session.Rate()
	if req.Rate != "" {
		if rate, err = core.ParseRate(req.Rate); err != nil {
			writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid rate %q", req.Rate))
			return
		}
	}
	in := core.EntryInput{Date: date, TimeIn: req.TimeIn, TimeOut: req.TimeOut, Rate: rate}
	if _, _, err := s.session.Ledger().Add(in); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if !rate.Equal(s.session.Rate()) {
		if err := s.session.SetRate(r.Context(), rate); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
	}
	entry, err := s.session.AddDay(r.Context(), date, req.TimeIn, req.TimeOut)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, dayResponse{Entry: entry, Totals: s.session.Totals()})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.session.Clear(r.Context())
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetRate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rate := s.session.Rate()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, rateResponse{Rate: rate})
}

func (s *Server) handleSetRate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if err := readInput(r, &req, map[string]*string{"rate": &req.Rate}); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rate, err := core.ParseRate(req.Rate)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid rate %q", req.Rate))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.session.SetRate(r.Context(), rate); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rateResponse{Rate: rate})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	err := s.session.Save(r.Context())
	s.mu.Unlock()
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Save failed", log.FieldOperation, log.OpSave, log.FieldError, err)
		writeError(w, statusFor(err), "could not save data")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExportCSV serves the plain export, or the backup format with
// ?detailed=true.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	detailed, _ := strconv.ParseBool(r.URL.Query().Get("detailed"))

	s.mu.Lock()
	var (
		body string
		err  error
	)
	if detailed {
		body, err = s.session.ExportDetailed()
	} else {
		body = s.session.ExportCSV()
	}
	s.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.attachment(w, "text/csv; charset=utf-8", "csv")
	_, _ = io.WriteString(w, body)
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	s.serveStatement(w, r, "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", report.BuildXLSX)
}

func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	s.serveStatement(w, r, "pdf", "application/pdf", report.BuildPDF)
}

func (s *Server) serveStatement(w http.ResponseWriter, r *http.Request, ext, contentType string, build func(report.Statement) ([]byte, error)) {
	s.mu.Lock()
	stmt := report.NewStatement(s.session.Ledger(), s.session.Rate(), s.session.Currency(), s.now())
	s.mu.Unlock()

	data, err := build(stmt)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Statement build failed", log.FieldFormat, ext, log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "could not build statement")
		return
	}
	s.attachment(w, contentType, ext)
	_, _ = w.Write(data)
}

func (s *Server) attachment(w http.ResponseWriter, contentType, ext string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="work-days-%s.%s"`, s.now().Format("2006-01"), ext))
}

// handleImport replaces the ledger with the CSV in the request body.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := app.ImportOptions{}
	opts.Recompute, _ = strconv.ParseBool(q.Get("recompute"))
	opts.Detailed, _ = strconv.ParseBool(q.Get("detailed"))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "import too large")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.session.ImportCSV(r.Context(), string(body), opts)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	resp := importResponse{Imported: res.Imported, Rejected: res.Rejected, Skipped: []skippedRow{}, Totals: s.session.Totals()}
	for _, sk := range res.Skipped {
		resp.Skipped = append(resp.Skipped, skippedRow{File: sk.File, Line: sk.Line, Error: sk.Err.Error()})
	}
	writeJSON(w, http.StatusOK, resp)
}
