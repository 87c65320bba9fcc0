// Package http exposes the session over a small JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"paytrack/internal/app"
	"paytrack/internal/log"
)

const maxImportBytes = 5 << 20

// Checker reports whether a dependency is usable. Used by /readyz.
type Checker func(ctx context.Context) error

type Server struct {
	http.Server

	// mu serialises every call into the session
	mu      sync.Mutex
	session *app.Session

	logger      *log.Logger
	rateLimiter *rateLimiter
	metrics     *securityMetrics
	checks      map[string]Checker
	now         func() time.Time
	started     time.Time

	shutdownOnce sync.Once
}

type Option func(*Server)

func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithCheck adds a named readiness check.
func WithCheck(name string, c Checker) Option {
	return func(s *Server) { s.checks[name] = c }
}

// WithRateLimit sets the number of mutating requests one client may send per
// minute.
func WithRateLimit(perMinute int) Option {
	return func(s *Server) { s.rateLimiter.limit = perMinute }
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, session *app.Session, opts ...Option) *Server {
	s := &Server{
		session:     session,
		rateLimiter: newRateLimiter(defaultRateLimit),
		metrics:     &securityMetrics{},
		checks:      make(map[string]Checker),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(log.DefaultConfig())
	}
	s.started = s.now()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/ledger", s.handleLedger)
	mux.HandleFunc("POST /api/days", s.handleAddDay)
	mux.HandleFunc("DELETE /api/days", s.handleClear)
	mux.HandleFunc("GET /api/rate", s.handleGetRate)
	mux.HandleFunc("PUT /api/rate", s.handleSetRate)
	mux.HandleFunc("POST /api/save", s.handleSave)
	mux.HandleFunc("GET /api/export.csv", s.handleExportCSV)
	mux.HandleFunc("GET /api/export.xlsx", s.handleExportXLSX)
	mux.HandleFunc("GET /api/export.pdf", s.handleExportPDF)
	mux.HandleFunc("POST /api/import", s.handleImport)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           withRequestID(log.Middleware(s.logger, requestIDFromContext)(s.withSecurity(mux))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown stops background work and then the HTTP server. Safe to call more
// than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// withSecurity sets the request ID and security headers, and rate limits
// mutating requests per client IP.
func (s *Server) withSecurity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := extractClientIP(r)
		logger := log.FromContext(r.Context()).WithComponent(log.ComponentSecurity)

		if detectSuspiciousRequest(r, s.metrics) {
			logger.WarnContext(r.Context(), "Suspicious request", log.FieldClientIP, clientIP, log.FieldPath, r.URL.Path)
		}

		if isMutating(r.Method) && !s.rateLimiter.allow(clientIP, s.metrics) {
			logger.WarnContext(r.Context(), "Rate limit exceeded", log.FieldClientIP, clientIP, log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		setSecurityHeaders(w.Header())
		next.ServeHTTP(w, r)
	})
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
