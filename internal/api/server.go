package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ozemskikh/SearchEngine/internal/engine"
	"github.com/ozemskikh/SearchEngine/internal/id/uuid"
	"github.com/ozemskikh/SearchEngine/internal/metrics"
	"github.com/ozemskikh/SearchEngine/internal/search"
	"github.com/ozemskikh/SearchEngine/internal/stats"
)

const (
	requestTimeout = 60 * time.Second
	allSites       = "All sites"
)

// Controller starts and stops indexing.
type Controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IndexPage(ctx context.Context, rawURL string) error
}

// Searcher answers queries.
type Searcher interface {
	Search(ctx context.Context, q search.Query) (search.Response, error)
}

// Reporter builds statistics.
type Reporter interface {
	Report(ctx context.Context) (stats.Report, error)
}

// Server wires HTTP handlers to the engine.
type Server struct {
	router     chi.Router
	controller Controller
	searcher   Searcher
	reporter   Reporter
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(controller Controller, searcher Searcher, reporter Reporter, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		controller: controller,
		searcher:   searcher,
		reporter:   reporter,
		logger:     logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/startIndexing", s.startIndexing)
		r.Get("/stopIndexing", s.stopIndexing)
		r.Post("/indexPage", s.indexPage)
		r.Get("/statistics", s.statistics)
		r.Get("/search", s.search)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

type envelope struct {
	Result bool   `json:"result"`
	Error  string `json:"error,omitempty"`
}

type statisticsResponse struct {
	envelope
	Statistics stats.Report `json:"statistics"`
}

type searchResponse struct {
	envelope
	Count int             `json:"count"`
	Data  []search.Result `json:"data"`
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) startIndexing(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.Start(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Result: true})
}

func (s *Server) stopIndexing(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.Stop(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Result: true})
}

func (s *Server) indexPage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeError(w, r, engine.NewValidationError("invalid form"))
		return
	}
	if err := s.controller.IndexPage(r.Context(), r.FormValue("url")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Result: true})
}

func (s *Server) statistics(w http.ResponseWriter, r *http.Request) {
	report, err := s.reporter.Report(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statisticsResponse{envelope: envelope{Result: true}, Statistics: report})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	offset, err := intParam(params.Get("offset"), 0)
	if err != nil {
		s.writeError(w, r, engine.NewValidationError("invalid offset"))
		return
	}
	limit, err := intParam(params.Get("limit"), 0)
	if err != nil {
		s.writeError(w, r, engine.NewValidationError("invalid limit"))
		return
	}
	site := strings.TrimSpace(params.Get("site"))
	if strings.EqualFold(site, allSites) {
		site = ""
	}
	resp, err := s.searcher.Search(r.Context(), search.Query{
		Text:   params.Get("query"),
		Site:   site,
		Offset: offset,
		Limit:  limit,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{
		envelope: envelope{Result: true},
		Count:    resp.Count,
		Data:     resp.Results,
	})
}

func intParam(raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", raw, err)
	}
	return v, nil
}

// statusFor maps the error taxonomy to HTTP statuses.
func statusFor(err error) int {
	switch {
	case engine.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrCampaignRunning), errors.Is(err, engine.ErrNotRunning):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID(r.Context())),
			zap.Error(err),
		)
	}
	writeJSON(w, status, envelope{Result: false, Error: err.Error()})
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.String("request_id", requestID(r.Context())),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("panic", rec), zap.String("path", r.URL.Path))
					writeJSON(w, http.StatusInternalServerError, envelope{Result: false, Error: "internal server error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, `{"result":false,"error":"request timed out"}`)
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}
