// Package server exposes the search engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	rerrors "github.com/Aman-CERP/rolodex/internal/errors"
	"github.com/Aman-CERP/rolodex/internal/index"
	"github.com/Aman-CERP/rolodex/internal/metrics"
	"github.com/Aman-CERP/rolodex/internal/search"
	"github.com/Aman-CERP/rolodex/pkg/version"
)

// DefaultMaxBodyBytes bounds a contacts upload.
const DefaultMaxBodyBytes int64 = 8 << 20

// Config configures the HTTP server.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
}

// DefaultConfig returns the default server settings.
func DefaultConfig() Config {
	return Config{
		Addr:            "127.0.0.1:8080",
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		MaxBodyBytes:    DefaultMaxBodyBytes,
	}
}

// Server serves the HTTP API.
type Server struct {
	engine  *search.Engine
	metrics *metrics.Metrics
	logger  *slog.Logger
	cfg     Config
}

// New creates a server. m may be nil, in which case /metrics is not served.
func New(engine *search.Engine, m *metrics.Metrics, cfg Config, logger *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, errors.New("server: nil engine")
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = d.Addr
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = d.MaxBodyBytes
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = d.ShutdownTimeout
	}
	return &Server{engine: engine, metrics: m, logger: logger, cfg: cfg}, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(requestLogger(s.logger))
	if s.metrics != nil {
		r.Use(s.metrics.Middleware())
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Get("/healthz", s.health)
	r.Get("/v1/cache/stats", s.cacheStats)
	r.Route("/v1/users/{user}", func(r chi.Router) {
		r.Put("/contacts", s.upsertContacts)
		r.Delete("/contacts/{id}", s.deleteContact)
		r.Get("/search", s.search)
	})
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http_server_starting", slog.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("http_server_stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

type versionResponse struct {
	Version uint64 `json:"version"`
}

type searchResponse struct {
	*search.Response
	Explanations []search.Explanation `json:"explanations"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": version.Version,
		"users":   len(s.engine.Registry().Users()),
	})
}

func (s *Server) cacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.CacheStats())
}

func (s *Server) upsertContacts(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)

	contacts, err := index.DecodeContacts(body)
	if err != nil {
		s.handleError(w, err)
		return
	}

	v, err := s.engine.UpsertContacts(r.Context(), user, contacts)
	if err != nil {
		s.handleError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.ObserveIndex("upsert", len(contacts))
	}
	writeJSON(w, http.StatusOK, versionResponse{Version: v})
}

func (s *Server) deleteContact(w http.ResponseWriter, r *http.Request) {
	v, err := s.engine.DeleteContact(r.Context(), chi.URLParam(r, "user"), chi.URLParam(r, "id"))
	if err != nil {
		s.handleError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.ObserveIndex("delete", 1)
	}
	writeJSON(w, http.StatusOK, versionResponse{Version: v})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	k := 0
	if raw := q.Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.handleError(w, rerrors.InputError("k must be a non-negative integer", err))
			return
		}
		k = n
	}

	resp, err := s.engine.Search(r.Context(), chi.URLParam(r, "user"), q.Get("q"), k)
	if err != nil {
		s.handleError(w, err)
		return
	}

	out := searchResponse{Response: resp, Explanations: make([]search.Explanation, len(resp.Results))}
	for i, res := range resp.Results {
		out.Explanations[i] = search.Explain(res)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleError maps an error to a status code. RolodexError messages are
// safe for clients; anything else is reported as internal.
func (s *Server) handleError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
			Code:    rerrors.ErrCodeInvalidInput,
			Message: "request body too large",
		})
		return
	}

	var re *rerrors.RolodexError
	if !errors.As(err, &re) {
		s.logger.Error("internal_error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Code:    rerrors.ErrCodeInternal,
			Message: "internal error",
		})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case re.Code == rerrors.ErrCodeEngineUnavailable:
		status = http.StatusNotFound
	case rerrors.GetCategory(err) == rerrors.CategoryInput:
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request_failed", slog.String("code", re.Code), slog.String("error", err.Error()))
	} else {
		s.logger.Debug("request_rejected", slog.String("code", re.Code), slog.String("error", err.Error()))
	}
	writeJSON(w, status, errorResponse{Code: re.Code, Message: re.Message, Hint: re.Suggestion})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// jsonRecoverer returns JSON instead of a plain text stacktrace on panic.
func jsonRecoverer(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}
					logger.Error("panic_recovered", slog.Any("panic", rvr))
					writeJSON(w, http.StatusInternalServerError, errorResponse{
						Code:    rerrors.ErrCodeInternal,
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger emits one log line per request and propagates X-Request-ID.
func requestLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("http_request",
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("latency", time.Since(start)),
				slog.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
