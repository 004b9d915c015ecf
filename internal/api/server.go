package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/seantiz/qdevice/internal/backend"
	"github.com/seantiz/qdevice/internal/engine"
	"github.com/seantiz/qdevice/internal/store"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 30 * time.Second
	maxBodySize       = 1 << 20 // 1 MB
)

// Server exposes the engine over HTTP. Sessions and jobs are addressed by
// handle; the handle table is the only state the server keeps.
type Server struct {
	router   *chi.Mux
	store    store.Store
	registry *backend.Registry
	engine   *engine.Engine
	handles  *handleTable
	logger   *slog.Logger
	addr     string
}

// NewServer creates and configures a new HTTP server. s may be nil, in which
// case the history endpoints report unavailable.
func NewServer(addr string, s store.Store, reg *backend.Registry, eng *engine.Engine, logger *slog.Logger) *Server {
	srv := &Server{
		router:   chi.NewRouter(),
		store:    s,
		registry: reg,
		engine:   eng,
		handles:  newHandleTable(),
		logger:   logger,
		addr:     addr,
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(srv.loggingMiddleware)
	srv.router.Use(metricsMiddleware)
	srv.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	srv.routes()

	return srv
}

// routes registers all HTTP routes on the router.
func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", metricsHandler())

	s.router.Get("/v1/device", s.handleGetDevice)
	s.router.Get("/v1/backends", s.handleListBackends)
	s.router.Get("/v1/stats", s.handleGetStats)
	s.router.Get("/v1/history", s.handleListHistory)

	s.router.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", s.handleAllocSession)
		r.Route("/{sid}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Put("/params/{name}", s.handleSetSessionParam)
			r.Post("/init", s.handleInitSession)
			r.Delete("/", s.handleFreeSession)
			r.Get("/device/{prop}", s.handleQueryDeviceProperty)
			r.Get("/sites/{site}/{prop}", s.handleQuerySiteProperty)
			r.Post("/jobs", s.handleCreateJob)
		})
	})

	s.router.Route("/v1/jobs/{id}", func(r chi.Router) {
		r.Get("/", s.handleGetJob)
		r.Put("/params/{name}", s.handleSetJobParam)
		r.Get("/properties/{prop}", s.handleQueryJobProperty)
		r.Post("/submit", s.handleSubmitJob)
		r.Post("/cancel", s.handleCancelJob)
		r.Get("/wait", s.handleWaitJob)
		r.Get("/results", s.handleGetResults)
		r.Get("/events", s.handleStreamEvents)
		r.Delete("/", s.handleFreeJob)
	})
}

// Router returns the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run serves HTTP until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down", "reason", context.Cause(ctx))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// loggingMiddleware logs each request using the structured logger.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeEngineError maps an engine error to its HTTP status and writes it
// together with the engine status code.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	code := engine.Code(err)
	httpEngineErrors.WithLabelValues(code.String()).Inc()
	status := http.StatusInternalServerError
	switch code {
	case engine.StatusInvalidArgument:
		status = http.StatusBadRequest
	case engine.StatusBadState:
		status = http.StatusConflict
	case engine.StatusNotSupported:
		status = http.StatusNotImplemented
	case engine.StatusTimeout:
		status = http.StatusRequestTimeout
	case engine.StatusFatal:
		status = http.StatusServiceUnavailable
		s.logger.Error("engine failure", "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error(), "code": code.String()})
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

var errUnknownHandle = errors.New("unknown handle")
