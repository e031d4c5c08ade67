// Package web provides the HTTP surface of the ingestion service: a JSON
// endpoint that runs a batch, a health probe and the metrics endpoint.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/gtingest/internal/ingest"
	"github.com/JonMunkholm/gtingest/internal/web/middleware"
)

// BatchRunner runs one ingestion batch. *ingest.Pipeline implements it.
type BatchRunner interface {
	RunBatch(ctx context.Context, src ingest.Source, keys []string) (ingest.BatchResult, error)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Options configures a Server.
type Options struct {
	Pipeline BatchRunner
	Source   ingest.Source

	// Metrics is mounted on /metrics when set.
	Metrics http.Handler

	// Checks are run by /healthz, keyed by dependency name.
	Checks map[string]HealthCheck

	BatchTimeout   time.Duration
	RequestTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	TrustedProxies []string
}

// Server is the HTTP server for the ingestion service.
type Server struct {
	opts   Options
	router *chi.Mux
	server *http.Server

	// running serializes batches; a second request gets 409.
	running sync.Mutex
}

// NewServer creates a new Server instance.
func NewServer(opts Options) *Server {
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = 15 * time.Minute
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}

	s := &Server{
		opts:   opts,
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.opts.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Batches carry their own deadline.
	s.router.Post("/api/ingest", s.handleIngest)

	s.router.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(s.opts.RequestTimeout))

		r.Get("/healthz", s.handleHealth)
		r.Get("/api/sources", s.handleListSources)

		if s.opts.Metrics != nil {
			r.Method(http.MethodGet, "/metrics", s.opts.Metrics)
		}
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
