// Package dashboard contains the HTTP service over the submission
// registry.
package dashboard

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"specplane/internal/dashboard/handlers"
	"specplane/internal/dashboard/middleware"
)

// Config holds dashboard server settings.
type Config struct {
	Addr string

	// APIRate throttles /api requests per client address. Zero
	// disables throttling.
	APIRate  float64
	APIBurst int

	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler

	// Log receives handler errors. Nil falls back to slog.Default.
	Log *slog.Logger
}

// Server is the HTTP server for the dashboard API.
type Server struct {
	httpServer *http.Server
}

// New creates a new dashboard server.
func New(cfg Config, registry handlers.Registry) *Server {
	h := handlers.New(registry, cfg.Log)
	throttle := middleware.RateLimit(cfg.APIRate, cfg.APIBurst)

	mux := http.NewServeMux()

	mux.Handle("GET /api/feed", throttle(http.HandlerFunc(h.Feed)))
	mux.Handle("GET /api/submissions/{id}", throttle(http.HandlerFunc(h.GetSubmission)))
	mux.Handle("GET /api/nights", throttle(http.HandlerFunc(h.Nights)))

	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Run starts the HTTP server. It blocks until the context is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutDownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return s.Shutdown(shutDownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
