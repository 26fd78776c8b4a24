// Package web provides the HTTP API for importing and exporting tabular data.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/tabx/internal/config"
	"github.com/JonMunkholm/tabx/internal/core"
	"github.com/JonMunkholm/tabx/internal/web/middleware"
)

// Server is the HTTP server for the import/export API.
type Server struct {
	cfg        *config.Config
	jobs       *JobStore
	exportOpts core.ExportOptions
	importOpts core.ImportOptions
	router     *chi.Mux
	server     *http.Server
}

// NewServer creates a Server using the configured defaults and job store.
func NewServer(cfg *config.Config, jobs *JobStore) *Server {
	s := &Server{
		cfg:        cfg,
		jobs:       jobs,
		exportOpts: cfg.Export.ExportOptions(),
		importOpts: cfg.Import.ImportOptions(),
		router:     chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout, // 0 keeps SSE streams open
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(&s.cfg.Security))

		r.Get("/formats", s.handleFormats)

		// Synchronous conversions
		r.Post("/import/{format}", s.handleImport)
		r.Post("/export/{format}", s.handleExport)

		// Background exports
		r.Post("/jobs/export/{format}", s.handleStartExportJob)
		r.Get("/jobs/{jobID}", s.handleJobStatus)
		r.Get("/jobs/{jobID}/progress", s.handleJobProgress)
		r.Post("/jobs/{jobID}/cancel", s.handleCancelJob)
		r.Get("/jobs/{jobID}/result", s.handleJobResult)
	})
}

// Start listens until Shutdown is called, then returns http.ErrServerClosed.
// A Shutdown that happens first makes Start return at once.
func (s *Server) Start() error {
	slog.Info("server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting connections and waits for active requests.
func (s *Server) Shutdown(ctx context.Context) error {
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
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
