// Package web provides the HTTP JSON API for templates and configs.
package web

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/sldstore/internal/config"
	"github.com/JonMunkholm/sldstore/internal/core"
	"github.com/JonMunkholm/sldstore/internal/logging"
	mw "github.com/JonMunkholm/sldstore/internal/web/middleware"
)

// Pinger reports database reachability. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP server for the template store.
type Server struct {
	service *core.Service
	db      Pinger
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a new Server instance.
func NewServer(service *core.Service, db Pinger, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		db:      db,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)

	// Security hardening
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(&s.cfg.Security))

		// Ingest carries its own timeout from the service.
		r.Post("/templates", s.handleIngestTemplate)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

			r.Get("/templates", s.handleListTemplates)
			r.Get("/templates/{id}", s.handleGetTemplate)
			r.Get("/templates/{id}/feature-types", s.handleGetFeatureTypes)
			r.Get("/templates/{id}/tree", s.handleGetTemplateTree)
			r.Post("/templates/{id}/configs", s.handleCreateConfig)

			r.Get("/configs/{id}/values", s.handleGetConfigValues)
			r.Put("/configs/{id}/values", s.handleReplaceConfigValues)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
		BaseContext: func(net.Listener) context.Context {
			return logging.NewContext(context.Background(), slog.Default())
		},
	}

	slog.Info("starting server", "addr", s.server.Addr)
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

type healthResponse struct {
	Status   string                   `json:"status"`
	Database string                   `json:"database"`
	Ingests  core.IngestLimiterStatus `json:"ingests"`
}

// handleHealth pings the database and reports ingest slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Database: "ok", Ingests: s.service.IngestStatus()}
	status := http.StatusOK
	if err := s.db.Ping(ctx); err != nil {
		slog.Warn("health: database ping failed", "error", err)
		resp.Status = "degraded"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		// JSON only; nothing may be loaded from responses
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		w.Header().Set("Referrer-Policy", "no-referrer")

		next.ServeHTTP(w, r)
	})
}
