// Package web serves the catalog import API: multipart uploads, progress
// streams over Server-Sent Events and the catalog maintenance endpoints.
// Every response body is JSON except the progress stream.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/catalog/internal/config"
	"github.com/JonMunkholm/catalog/internal/core"
	"github.com/JonMunkholm/catalog/internal/taxonomy"
	mw "github.com/JonMunkholm/catalog/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Server is the HTTP server of the catalog API.
type Server struct {
	service *core.Service
	cfg     *config.Config
	health  HealthCheck
	router  *chi.Mux
	server  *http.Server

	limiters []*mw.RateLimiter
}

// NewServer builds the router. health may be nil; /healthz then only
// reports that the process is up.
func NewServer(service *core.Service, cfg *config.Config, health HealthCheck) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		health:  health,
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
	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		s.router.Use(s.rateLimit(s.cfg.Rate.RequestsPerMinute))
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Progress streams stay open for the whole run, so they are the
		// only route without a request timeout or compression.
		r.Get("/import/{runID}/progress", s.handleImportProgress)

		r.Group(func(r chi.Router) {
			if t := s.cfg.Server.RequestTimeout; t > 0 {
				r.Use(middleware.Timeout(t))
			}
			r.Use(middleware.Compress(5))

			// Runs
			r.Get("/imports", s.handleListImports)
			r.Get("/import/{runID}", s.handleImportStatus)
			r.Get("/import/{runID}/result", s.handleImportResult)

			// Catalog queries
			r.Get("/counts", s.handleCounts)
			r.Get("/sectors", s.handleListSectors)
			r.Post("/duplicates", s.handleDuplicates)

			// Mutations
			r.Group(func(r chi.Router) {
				r.Use(mw.APIKeyAuth(s.cfg.Security))

				r.With(s.importRateLimit()).Post("/import", s.handleImport)
				r.Post("/import/{runID}/cancel", s.handleCancelImport)

				r.Post("/reset", s.handleReset)
				r.Post("/categories/{categoryID}/relocate", s.handleRelocateCategory)

				r.Delete("/sectors/{id}", s.handleDelete(taxonomy.LevelSector))
				r.Delete("/categories/{id}", s.handleDelete(taxonomy.LevelCategory))
				r.Delete("/subcategories/{id}", s.handleDelete(taxonomy.LevelSubcategory))
				r.Delete("/jobs/{id}", s.handleDelete(taxonomy.LevelJob))
			})
		})
	})
}

// rateLimit returns a per-IP limiter middleware allowing perMinute requests.
func (s *Server) rateLimit(perMinute int) func(http.Handler) http.Handler {
	rl := mw.NewRateLimiter(perMinute, time.Minute)
	s.limiters = append(s.limiters, rl)
	return rl.Handler
}

func (s *Server) importRateLimit() func(http.Handler) http.Handler {
	if !s.cfg.Rate.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return s.rateLimit(s.cfg.Rate.ImportsPerMinute)
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	sc := s.cfg.Server
	s.server = &http.Server{
		Addr:         sc.Addr(),
		Handler:      s.router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
		IdleTimeout:  sc.IdleTimeout,
	}

	slog.Info("starting server", "addr", sc.Addr())
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones. Import
// runs are not touched; drain them with core.Service.WaitForImports.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, rl := range s.limiters {
		rl.Stop()
	}
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
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v with the given status.
// Encoding errors are only logged since the header is already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error",
			"path", r.URL.Path,
			"error", err,
			"request_id", middleware.GetReqID(r.Context()),
		)
	}
}
