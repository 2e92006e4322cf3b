// Package web provides the HTTP API for farm records.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/form"
	"github.com/rs/cors"

	"github.com/JonMunkholm/agrorecords/internal/auth"
	"github.com/JonMunkholm/agrorecords/internal/config"
	"github.com/JonMunkholm/agrorecords/internal/core"
	"github.com/JonMunkholm/agrorecords/internal/metrics"
	"github.com/JonMunkholm/agrorecords/internal/web/middleware"
)

// Version is reported by the welcome endpoint.
var Version = "dev"

// Server is the HTTP server for the records API.
type Server struct {
	service *core.Service
	auth    auth.Authenticator
	metrics *metrics.Metrics
	cfg     *config.Config
	decoder *form.Decoder
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a new Server instance. m may be nil, in which case no
// metrics are collected or exposed.
func NewServer(service *core.Service, a auth.Authenticator, m *metrics.Metrics, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		auth:    a,
		metrics: m,
		cfg:     cfg,
		decoder: form.NewDecoder(),
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
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
	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware)
	}

	// Security hardening
	s.router.Use(s.securityHeaders)
	s.router.Use(cors.New(cors.Options{
		AllowedOrigins:   s.cfg.Security.AllowedOrigins(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{sortFallbackHeader, "X-Request-Id", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	if s.cfg.Rate.Enabled {
		s.router.Use(middleware.RateLimit(s.cfg.Rate.RequestsPerMinute, s.respondError))
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleWelcome)
	s.router.Get("/health", s.handleHealth)
	if s.metrics != nil && s.cfg.Metrics.Enabled {
		s.router.Method(http.MethodGet, s.cfg.Metrics.Path, s.metrics.Handler())
	}

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, r, errRouteNotFound)
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, r, errMethodNotAllowed)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.Authenticate(s.auth, s.respondError))

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))

			// Records
			r.Get("/farmers", s.handleListRecords)
			r.Post("/farmers", s.handleCreateRecord)
			r.Get("/farmers/template", s.handleDownloadTemplate)
			r.Get("/farmers/export", s.handleExportRecords)
			r.Delete("/farmers/delete-all-csv", s.handleDeleteOwnedRecords)
			r.Get("/farmers/{id}", s.handleGetRecord)
			r.Put("/farmers/{id}", s.handleUpdateRecord)
			r.Patch("/farmers/{id}", s.handleUpdateRecord)
			r.Delete("/farmers/{id}", s.handleDeleteRecord)

			// Dashboard
			r.Get("/dashboard/stats", s.handleStats)
			r.Get("/dashboard/top-crops", s.handleTopCrops)
			r.Get("/dashboard/village-stats", s.handleVillageStats)

			// Audit log
			r.Get("/audit-log", s.handleAuditLog)

			// Ingestion limiter
			r.Get("/uploads/status", s.handleUploadStatus)
		})

		// Uploads get their own deadline and a stricter rate limit.
		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(s.cfg.Upload.Timeout))
			if s.cfg.Rate.Enabled {
				r.Use(middleware.RateLimit(s.cfg.Rate.UploadLimit, s.respondError))
			}
			r.Post("/farmers/upload-csv", s.handleUpload)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting connections, waits for in-flight requests, then
// waits for any CSV batch still committing.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	return s.service.WaitForIngests(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		// The API serves no documents, so nothing may be loaded
		if s.cfg.Security.EnableCSP {
			w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		}

		// Control referrer information
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWelcome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"message": "Agricultural Records API",
		"version": Version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "healthy"})
}

// writeJSON encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed",
			"path", r.URL.Path,
			"error", err,
			"request_id", chimw.GetReqID(r.Context()),
		)
	}
}

