package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/senechal-app/senechal/internal/config"
	"github.com/senechal-app/senechal/internal/handler"
	"github.com/senechal-app/senechal/internal/health"
	"github.com/senechal-app/senechal/internal/openapi"
	"github.com/senechal-app/senechal/internal/roles"
	"github.com/senechal-app/senechal/internal/server/middleware"
	"github.com/senechal-app/senechal/internal/service"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	Version         string

	APIKeyHeader      string
	OwnerPasswordHash string
	SessionTTL        time.Duration
	RolesPath         string
	DataDir           string

	RequestsPerMinute      int
	OwnerRequestsPerMinute int
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:                   "0.0.0.0",
		Port:                   8080,
		ShutdownTimeout:        30 * time.Second,
		CORSOrigins:            []string{"*"},
		APIKeyHeader:           "X-API-Key",
		SessionTTL:             12 * time.Hour,
		RequestsPerMinute:      120,
		OwnerRequestsPerMinute: 20,
	}
}

// Server is the top-level HTTP server for Senechal. It owns the Chi router,
// the credential store, the role registry, and the authorization services,
// and runs the background credential purge for the life of the process.
type Server struct {
	cfg        Config
	router     chi.Router
	store      *config.Store
	authSvc    *service.AuthService
	lifecycle  *service.LifecycleService
	registry   *roles.Registry
	healthSrc  *health.Source
	purger     *service.Purger
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. healthSrc and purger may be nil, in which case the
// health routes and background purge are disabled.
func New(cfg Config, store *config.Store, authSvc *service.AuthService, lifecycle *service.LifecycleService, registry *roles.Registry, healthSrc *health.Source, purger *service.Purger, logger *slog.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		store:     store,
		authSvc:   authSvc,
		lifecycle: lifecycle,
		registry:  registry,
		healthSrc: healthSrc,
		purger:    purger,
		logger:    logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", s.cfg.APIKeyHeader},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Compress(5))

	// --- Health checks and API docs (no auth required) ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Get("/openapi.json", s.handleOpenAPI)

	// --- Owner lifecycle surface ---
	adminHandler := handler.NewAdminHandler(
		s.authSvc, s.lifecycle, s.registry,
		s.cfg.OwnerPasswordHash, s.cfg.SessionTTL, s.cfg.RolesPath,
		s.logger,
	)
	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.OwnerRateLimit(s.cfg.OwnerRequestsPerMinute))

		r.Post("/session", adminHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireOwner(s.authSvc))

			r.Get("/credential", adminHandler.ListCredentials)
			r.Post("/credential", adminHandler.CreateCredential)
			r.Get("/credential/{keyID}", adminHandler.GetCredential)
			r.Delete("/credential/{keyID}", adminHandler.RevokeCredential)

			r.Get("/role", adminHandler.ListRoles)
			r.Post("/role/reload", adminHandler.ReloadRoles)
		})
	})

	// --- Protected data surface ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(s.cfg.APIKeyHeader, s.cfg.RequestsPerMinute))
		r.Use(middleware.Authorize(s.authSvc, s.registry, s.cfg.APIKeyHeader, s.logger))

		dataHandler := handler.NewDataHandler(s.cfg.DataDir)
		r.Get("/getTest", dataHandler.GetTest)
		r.Post("/setTest", dataHandler.SetTest)

		if s.healthSrc != nil {
			healthHandler := handler.NewHealthHandler(s.healthSrc)
			r.Get("/health/current", healthHandler.Current)
			r.Get("/health/trends", healthHandler.Trends)
		}
	})

	s.router = r
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. Returns 200 when the credential store
// (and health database, if configured) is reachable, or 503 otherwise.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if err := s.store.Ping(r.Context()); err != nil {
		checks["credential_store"] = "error: " + err.Error()
		status = "degraded"
	} else {
		checks["credential_store"] = "ok"
	}

	if s.healthSrc != nil {
		if err := s.healthSrc.Ping(r.Context()); err != nil {
			checks["health_db"] = "error: " + err.Error()
			status = "degraded"
		} else {
			checks["health_db"] = "ok"
		}
	}

	if status != "ok" {
		httpStatus = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

// handleOpenAPI serves the OpenAPI document for the gateway surface.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	baseURL := fmt.Sprintf("http://%s:%d", s.cfg.Host, s.cfg.Port)
	doc := openapi.GenerateSpec(baseURL, s.cfg.Version)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. The background credential purge runs for the same lifetime.
// On shutdown, in-flight requests are drained before the store closes.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Listen for shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if s.purger != nil {
		go s.purger.Run(ctx)
	}

	// Start server in background goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
