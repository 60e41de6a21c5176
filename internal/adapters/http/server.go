// Package http provides the HTTP server and handlers.
package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/jobrunner/meridian/internal/application"
	"github.com/jobrunner/meridian/internal/config"
	"github.com/jobrunner/meridian/internal/ports/input"
)

// Syncer triggers a manual sync of remote storage.
type Syncer interface {
	TriggerSync(ctx context.Context) (application.SyncResult, error)
}

// MetricsExporter instruments the router and exposes the scrape endpoint.
type MetricsExporter interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

// Services bundles the primary ports the server dispatches to. Emulator,
// Sync and Metrics are optional.
type Services struct {
	Geodesy  input.GeodesyService
	Query    input.ShapeQueryService
	Layers   input.LayerRegistry
	Health   input.HealthChecker
	Emulator input.Emulator
	Sync     Syncer
	Metrics  MetricsExporter
}

// Server wraps the HTTP server with application handlers.
type Server struct {
	server      *http.Server
	router      *mux.Router
	svc         Services
	logger      *slog.Logger
	config      config.ServerConfig
	metricsPath string
	limiter     *rate.Limiter
	origins     *originPolicy
	upgrader    websocket.Upgrader
	defaultUnit string
}

// Option customizes a Server.
type Option func(*Server)

// WithMetricsPath mounts the metrics exporter's handler at path. An empty
// path leaves the endpoint unmounted.
func WithMetricsPath(path string) Option {
	return func(s *Server) { s.metricsPath = path }
}

// WithDefaultUnit sets the distance unit used when a request names none.
func WithDefaultUnit(unit string) Option {
	return func(s *Server) { s.defaultUnit = unit }
}

// NewServer creates a new HTTP server.
func NewServer(cfg config.ServerConfig, svc Services, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		svc:         svc,
		logger:      logger,
		config:      cfg,
		metricsPath: "/metrics",
		defaultUnit: "m",
		origins:     newOriginPolicy(cfg.CORS.AllowedOrigins),
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.RateLimit.Enabled {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.Rate), cfg.RateLimit.Burst)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkWebSocketOrigin,
	}

	s.router = s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Address(),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()

	// Add middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	if s.svc.Metrics != nil {
		r.Use(s.svc.Metrics.Middleware)
	}
	if s.limiter != nil {
		r.Use(s.rateLimitMiddleware)
	}

	if s.origins != nil {
		r.Use(s.corsMiddleware)
	}

	// Health endpoints
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/health/live", s.handleLiveness).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", s.handleReadiness).Methods(http.MethodGet)

	// API v1
	api := r.PathPrefix("/api/v1").Subrouter()

	// Geodesy endpoints
	api.HandleFunc("/inverse", s.handleInverse).Methods(http.MethodGet)
	api.HandleFunc("/direct", s.handleDirect).Methods(http.MethodGet)
	api.HandleFunc("/intersection", s.handleIntersection).Methods(http.MethodGet)
	api.HandleFunc("/matrix", s.handleMatrix).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/area", s.handleArea).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/ellipsoids", s.handleEllipsoids).Methods(http.MethodGet)

	// Layer and query endpoints
	api.HandleFunc("/query", s.handleQuery).Methods(http.MethodGet)
	api.HandleFunc("/layers", s.handleListLayers).Methods(http.MethodGet)
	api.HandleFunc("/layers/{layerId}", s.handleGetLayer).Methods(http.MethodGet)
	api.HandleFunc("/layers/{layerId}/query", s.handleQueryRange).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/layers/{layerId}/features/{featureId:[0-9]+}", s.handleGetFeature).Methods(http.MethodGet)

	// Sync endpoint (only if sync service is configured)
	if s.svc.Sync != nil {
		api.HandleFunc("/sync", s.handleSync).Methods(http.MethodPost, http.MethodOptions)
	}

	// NMEA emulator (only if enabled)
	if s.svc.Emulator != nil {
		api.HandleFunc("/emulator", s.handleEmulatorState).Methods(http.MethodGet)
		api.HandleFunc("/emulator/stream", s.handleEmulatorStream).Methods(http.MethodGet)
	}

	// OpenAPI spec
	r.HandleFunc("/openapi.json", s.handleOpenAPI).Methods(http.MethodGet)
	r.HandleFunc("/openapi.yaml", s.handleOpenAPIYAML).Methods(http.MethodGet)

	if s.svc.Metrics != nil && s.metricsPath != "" {
		r.Handle(s.metricsPath, s.svc.Metrics.Handler()).Methods(http.MethodGet)
	}

	return r
}

// Router returns the mux router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "address", s.config.Address())
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
