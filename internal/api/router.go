// Package api provides the HTTP control plane for TrafficLens.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/trafficlens/trafficlens/internal/api/handler"
	"github.com/trafficlens/trafficlens/internal/api/middleware"
	"github.com/trafficlens/trafficlens/internal/area"
	"github.com/trafficlens/trafficlens/internal/auth"
	"github.com/trafficlens/trafficlens/internal/collector"
	"github.com/trafficlens/trafficlens/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	AreaService *area.Service
	Scheduler   *collector.Scheduler
	JWTService  *auth.JWTService

	// Providers feeds the ops status endpoint; nil when the process has
	// no outbound providers.
	Providers *resilience.Registry

	// ReadyChecks are the dependency probes behind /readyz.
	ReadyChecks []handler.Check
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "trafficlens-api"
	}

	// Global middleware - order matters
	r.Use(chimiddleware.RealIP)            // Real IP extraction first, rate limits key on it
	r.Use(middleware.RequestID)            // Generate/propagate request ID
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Providers, cfg.ReadyChecks...)
	areaHandler := handler.NewAreaHandler(cfg.AreaService)
	trainingHandler := handler.NewTrainingHandler(cfg.Scheduler, cfg.Logger)

	// Create auth middleware
	authMiddleware := middleware.Auth(cfg.JWTService)

	// Create rate limit middleware. Reads are IP-keyed at 100 req/min;
	// writes are operator-keyed at 30 req/min once auth has run.
	readRateLimit := middleware.RateLimitByIP(middleware.ReadRateLimit)
	writeRateLimit := middleware.RateLimitByOperator(middleware.WriteRateLimit)

	// Ops probes (public, unlimited so orchestrators can poll freely)
	r.Get("/livez", opsHandler.HealthCheck)
	r.Get("/readyz", opsHandler.ReadinessCheck)

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Areas
		r.Route("/areas", func(r chi.Router) {
			r.With(readRateLimit).Get("/", areaHandler.ListAreas)
			r.With(authMiddleware, writeRateLimit, middleware.RequireJSON).Post("/", areaHandler.CreateArea)

			r.Route("/{areaID}", func(r chi.Router) {
				r.With(readRateLimit).Get("/", areaHandler.GetArea)
				r.With(readRateLimit).Get("/stats", areaHandler.GetAreaStats)
				r.With(readRateLimit).Get("/snapshots", areaHandler.ListSnapshots)
				r.With(readRateLimit).Get("/snapshots/{seq}", areaHandler.GetSnapshot)

				// Training run control (authenticated)
				r.Route("/training", func(r chi.Router) {
					r.Use(authMiddleware)
					r.Use(writeRateLimit)
					r.Post("/start", trainingHandler.StartTraining)
					r.Post("/pause", trainingHandler.PauseTraining)
					r.Post("/cancel", trainingHandler.CancelTraining)
				})
			})
		})

		// Active run status (public)
		r.With(readRateLimit).Get("/training", trainingHandler.GetTraining)

		// Ops status endpoint requires authentication
		r.Route("/ops", func(r chi.Router) {
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
		})
	})

	return r
}
