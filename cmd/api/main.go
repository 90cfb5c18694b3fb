// Package main provides the entrypoint for the TrafficLens API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/trafficlens/trafficlens/internal/api"
	"github.com/trafficlens/trafficlens/internal/api/handler"
	"github.com/trafficlens/trafficlens/internal/api/middleware"
	"github.com/trafficlens/trafficlens/internal/area"
	"github.com/trafficlens/trafficlens/internal/auth"
	"github.com/trafficlens/trafficlens/internal/collector"
	"github.com/trafficlens/trafficlens/internal/database"
	"github.com/trafficlens/trafficlens/internal/provider/resilience"
	"github.com/trafficlens/trafficlens/internal/snapshot"
	"github.com/trafficlens/trafficlens/internal/telemetry"
	"github.com/trafficlens/trafficlens/internal/traffic/googlemaps"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "trafficlens-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting TrafficLens API")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Open the area store. Postgres is the default; sqlite serves
	// single-host deployments without a database server.
	storeDriver := os.Getenv("STORE_DRIVER")
	if storeDriver == "" {
		storeDriver = "postgres"
	}

	var (
		areaRepo  area.Repository
		snapRepo  snapshot.Repository
		storePing func(ctx context.Context) error
	)

	switch storeDriver {
	case "postgres":
		dbConfig := database.ConfigFromEnv()
		pool, err := database.Connect(ctx, dbConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		log.Info().
			Str("host", dbConfig.Host).
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Database).
			Msg("database connected")

		areaRepo = area.NewPostgresRepository(pool)
		snapRepo = snapshot.NewPostgresRepository(pool)
		storePing = pool.Ping
	case "sqlite":
		path := os.Getenv("SQLITE_PATH")
		if path == "" {
			path = "trafficlens.db"
		}
		db, err := database.OpenSQLite(path)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open sqlite store")
		}
		defer db.Close()
		log.Info().Str("path", path).Msg("sqlite store opened")

		areaRepo = area.NewSQLiteRepository(db)
		snapRepo = snapshot.NewSQLiteRepository(db)
		storePing = db.PingContext
	default:
		log.Fatal().Str("driver", storeDriver).Msg("unknown STORE_DRIVER, expected postgres or sqlite")
	}

	// Initialize area service
	areaService := area.NewService(areaRepo, snapRepo)
	log.Info().Msg("area service initialized")

	// Initialize the traffic provider. Registry state feeds the ops
	// status endpoint.
	providers := resilience.NewRegistry()

	mapsAPIKey := os.Getenv("GOOGLE_MAPS_API_KEY")
	if mapsAPIKey == "" {
		log.Warn().Msg("GOOGLE_MAPS_API_KEY not set - training runs will fail on the first sample")
	}

	estimator := googlemaps.NewClient(googlemaps.ClientConfig{
		APIKey:   mapsAPIKey,
		Registry: providers,
		Logger:   log,
	})
	log.Info().Str("provider", estimator.Name()).Msg("traffic estimator initialized")

	// Initialize snapshot sampler
	samplerMetrics, err := snapshot.NewSamplerMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize sampler metrics")
		os.Exit(1)
	}

	sampler := snapshot.NewSampler(snapshot.SamplerConfig{
		Estimator: estimator,
		Logger:    log,
		Metrics:   samplerMetrics,
	})

	// Initialize collection scheduler
	collectorMetrics, err := collector.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize collector metrics")
		os.Exit(1)
	}

	scheduler := collector.NewScheduler(collector.SchedulerConfig{
		Areas:     areaRepo,
		Snapshots: snapRepo,
		Sampler:   sampler,
		Logger:    log,
		Metrics:   collectorMetrics,
	})
	log.Info().Msg("collection scheduler initialized")

	// Initialize JWT service (get signing key from environment)
	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		jwtSigningKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}

	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: jwtSigningKey,
		Issuer:     "https://api.trafficlens.io",
		Audience:   "trafficlens-api",
	})

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		AreaService: areaService,
		Scheduler:   scheduler,
		JWTService:  jwtService,
		Providers:   providers,
		ReadyChecks: []handler.Check{
			{Name: "store", Probe: storePing},
		},
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	// Wind down any in-flight training run. Pausing keeps the area in
	// training status so the next boot resumes where it left off.
	if status, ok := scheduler.Active(); ok {
		if err := scheduler.Pause(status.AreaID); err != nil && !errors.Is(err, collector.ErrNoActiveRun) {
			log.Error().Err(err).Str("area_id", status.AreaID).Msg("failed to pause active run")
		} else {
			log.Info().Str("area_id", status.AreaID).Msg("training run paused for shutdown")
		}
	}

	log.Info().Msg("server stopped")
}
