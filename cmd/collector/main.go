// Package main provides the entrypoint for the TrafficLens collector
// daemon. The daemon resumes interrupted training runs at boot and takes
// further commands from a Pub/Sub subscription.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/trafficlens/trafficlens/internal/area"
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
	const serviceName = "trafficlens-collector"

	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to the collector config file")
	flag.Parse()

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting TrafficLens collector")

	cfg, err := collector.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *configPath != "" {
		log.Info().Str("path", *configPath).Msg("configuration loaded")
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
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	// Open the area store
	var (
		areaRepo  area.Repository
		snapRepo  snapshot.Repository
		storePing func(ctx context.Context) error
	)

	switch cfg.Store {
	case collector.StorePostgres:
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
	case collector.StoreSQLite:
		db, err := database.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open sqlite store")
		}
		defer db.Close()
		log.Info().Str("path", cfg.SQLitePath).Msg("sqlite store opened")

		areaRepo = area.NewSQLiteRepository(db)
		snapRepo = snapshot.NewSQLiteRepository(db)
		storePing = db.PingContext
	}

	// Initialize the traffic provider
	providers := resilience.NewRegistry()

	if cfg.GoogleMapsAPIKey == "" {
		log.Warn().Msg("GOOGLE_MAPS_API_KEY not set - training runs will fail on the first sample")
	}

	estimator := googlemaps.NewClient(googlemaps.ClientConfig{
		APIKey:   cfg.GoogleMapsAPIKey,
		Timeout:  cfg.RouteTimeout(),
		Registry: providers,
		Logger:   log,
	})
	log.Info().Str("provider", estimator.Name()).Msg("traffic estimator initialized")

	// Initialize snapshot sampler
	samplerMetrics, err := snapshot.NewSamplerMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize sampler metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	sampler := snapshot.NewSampler(snapshot.SamplerConfig{
		Estimator:   estimator,
		Concurrency: cfg.SampleConcurrency,
		Timeout:     cfg.RouteTimeout(),
		Logger:      log,
		Metrics:     samplerMetrics,
	})
	log.Info().
		Int("concurrency", cfg.SampleConcurrency).
		Msg("snapshot sampler initialized")

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

	// Start the command handler
	if cfg.CommandsEnabled() {
		handler, err := collector.NewPubSubHandler(ctx, collector.PubSubConfig{
			ProjectID:        cfg.PubSub.ProjectID,
			SubscriptionName: cfg.PubSub.Subscription,
			Scheduler:        scheduler,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create command handler")
		}
		defer handler.Close()

		go func() {
			if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("command handler stopped")
			}
		}()
	} else {
		log.Info().Msg("no command subscription configured, running standalone")
	}

	// Resume the interrupted run, if any. Training status survives pauses
	// and restarts, so the first training area is the one to pick up.
	if cfg.AutoResume {
		resumeInterrupted(ctx, log, scheduler, areaRepo)
	}

	// Serve health endpoints
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"OK","version":%q}`, Version)
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		probeCtx, probeCancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer probeCancel()

		w.Header().Set("Content-Type", "application/json")
		if err := storePing(probeCtx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, `{"status":"FAIL","details":{"store":%q}}`, err.Error())
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"OK"}`)
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("health server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("health server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down collector")

	// Stop taking commands, then wind down the run. Pausing keeps the
	// area in training status so the next boot resumes it.
	cancel()

	if status, ok := scheduler.Active(); ok {
		if err := scheduler.Pause(status.AreaID); err != nil && !errors.Is(err, collector.ErrNoActiveRun) {
			log.Error().Err(err).Str("area_id", status.AreaID).Msg("failed to pause active run")
		} else {
			log.Info().
				Str("area_id", status.AreaID).
				Int("collected", status.Collected).
				Msg("training run paused for shutdown")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("collector stopped")
}

// resumeInterrupted restarts collection for the first area still in
// training status. Runs started here log their own progress; there is no
// other consumer for the event stream.
func resumeInterrupted(ctx context.Context, log zerolog.Logger, scheduler *collector.Scheduler, areas area.Repository) {
	result, err := areas.List(ctx, area.ListOptions{Status: area.StatusTraining, Limit: 1})
	if err != nil {
		log.Error().Err(err).Msg("failed to look up interrupted runs")
		return
	}
	if len(result.Items) == 0 {
		log.Info().Msg("no interrupted training run to resume")
		return
	}

	a := result.Items[0]
	run, err := scheduler.Start(ctx, a.ID)
	if err != nil {
		log.Error().Err(err).Str("area_id", a.ID).Msg("failed to resume training run")
		return
	}

	log.Info().
		Str("area_id", a.ID).
		Int("collected", run.Collected()).
		Int("target", run.Target).
		Msg("training run resumed")

	go drainEvents(log, run)
}

// drainEvents logs the run's progress and terminal events until the
// stream closes.
func drainEvents(log zerolog.Logger, run *collector.Run) {
	for ev := range run.Events() {
		switch ev.Kind {
		case collector.EventProgress:
			log.Debug().
				Str("area_id", ev.AreaID).
				Int("collected", ev.Collected).
				Int("target", ev.Target).
				Msg("training progress")
		case collector.EventTerminal:
			log.Info().
				Str("area_id", ev.AreaID).
				Str("outcome", string(ev.Outcome)).
				Int("collected", ev.Collected).
				Msg("training run ended")
		}
	}
}
