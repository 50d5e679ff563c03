// Package main provides the entrypoint for the MetaMapa map gateway.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/metamapa/mapgateway/internal/api"
	"github.com/metamapa/mapgateway/internal/api/handler"
	"github.com/metamapa/mapgateway/internal/api/middleware"
	"github.com/metamapa/mapgateway/internal/auth"
	"github.com/metamapa/mapgateway/internal/backend/resilience"
	"github.com/metamapa/mapgateway/internal/collection"
	"github.com/metamapa/mapgateway/internal/collection/rest"
	"github.com/metamapa/mapgateway/internal/config"
	"github.com/metamapa/mapgateway/internal/database"
	"github.com/metamapa/mapgateway/internal/featureflags"
	"github.com/metamapa/mapgateway/internal/incident/graphql"
	"github.com/metamapa/mapgateway/internal/mapview"
	"github.com/metamapa/mapgateway/internal/marker"
	"github.com/metamapa/mapgateway/internal/metrics"
	"github.com/metamapa/mapgateway/internal/telemetry"
	"github.com/metamapa/mapgateway/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const devSigningKey = "local-dev-signing-key-change-in-production"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", telemetry.ServiceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Server.Environment).
		Msg("starting MetaMapa map gateway")

	ctx := context.Background()

	// Initialize OpenTelemetry
	telemetryConfig := telemetry.NewConfig(Version, cfg.Server.Environment, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.Enabled)
	telemetryConfig.SampleRatio = cfg.Telemetry.SampleRatio
	tp, err := telemetry.Init(ctx, telemetryConfig)
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
	if tp.Exporting() {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Float64("sample_ratio", cfg.Telemetry.SampleRatio).
			Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize HTTP metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	gatewayMetrics := metrics.New()

	// Backend clients share one registry so /v1/ops/status and /metrics see every backend
	registry := resilience.NewRegistry()
	gatewayMetrics.TrackBackends(func() []metrics.BackendState {
		health := registry.AllHealth()
		states := make([]metrics.BackendState, 0, len(health))
		for _, h := range health {
			states = append(states, metrics.BackendState{Name: h.Name, Up: !h.IsUnhealthy()})
		}
		return states
	})

	coreConfig := resilience.DefaultClientConfig(rest.BackendName)
	coreConfig.Timeout = cfg.Backends.Timeout
	coreConfig.Registry = registry
	coreClient := resilience.NewClient(coreConfig)

	markerClient := graphql.NewClient(graphql.ClientConfig{
		Endpoint: cfg.Backends.GraphQLURL,
		Timeout:  cfg.Backends.Timeout,
		Registry: registry,
	})

	collections := collection.NewService(collection.ServiceConfig{
		Source: rest.NewClient(rest.ClientConfig{BaseURL: cfg.Backends.CoreURL, HTTPClient: coreClient}),
		Logger: log.With().Str("component", "collections").Logger(),
	})

	// Auth
	signingKey := cfg.Auth.SigningKey
	if signingKey == "" {
		signingKey = devSigningKey
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}
	authService := auth.NewService(auth.ServiceConfig{
		JWTService: auth.NewJWTService(auth.JWTConfig{
			SigningKey: signingKey,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
		}),
		LoginClient: auth.NewLoginClient(auth.LoginConfig{
			BaseURL:    cfg.Backends.CoreURL,
			HTTPClient: coreClient,
		}),
	})
	if cfg.Auth.DevMode {
		log.Warn().Msg("dev authentication enabled at POST /v1/auth/dev")
	}

	// Storage: PostgreSQL when enabled, process memory otherwise
	var (
		pool       *pgxpool.Pool
		flagRepo   featureflags.Repository = featureflags.NewInMemoryRepository()
		viewRepo   mapview.Repository      = mapview.NewInMemoryRepository()
		readyCheck []handler.ReadinessCheck
	)
	if cfg.DatabaseEnabled {
		dbConfig := database.ConfigFromEnv()
		pool, err = database.Connect(ctx, dbConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		if err := database.EnsureSchema(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("failed to prepare database schema")
		}
		log.Info().
			Str("host", dbConfig.Host).
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Database).
			Msg("database connected")

		flagRepo = featureflags.NewPostgresRepository(pool)
		viewRepo = mapview.NewPostgresRepository(pool)
		readyCheck = append(readyCheck, handler.ReadinessCheck{Name: "postgres", Check: pool.Ping})
	} else {
		log.Warn().Msg("database disabled - saved views and feature flags are kept in memory")
	}

	flags := featureflags.NewService(featureflags.ServiceConfig{
		Repository: flagRepo,
		Logger:     log,
		CacheTTL:   1 * time.Minute,
	})

	icons, err := marker.LoadIconSet(cfg.Map.IconsFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.Map.IconsFile).Msg("failed to load category icons")
	}

	sessions := mapview.NewManager(mapview.ManagerConfig{
		Session: mapview.Options{
			Fetcher:      markerClient,
			Icons:        icons,
			Flags:        flags,
			FetchTimeout: cfg.Map.FetchTimeout,
		},
		Repository: viewRepo,
		IdleTTL:    cfg.Map.SessionIdleTTL,
		Retention:  cfg.Map.SavedViewRetention,
		Refresh:    worker.DefaultRefreshConfig(),
		Metrics:    gatewayMetrics,
		Logger:     log.With().Str("component", "mapview").Logger(),
	})
	defer sessions.Close()

	// Background jobs
	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()

	scheduler := worker.NewScheduler(log.With().Str("component", "scheduler").Logger())
	if err := scheduler.Add("session-sweep", cfg.Map.SweepSchedule, func(ctx context.Context) {
		sessions.Sweep(ctx)
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule session sweep")
	}
	scheduler.Start(bgCtx)

	if cfg.PubSub.Enabled() {
		subscriber, err := worker.NewPubSubHandler(bgCtx, worker.PubSubConfig{
			ProjectID:        cfg.PubSub.ProjectID,
			SubscriptionName: cfg.PubSub.Subscription,
			Handler:          sessions,
			Gate:             flags,
			Metrics:          gatewayMetrics,
			Logger:           log.With().Str("component", "pubsub").Logger(),
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create incident change subscriber")
		}
		defer func() {
			if err := subscriber.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close incident change subscriber")
			}
		}()
		go func() {
			if err := subscriber.Start(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("incident change subscriber stopped")
			}
		}()
	} else {
		log.Info().Msg("incident change notifications disabled")
	}

	router := api.NewRouter(api.RouterConfig{
		Version:            Version,
		BuildTime:          BuildTime,
		Logger:             log,
		ServiceName:        telemetry.ServiceName,
		HTTPMetrics:        httpMetrics,
		MetricsHandler:     gatewayMetrics.Handler(),
		RequireTLS:         cfg.Server.RequireTLS,
		DevAuth:            cfg.Auth.DevMode,
		AuthService:        authService,
		FeatureFlagService: flags,
		Sessions:           sessions,
		Collections:        collections,
		Icons:              icons,
		Registry:           registry,
		ReadinessChecks:    readyCheck,
	})

	// Create HTTP server. WriteTimeout leaves room for a full marker fetch.
	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.Map.FetchTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	stopBackground()
	scheduler.Stop(shutdownCtx)

	log.Info().Msg("server stopped")
}
