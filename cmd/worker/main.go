// Package main provides the saved-view janitor. It purges map views that
// have not been touched within the retention window as a standalone job.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/metamapa/mapgateway/internal/config"
	"github.com/metamapa/mapgateway/internal/database"
	"github.com/metamapa/mapgateway/internal/mapview"
	"github.com/metamapa/mapgateway/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", "metamapa-janitor").
		Str("version", Version).
		Logger()

	log.Info().Str("build_time", BuildTime).Msg("starting saved-view janitor")

	if !cfg.DatabaseEnabled {
		log.Fatal().Msg("janitor requires DATABASE_ENABLED=true")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.Connect(ctx, database.ConfigFromEnv())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	views := mapview.NewPostgresRepository(pool)
	retention := cfg.Map.SavedViewRetention

	scheduler := worker.NewScheduler(log.With().Str("component", "scheduler").Logger())
	if err := scheduler.Add("saved-view-purge", cfg.Map.SweepSchedule, func(ctx context.Context) {
		cutoff := time.Now().Add(-retention)
		purged, err := views.DeleteBefore(ctx, cutoff)
		if err != nil {
			log.Error().Err(err).Msg("failed to purge saved views")
			return
		}
		log.Info().Int("purged", purged).Time("cutoff", cutoff).Msg("saved views purged")
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule saved-view purge")
	}
	scheduler.Start(ctx)

	// Health endpoint for the container platform
	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           healthRouter(pool),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down janitor")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	scheduler.Stop(shutdownCtx)
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("janitor stopped")
}

func healthRouter(pool *pgxpool.Pool) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "healthy", http.StatusOK
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status, "version": Version})
	})
	return r
}
