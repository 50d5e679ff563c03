// Package api provides the HTTP API of the MetaMapa map gateway.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/metamapa/mapgateway/internal/api/handler"
	"github.com/metamapa/mapgateway/internal/api/middleware"
	"github.com/metamapa/mapgateway/internal/auth"
	"github.com/metamapa/mapgateway/internal/backend/resilience"
	"github.com/metamapa/mapgateway/internal/featureflags"
	"github.com/metamapa/mapgateway/internal/mapview"
	"github.com/metamapa/mapgateway/internal/marker"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string

	// HTTPMetrics records OpenTelemetry request metrics.
	HTTPMetrics *middleware.Metrics
	// MetricsHandler serves the Prometheus registry at /metrics when set.
	MetricsHandler http.Handler

	RequireTLS bool
	DevAuth    bool

	AuthService        *auth.Service
	FeatureFlagService *featureflags.Service
	Sessions           *mapview.Manager
	Collections        handler.CollectionCatalog
	Icons              *marker.IconSet
	Registry           *resilience.Registry
	ReadinessChecks    []handler.ReadinessCheck
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "metamapa-mapgateway"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.HTTPMetrics != nil {
		r.Use(cfg.HTTPMetrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))                          // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))                        // Panic recovery
	r.Use(chimiddleware.RealIP)                                   // Real IP extraction
	r.Use(middleware.SecurityHeaders)                             // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))                  // TLS enforcement (REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)                             // JSON content type
	r.Use(middleware.RequireJSON)                                 // Reject non-JSON bodies
	r.Use(middleware.MaxBodySize(middleware.DefaultMaxBodyBytes)) // Bound request bodies

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Registry:  cfg.Registry,
		Flags:     cfg.FeatureFlagService,
		Sessions:  cfg.Sessions,
		Checks:    cfg.ReadinessChecks,
	})
	authHandler := handler.NewAuthHandler(cfg.AuthService, cfg.Logger)
	meHandler := handler.NewMeHandler()
	catalogHandler := handler.NewCatalogHandler(cfg.Collections, cfg.Icons, cfg.Logger)
	mapHandler := handler.NewMapHandler(cfg.Sessions, cfg.Collections, cfg.FeatureFlagService, cfg.Logger)
	featureFlagsHandler := handler.NewFeatureFlagsHandler(cfg.FeatureFlagService, cfg.Logger)

	authMiddleware := middleware.Auth(cfg.AuthService)
	optionalAuth := middleware.OptionalAuth(cfg.AuthService)

	authRateLimit := middleware.RateLimitByIP(middleware.AuthRateLimit)         // 10 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 100 req/min

	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		// Auth endpoints (public) - strict rate limiting
		r.Route("/auth", func(r chi.Router) {
			r.Use(authRateLimit)
			r.Post("/login", authHandler.Login)
			if cfg.DevAuth {
				r.Post("/dev", authHandler.DevLogin)
			}
		})

		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
		})

		r.With(authMiddleware, middleware.RateLimitByUser(middleware.StandardRateLimit)).Get("/me", meHandler.GetMe)

		// Catalog endpoints (public) - standard rate limiting
		r.Group(func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/collections", catalogHandler.ListCollections)
			r.Get("/categories", catalogHandler.ListCategories)
		})

		// Map sessions - anonymous or authenticated; owned sessions are private
		r.Route("/map/sessions", func(r chi.Router) {
			r.Use(optionalAuth)
			r.With(middleware.RateLimitByUser(middleware.StandardRateLimit)).Post("/", mapHandler.CreateSession)

			r.Route("/{sessionId}", func(r chi.Router) {
				r.Use(middleware.RateLimitBySession(middleware.MapEventRateLimit)) // 300 req/min per session
				r.Get("/", mapHandler.GetSession)
				r.Delete("/", mapHandler.DeleteSession)

				r.Post("/viewport:move", mapHandler.MoveViewport)
				r.Post("/viewport:zoom", mapHandler.ZoomViewport)
				r.Post("/refresh", mapHandler.Refresh)

				r.Patch("/filters/pending", mapHandler.PatchPendingFilters)
				r.Put("/filters/pending/collection", mapHandler.SetPendingCollection)
				r.Put("/filters/pending/mode", mapHandler.SetPendingMode)
				r.Post("/filters:open", mapHandler.OpenFilters)
				r.Post("/filters:apply", mapHandler.ApplyFilters)
				r.Post("/filters:clear", mapHandler.ClearFilters)

				r.Post("/markers/{markerId}:open", mapHandler.OpenMarker)
				r.Post("/markers:close", mapHandler.CloseMarker)
				r.Get("/markers.geojson", mapHandler.ExportMarkers)

				r.Post("/media:open", mapHandler.OpenMedia)
				r.Post("/media:next", mapHandler.NextMedia)
				r.Post("/media:prev", mapHandler.PrevMedia)
				r.Post("/media:close", mapHandler.CloseMedia)
			})
		})

		// Admin endpoints - ADMIN role only
		r.Route("/admin", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RequireRole("ADMIN"))
			r.Use(standardRateLimit)

			r.Route("/feature-flags", func(r chi.Router) {
				r.Get("/", featureFlagsHandler.ListFeatureFlags)
				r.Put("/", featureFlagsHandler.UpsertFeatureFlags)
			})
			r.Post("/feature-flags:invalidate", featureFlagsHandler.InvalidateCache)
			r.Post("/collections:invalidate", catalogHandler.InvalidateCollections)
		})
	})

	return r
}
