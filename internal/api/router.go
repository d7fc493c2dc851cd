// Package api provides the HTTP API for the rain matrix service.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/rainmatrix/rainmatrix/internal/api/handler"
	"github.com/rainmatrix/rainmatrix/internal/api/middleware"
	"github.com/rainmatrix/rainmatrix/internal/cache"
	"github.com/rainmatrix/rainmatrix/internal/forecast"
	"github.com/rainmatrix/rainmatrix/internal/grid"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version         string
	BuildTime       string
	Logger          zerolog.Logger
	ServiceName     string
	Metrics         *middleware.Metrics
	ProviderMetrics *middleware.ProviderMetrics
	GridService     *grid.Service
	ForecastService *forecast.Service
	Cache           cache.Repository
	PlacesPath      string
	BreakerState    func() gobreaker.State
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "rainmatrix-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:      cfg.Version,
		BuildTime:    cfg.BuildTime,
		PlacesPath:   cfg.PlacesPath,
		Cache:        cfg.Cache,
		BreakerState: cfg.BreakerState,
	})
	matrixHandler := handler.NewMatrixHandler(cfg.GridService, cfg.ProviderMetrics)
	geocodeHandler := handler.NewGeocodeHandler(cfg.ForecastService)

	// Rate limit middleware per endpoint category
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(standardRateLimit).Get("/status", opsHandler.SystemStatus)
		})

		// Matrix endpoint - fans out to the upstream provider on a miss
		r.With(expensiveRateLimit).Get("/matrix", matrixHandler.GetMatrix)

		// Geocode endpoint
		r.With(standardRateLimit).Get("/geocode", geocodeHandler.Geocode)
	})

	return r
}
