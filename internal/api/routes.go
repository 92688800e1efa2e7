// Package api provides the HTTP API for the orggraph server.
package api

import (
	"time"

	"github.com/MacJediWizard/orggraph/internal/api/handlers"
	"github.com/MacJediWizard/orggraph/internal/api/middleware"
	"github.com/MacJediWizard/orggraph/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/MacJediWizard/orggraph/docs/api"
)

// Config holds configuration for the API router.
type Config struct {
	Environment config.Environment
	// AllowedOrigins for CORS. Empty means all origins allowed outside production.
	AllowedOrigins []string
	// RateLimitRequests per RateLimitPeriod per client IP. Zero disables limiting.
	RateLimitRequests int64
	RateLimitPeriod   time.Duration
	// RedisClient shares rate limit counters between instances (optional).
	RedisClient  *redis.Client
	MaxBodyBytes int64
	// Version information for the version endpoint.
	Version      string
	Commit       string
	BuildDate    string
	StoreBackend string
	// Shutdown fails /health once draining starts (optional).
	Shutdown handlers.ShutdownStatus
}

// DefaultConfig returns a Config with sensible defaults for development.
func DefaultConfig() Config {
	return Config{
		Environment:       config.EnvDevelopment,
		AllowedOrigins:    []string{},
		RateLimitRequests: 100,
		RateLimitPeriod:   time.Minute,
		MaxBodyBytes:      1 << 20,
		Version:           "dev",
		Commit:            "unknown",
		BuildDate:         "unknown",
	}
}

// Service is the organization chart surface served over HTTP.
type Service interface {
	handlers.OrganizationService
	handlers.UserService
}

// Telemetry is where the router reports requests and where /metrics reads from.
type Telemetry struct {
	Requests middleware.RequestRecorder
	Gatherer prometheus.Gatherer
}

// Router wraps a Gin engine with configured middleware and routes.
type Router struct {
	Engine *gin.Engine
	logger zerolog.Logger
}

// NewRouter creates a new Router with the given dependencies.
func NewRouter(
	cfg Config,
	service Service,
	store handlers.DatabaseHealthChecker,
	telemetry Telemetry,
	logger zerolog.Logger,
) (*Router, error) {
	r := &Router{
		Engine: gin.New(),
		logger: logger.With().Str("component", "router").Logger(),
	}

	// Global middleware
	r.Engine.Use(gin.Recovery())
	r.Engine.Use(middleware.RequestLogger(logger))
	if telemetry.Requests != nil {
		r.Engine.Use(middleware.RequestMetrics(telemetry.Requests))
	}

	cors, err := middleware.CORS(cfg.AllowedOrigins, cfg.Environment, logger)
	if err != nil {
		return nil, err
	}
	r.Engine.Use(cors)

	// Health, version and metrics endpoints are not rate limited
	healthHandler := handlers.NewHealthHandler(store, logger)
	if cfg.Shutdown != nil {
		healthHandler.WithShutdown(cfg.Shutdown)
	}
	healthHandler.RegisterPublicRoutes(r.Engine)

	versionHandler := handlers.NewVersionHandler(handlers.VersionInfo{
		Version:      cfg.Version,
		Commit:       cfg.Commit,
		BuildDate:    cfg.BuildDate,
		StoreBackend: cfg.StoreBackend,
	}, logger)
	versionHandler.RegisterPublicRoutes(r.Engine)

	if telemetry.Gatherer != nil {
		metricsHandler := handlers.NewMetricsHandler(telemetry.Gatherer, store, logger)
		metricsHandler.RegisterPublicRoutes(r.Engine)
	}

	// Swagger API documentation
	r.Engine.GET("/api/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler,
		ginSwagger.URL("/api/docs/doc.json"),
		ginSwagger.DefaultModelsExpandDepth(-1),
	))

	// Organization chart routes
	rateLimiter, err := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitPeriod, cfg.RedisClient)
	if err != nil {
		return nil, err
	}
	orgAPI := r.Engine.Group("")
	orgAPI.Use(rateLimiter)
	if cfg.MaxBodyBytes > 0 {
		orgAPI.Use(middleware.BodyLimitMiddleware(cfg.MaxBodyBytes))
	}

	orgsHandler := handlers.NewOrganizationsHandler(service, logger)
	orgsHandler.RegisterRoutes(orgAPI)

	usersHandler := handlers.NewUsersHandler(service, logger)
	usersHandler.RegisterRoutes(orgAPI)

	r.logger.Info().Msg("API router initialized")
	return r, nil
}
