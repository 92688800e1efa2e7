// Package main is the entrypoint for the orggraph server.
//
// @title           orggraph API
// @version         1.0
// @description     Organizations, users and supervision chains stored in a graph database.
//
// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT
//
// @host      localhost:8080
// @BasePath  /
//
// @tag.name Organizations
// @tag.description Organization creation and lookup
// @tag.name Users
// @tag.description Users, their supervisors and the persistence strategies
// @tag.name Monitoring
// @tag.description Health, version and metrics
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MacJediWizard/orggraph/internal/api"
	"github.com/MacJediWizard/orggraph/internal/api/middleware"
	"github.com/MacJediWizard/orggraph/internal/config"
	"github.com/MacJediWizard/orggraph/internal/db"
	"github.com/MacJediWizard/orggraph/internal/maintenance"
	"github.com/MacJediWizard/orggraph/internal/memstore"
	"github.com/MacJediWizard/orggraph/internal/metrics"
	"github.com/MacJediWizard/orggraph/internal/orgchart"
	"github.com/MacJediWizard/orggraph/internal/shutdown"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// graphStore is satisfied by both store backends.
type graphStore interface {
	orgchart.Store
	maintenance.AuditStore
	Ping(ctx context.Context) error
	Health(ctx context.Context) map[string]any
	SetRecorder(r db.RoundTripRecorder)
}

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("version", Version).Logger()
	if os.Getenv("ENV") != string(config.EnvProduction) {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg, err := config.LoadServerConfig()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		return 1
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	} else {
		logger.Warn().Str("log_level", cfg.LogLevel).Msg("Unknown log level, using info")
		logger = logger.Level(zerolog.InfoLevel)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Info().
		Str("commit", Commit).
		Str("build_date", BuildDate).
		Str("env", string(cfg.Environment)).
		Str("store_backend", string(cfg.StoreBackend)).
		Msg("Starting orggraph server")

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.NewPrometheusMetrics(reg)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to register metrics")
		return 1
	}

	// Graph store
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open graph store")
		return 1
	}
	store.SetRecorder(m)

	// Components registered later are stopped first
	shutdownMgr := shutdown.NewManager(shutdown.DefaultConfig(), logger)
	shutdownMgr.Register("store", func(context.Context) error {
		closeStore()
		return nil
	})
	defer func() { _ = shutdownMgr.Shutdown(context.Background()) }()

	routerCfg := api.Config{
		Environment:       cfg.Environment,
		AllowedOrigins:    cfg.CORSOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitPeriod:   cfg.RateLimitPeriod,
		MaxBodyBytes:      cfg.MaxBodyBytes,
		Version:           Version,
		Commit:            Commit,
		BuildDate:         BuildDate,
		StoreBackend:      string(cfg.StoreBackend),
		Shutdown:          shutdownMgr,
	}

	// Shared rate limit counters
	if cfg.RedisURL != "" {
		client, err := middleware.NewRedisClient(cfg.RedisURL)
		if err != nil {
			logger.Error().Err(err).Msg("Invalid REDIS_URL")
			return 1
		}
		shutdownMgr.Register("redis", func(context.Context) error {
			return client.Close()
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("Redis is not reachable, rate limited routes will return errors until it is")
		}
		routerCfg.RedisClient = client
	}

	service := orgchart.NewService(store, logger)

	router, err := api.NewRouter(routerCfg, service, store, api.Telemetry{Requests: m, Gatherer: reg}, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize router")
		return 1
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Start supervision audit
	audit := maintenance.NewSupervisionAudit(store, m, cfg.AuditSchedule, logger)
	if err := audit.Start(); err != nil {
		logger.Error().Err(err).Msg("Failed to start supervision audit")
	}
	shutdownMgr.Register("supervision_audit", func(ctx context.Context) error {
		select {
		case <-audit.Stop().Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	shutdownMgr.Register("http", srv.Shutdown)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down server")
	case err := <-serverErr:
		logger.Error().Err(err).Msg("HTTP server error")
		return 1
	}

	if err := shutdownMgr.Shutdown(context.Background()); err != nil {
		logger.Error().Err(err).Msg("Server shutdown error")
		return 1
	}

	logger.Info().Msg("Server stopped gracefully")
	return 0
}

// openStore connects the configured backend. The Neo4j store is migrated
// before use.
func openStore(ctx context.Context, cfg config.ServerConfig, logger zerolog.Logger) (graphStore, func(), error) {
	if cfg.StoreBackend == config.StoreMemory {
		logger.Warn().Msg("Using in-memory store, data is lost on restart")
		return memstore.New(cfg.MaxChainDepth), func() {}, nil
	}

	dbCfg := db.DefaultConfig(cfg.Neo4j.URI)
	dbCfg.Username = cfg.Neo4j.Username
	dbCfg.Password = cfg.Neo4j.Password
	dbCfg.Database = cfg.Neo4j.Database
	dbCfg.MaxChainDepth = cfg.MaxChainDepth

	database, err := db.New(ctx, dbCfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, nil, err
	}
	return database, database.Close, nil
}
