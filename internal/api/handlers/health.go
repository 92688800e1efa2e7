package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MacJediWizard/orggraph/internal/shutdown"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// HealthStatus represents the health status of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

const healthCheckTimeout = 5 * time.Second

// HealthCheckResult represents the result of a health check.
type HealthCheckResult struct {
	Status   HealthStatus   `json:"status"`
	Duration string         `json:"duration,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status HealthStatus                  `json:"status"`
	Checks map[string]*HealthCheckResult `json:"checks,omitempty"`
	Error  string                        `json:"error,omitempty"`
}

// DatabaseHealthChecker defines the interface for graph store health checking.
type DatabaseHealthChecker interface {
	Ping(ctx context.Context) error
	Health(ctx context.Context) map[string]any
}

// ShutdownStatus reports how far graceful shutdown has progressed.
type ShutdownStatus interface {
	GetStatus() shutdown.Status
}

// HealthHandler handles health-related HTTP endpoints.
type HealthHandler struct {
	db       DatabaseHealthChecker
	shutdown ShutdownStatus
	logger   zerolog.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db DatabaseHealthChecker, logger zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		logger: logger.With().Str("component", "health_handler").Logger(),
	}
}

// WithShutdown makes the overall check fail once shutdown has started.
func (h *HealthHandler) WithShutdown(s ShutdownStatus) *HealthHandler {
	h.shutdown = s
	return h
}

// RegisterPublicRoutes registers health check routes.
func (h *HealthHandler) RegisterPublicRoutes(r gin.IRouter) {
	health := r.Group("/health")
	{
		health.GET("", h.Overall)
		health.GET("/db", h.Database)
	}
}

// Overall returns the overall server health status.
//
//	@Summary		Server health
//	@Tags			Monitoring
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Failure		503	{object}	HealthResponse
//	@Router			/health [get]
func (h *HealthHandler) Overall(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	dbResult := h.checkDatabase(ctx)
	response := &HealthResponse{
		Status: dbResult.Status,
		Checks: map[string]*HealthCheckResult{
			"database": dbResult,
		},
	}

	if h.shutdown != nil {
		if status := h.shutdown.GetStatus(); !status.AcceptingRequests {
			details := map[string]any{
				"state":      status.State,
				"components": status.Components,
			}
			if status.StartedAt != nil {
				details["started_at"] = status.StartedAt.UTC().Format(time.RFC3339)
			}
			response.Checks["shutdown"] = &HealthCheckResult{
				Status:  HealthStatusUnhealthy,
				Details: details,
				Error:   "server is shutting down",
			}
			response.Status = HealthStatusUnhealthy
		}
	}

	if response.Status == HealthStatusUnhealthy {
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	c.JSON(http.StatusOK, response)
}

// Database returns the graph store health status.
//
//	@Summary		Graph store health
//	@Tags			Monitoring
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Failure		503	{object}	HealthResponse
//	@Router			/health/db [get]
func (h *HealthHandler) Database(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	result := h.checkDatabase(ctx)

	response := &HealthResponse{
		Status: result.Status,
		Checks: map[string]*HealthCheckResult{
			"database": result,
		},
	}

	if result.Status == HealthStatusUnhealthy {
		response.Error = result.Error
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	c.JSON(http.StatusOK, response)
}

// checkDatabase performs a graph store health check.
func (h *HealthHandler) checkDatabase(ctx context.Context) *HealthCheckResult {
	start := time.Now()
	result := &HealthCheckResult{
		Status: HealthStatusHealthy,
	}

	if h.db == nil {
		result.Status = HealthStatusUnhealthy
		result.Error = "database not configured"
		result.Duration = time.Since(start).String()
		return result
	}

	err := h.db.Ping(ctx)
	result.Duration = time.Since(start).String()

	if err != nil {
		result.Status = HealthStatusUnhealthy
		result.Error = "database ping failed"
		h.logger.Warn().Err(err).Msg("database health check failed")
		return result
	}

	result.Details = h.db.Health(ctx)

	return result
}
