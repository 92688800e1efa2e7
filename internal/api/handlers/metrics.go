package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// MetricsHandler serves Prometheus metrics, adding a store liveness gauge
// refreshed on every scrape.
type MetricsHandler struct {
	db      DatabaseHealthChecker
	up      prometheus.Gauge
	handler gin.HandlerFunc
	logger  zerolog.Logger
}

// NewMetricsHandler creates a new MetricsHandler exposing everything in gatherer.
func NewMetricsHandler(gatherer prometheus.Gatherer, db DatabaseHealthChecker, logger zerolog.Logger) *MetricsHandler {
	up := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "orggraph_up",
		Help:        "Graph store health status (1 = healthy, 0 = unhealthy)",
		ConstLabels: prometheus.Labels{"component": "database"},
	})
	local := prometheus.NewRegistry()
	local.MustRegister(up)

	return &MetricsHandler{
		db:      db,
		up:      up,
		handler: gin.WrapH(promhttp.HandlerFor(prometheus.Gatherers{gatherer, local}, promhttp.HandlerOpts{})),
		logger:  logger.With().Str("component", "metrics_handler").Logger(),
	}
}

// RegisterPublicRoutes registers the metrics route.
func (h *MetricsHandler) RegisterPublicRoutes(r gin.IRouter) {
	r.GET("/metrics", h.Metrics)
}

// Metrics returns metrics in Prometheus exposition format.
//
//	@Summary		Prometheus metrics endpoint
//	@Description	Returns metrics in Prometheus exposition format for scraping
//	@Tags			Monitoring
//	@Produce		text/plain
//	@Success		200	{string}	string	"Prometheus metrics"
//	@Router			/metrics [get]
func (h *MetricsHandler) Metrics(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	healthy := 1.0
	if h.db == nil {
		healthy = 0
	} else if err := h.db.Ping(ctx); err != nil {
		healthy = 0
		h.logger.Warn().Err(err).Msg("database ping failed for metrics")
	}
	h.up.Set(healthy)

	h.handler(c)
}
