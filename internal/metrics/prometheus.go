// Package metrics provides Prometheus metrics collection for orggraph.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors exported by the server.
type Metrics struct {
	// RoundTrips counts graph store calls, labelled by the operation that issued them.
	RoundTrips *prometheus.CounterVec

	RequestCounter  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	SupervisionCycles prometheus.Gauge
}

// NewPrometheusMetrics creates the collectors and registers them with reg.
func NewPrometheusMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		RoundTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orggraph",
			Subsystem: "store",
			Name:      "round_trips_total",
			Help:      "Number of graph store round trips by operation.",
		}, []string{"operation"}),
		RequestCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orggraph",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Number of HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "orggraph",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		SupervisionCycles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "orggraph",
			Name:      "supervision_cycles",
			Help:      "Users whose supervision chain loops back to themselves, as of the last audit.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.RoundTrips,
		m.RequestCounter,
		m.RequestDuration,
		m.SupervisionCycles,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// RecordRoundTrip counts one store round trip under the operation carried by ctx.
func (m *Metrics) RecordRoundTrip(ctx context.Context) {
	m.RoundTrips.WithLabelValues(OperationFrom(ctx)).Inc()
}

// RecordRequest records a completed HTTP request.
func (m *Metrics) RecordRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.RequestCounter.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// SetSupervisionCycles records the result of a supervision audit.
func (m *Metrics) SetSupervisionCycles(n int) {
	m.SupervisionCycles.Set(float64(n))
}
