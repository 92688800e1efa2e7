package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MacJediWizard/orggraph/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func scrapeMetrics(t *testing.T, db DatabaseHealthChecker) string {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := metrics.NewPrometheusMetrics(reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.RecordRoundTrip(metrics.WithOperation(context.Background(), "get_user"))

	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewMetricsHandler(reg, db, zerolog.Nop()).RegisterPublicRoutes(r)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/metrics", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/plain") {
		t.Fatalf("expected text/plain content type, got %q", ct)
	}
	return w.Body.String()
}

func TestMetrics(t *testing.T) {
	t.Run("with healthy db", func(t *testing.T) {
		body := scrapeMetrics(t, &mockDatabaseHealthChecker{})

		if !strings.Contains(body, `orggraph_store_round_trips_total{operation="get_user"} 1`) {
			t.Fatalf("expected round trip counter, got:\n%s", body)
		}
		if !strings.Contains(body, `orggraph_up{component="database"} 1`) {
			t.Fatal("expected database healthy metric")
		}
	})

	t.Run("with unhealthy db", func(t *testing.T) {
		body := scrapeMetrics(t, &mockDatabaseHealthChecker{pingErr: errors.New("db down")})

		if !strings.Contains(body, `orggraph_up{component="database"} 0`) {
			t.Fatal("expected database unhealthy metric")
		}
	})

	t.Run("nil db", func(t *testing.T) {
		body := scrapeMetrics(t, nil)

		if !strings.Contains(body, `orggraph_up{component="database"} 0`) {
			t.Fatal("expected database unhealthy metric when nil")
		}
	})
}
