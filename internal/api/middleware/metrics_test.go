package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type recordedRequest struct {
	method string
	route  string
	status int
}

type fakeRequestRecorder struct {
	requests []recordedRequest
}

func (f *fakeRequestRecorder) RecordRequest(method, route string, status int, _ time.Duration) {
	f.requests = append(f.requests, recordedRequest{method, route, status})
}

func TestRequestMetrics(t *testing.T) {
	rec := &fakeRequestRecorder{}

	r := gin.New()
	r.Use(RequestMetrics(rec))
	r.GET("/organization/:orgId", func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "organization not found"})
	})

	for _, path := range []string{"/organization/o1", "/organization/o2", "/nowhere"} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", path, nil)
		r.ServeHTTP(w, req)
	}

	if len(rec.requests) != 3 {
		t.Fatalf("expected 3 recorded requests, got %d", len(rec.requests))
	}
	if got := rec.requests[0]; got.route != "/organization/:orgId" || got.status != http.StatusNotFound {
		t.Errorf("unexpected first request: %+v", got)
	}
	if got := rec.requests[2]; got.route != "" {
		t.Errorf("expected unmatched route to be empty, got %q", got.route)
	}
}
