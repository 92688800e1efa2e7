package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MacJediWizard/orggraph/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func newCORSRouter(t *testing.T, origins []string) *gin.Engine {
	t.Helper()
	mw, err := CORS(origins, config.EnvDevelopment, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := gin.New()
	r.Use(mw)
	r.GET("/organization/:orgId", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestCORS_AllowedOrigin(t *testing.T) {
	r := newCORSRouter(t, []string{"https://app.example.com", "https://admin.example.com"})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/organization/o1", nil)
	req.Header.Set("Origin", "https://app.example.com")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("expected Access-Control-Allow-Origin 'https://app.example.com', got %q", got)
	}
	if got := w.Header().Get("Access-Control-Expose-Headers"); got != "X-Request-ID" {
		t.Fatalf("expected X-Request-ID to be exposed, got %q", got)
	}
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	r := newCORSRouter(t, []string{"https://app.example.com"})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/organization/o1", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	r.ServeHTTP(w, req)

	// CORS does not block server-side
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no Access-Control-Allow-Origin header, got %q", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	r := newCORSRouter(t, []string{"https://app.example.com"})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("OPTIONS", "/organization/o1", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "PATCH")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected status 204 for preflight, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); got == "" {
		t.Fatal("expected Access-Control-Allow-Methods header to be set")
	}
	if got := w.Header().Get("Access-Control-Max-Age"); got != "86400" {
		t.Fatalf("expected Access-Control-Max-Age '86400', got %q", got)
	}
}

func TestCORS_AllowAllOrigins(t *testing.T) {
	r := newCORSRouter(t, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/organization/o1", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("expected Access-Control-Allow-Origin 'http://localhost:5173', got %q", got)
	}
}

func TestCORS_CaseInsensitive(t *testing.T) {
	r := newCORSRouter(t, []string{"https://App.Example.com "})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/organization/o1", nil)
	req.Header.Set("Origin", "HTTPS://APP.EXAMPLE.COM")
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "HTTPS://APP.EXAMPLE.COM" {
		t.Fatalf("expected case-insensitive match, got %q", got)
	}
}

func TestCORS_NoOriginHeader(t *testing.T) {
	r := newCORSRouter(t, []string{"https://app.example.com"})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/organization/o1", nil)
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no CORS headers without Origin, got %q", got)
	}
}

func TestCORS_ProductionRequiresOrigins(t *testing.T) {
	_, err := CORS(nil, config.EnvProduction, zerolog.Nop())
	if !errors.Is(err, ErrOpenCORSInProduction) {
		t.Fatalf("expected ErrOpenCORSInProduction, got %v", err)
	}

	if _, err := CORS([]string{"https://app.example.com"}, config.EnvProduction, zerolog.Nop()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
