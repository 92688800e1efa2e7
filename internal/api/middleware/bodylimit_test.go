package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

const testBodyLimit = 64

// orgBody returns an organization create body of exactly size bytes.
func orgBody(size int) string {
	const frame = `{"name":""}`
	return `{"name":"` + strings.Repeat("x", size-len(frame)) + `"}`
}

// limitedOrgRouter binds organization bodies behind the body limit, the way
// the create handler does.
func limitedOrgRouter(reached *bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(BodyLimitMiddleware(testBodyLimit))
	r.POST("/organization", func(c *gin.Context) {
		*reached = true
		var in struct {
			Name string `json:"name"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"name": in.Name})
	})
	r.GET("/organization/:orgId", func(c *gin.Context) {
		*reached = true
		c.JSON(http.StatusOK, gin.H{"id": c.Param("orgId")})
	})
	return r
}

func TestBodyLimitMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		size        int
		chunked     bool
		want        int
		wantReached bool
	}{
		{"under limit", testBodyLimit / 2, false, http.StatusCreated, true},
		{"exactly at limit", testBodyLimit, false, http.StatusCreated, true},
		{"at limit with unknown length", testBodyLimit, true, http.StatusCreated, true},
		{"declared length over limit", testBodyLimit + 1, false, http.StatusRequestEntityTooLarge, false},
		{"unknown length over limit", testBodyLimit * 4, true, http.StatusRequestEntityTooLarge, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached := false
			r := limitedOrgRouter(&reached)

			body := orgBody(tt.size)
			if len(body) != tt.size {
				t.Fatalf("test body is %d bytes, want %d", len(body), tt.size)
			}

			w := httptest.NewRecorder()
			req, _ := http.NewRequest("POST", "/organization", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			if tt.chunked {
				req.ContentLength = -1
			}
			r.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Fatalf("expected status %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
			if reached != tt.wantReached {
				t.Errorf("expected handler reached=%v, got %v", tt.wantReached, reached)
			}
		})
	}
}

func TestBodyLimitMiddleware_NoBody(t *testing.T) {
	reached := false
	r := limitedOrgRouter(&reached)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/organization/o1", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !reached {
		t.Error("expected handler to run for a request without a body")
	}
}
