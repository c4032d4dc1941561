package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newSecRouter(opt SecurityOptions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), SecurityHeaders(opt))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	r := newSecRouter(SecurityOptions{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	h := w.Header()
	if h.Get("X-Content-Type-Options") != "nosniff" ||
		h.Get("X-Frame-Options") != "DENY" ||
		h.Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("baseline headers missing: %v", h)
	}
	if !strings.Contains(h.Get("Access-Control-Expose-Headers"), requestIDHeader) {
		t.Fatalf("request id not exposed: %v", h)
	}
}

func TestSecurityHeaders_NoStore(t *testing.T) {
	r := newSecRouter(SecurityOptions{NoStore: true})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("expected no-store, got %q", w.Header().Get("Cache-Control"))
	}
}

func TestSecurityHeaders_HSTSOnlyOnHTTPS(t *testing.T) {
	r := newSecRouter(SecurityOptions{EnableHSTS: true, HSTSMaxAge: 24 * time.Hour})

	// Plain HTTP: no HSTS.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS must not be set on plain HTTP")
	}

	// Proxied HTTPS: HSTS present.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	hsts := w.Header().Get("Strict-Transport-Security")
	if !strings.Contains(hsts, "max-age=86400") {
		t.Fatalf("unexpected HSTS value %q", hsts)
	}
}
