package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newLimitedRouter(rl *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), rl.Handler())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func TestRateLimiter_AllowsWithinBudget(t *testing.T) {
	rl := NewRateLimiter(100, 2, KeyByCallerOrIP())
	r := newLimitedRouter(rl)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		if w.Code != http.StatusNoContent {
			t.Fatalf("request %d: status = %d", i, w.Code)
		}
	}
}

func TestRateLimiter_RejectsBeyondBurst(t *testing.T) {
	// Zero refill, burst of 1: the second request must be rejected.
	rl := NewRateLimiter(0, 1, KeyByCallerOrIP())
	r := newLimitedRouter(rl)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("first request: status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status = %d; want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestRateLimiter_BypassForReplay(t *testing.T) {
	rl := NewRateLimiter(0, 1, KeyByCallerOrIP())
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ctxKeyRateBypass, true)
		c.Next()
	}, rl.Handler())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	// Every request is flagged as a replay, so none consume tokens.
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		if w.Code != http.StatusNoContent {
			t.Fatalf("replay %d: status = %d", i, w.Code)
		}
	}
}

func TestNewRateLimiter_CoercesBurst(t *testing.T) {
	rl := NewRateLimiter(1, 0, KeyByCallerOrIP())
	if rl.burst != 1 {
		t.Fatalf("burst = %d; want 1", rl.burst)
	}
}
