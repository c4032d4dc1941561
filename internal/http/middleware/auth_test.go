package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/calmbridge/support-chat-backend/internal/auth"
	"github.com/calmbridge/support-chat-backend/internal/services"
)

func newAuthRouter(t *testing.T, tokens *auth.Service) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Auth(tokens))
	r.GET("/whoami", func(c *gin.Context) {
		caller := CallerFrom(c)
		if caller == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no caller"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": caller.ID, "role": string(caller.Role)})
	})
	return r
}

func TestAuth_ValidBearerToken(t *testing.T) {
	tokens := auth.New("secret", time.Hour)
	r := newAuthRouter(t, tokens)

	tok, err := tokens.GenerateToken(7, string(services.RoleVolunteer), true, false)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestAuth_TokenViaQueryParam(t *testing.T) {
	tokens := auth.New("secret", time.Hour)
	r := newAuthRouter(t, tokens)

	tok, _ := tokens.GenerateToken(7, string(services.RoleClient), true, false)
	req := httptest.NewRequest(http.MethodGet, "/whoami?token="+tok, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestAuth_MissingToken(t *testing.T) {
	r := newAuthRouter(t, auth.New("secret", time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d; want 401", w.Code)
	}
}

func TestAuth_InvalidToken(t *testing.T) {
	r := newAuthRouter(t, auth.New("secret", time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d; want 401", w.Code)
	}
}

func TestAuth_BannedCallerForbidden(t *testing.T) {
	tokens := auth.New("secret", time.Hour)
	r := newAuthRouter(t, tokens)

	tok, _ := tokens.GenerateToken(7, string(services.RoleClient), true, true)
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d; want 403", w.Code)
	}
}

func TestCallerID_Unauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if got := CallerID(c); got != 0 {
		t.Fatalf("CallerID = %d; want 0", got)
	}
	if CallerFrom(c) != nil {
		t.Fatalf("CallerFrom should be nil without Auth")
	}
}
