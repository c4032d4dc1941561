// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements bearer-token authentication. The token carries the
// caller's id, role, and standing as explicit claims; the middleware turns a
// valid token into a services.Caller and stashes it in the Gin context. No
// request reaches a protected handler without one.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/calmbridge/support-chat-backend/internal/auth"
	"github.com/calmbridge/support-chat-backend/internal/services"
)

// callerKey is the Gin context key under which the authenticated caller is
// stored.
const callerKey = "caller"

// bearerToken extracts the credential from the Authorization header, falling
// back to the "token" query parameter. The fallback exists for WebSocket
// clients; browsers cannot set headers on WebSocket upgrade requests.
func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return c.Query("token")
}

// Auth returns a middleware that requires a valid token on every request.
//
// Behavior:
//   - Missing or invalid token: 401 with code "unauthenticated".
//   - Valid token for a banned or unapproved user: 403 with code "forbidden".
//     The token is real, so the response distinguishes standing from identity.
//   - Otherwise the caller is stored in the context for CallerFrom.
func Auth(tokens *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := bearerToken(c)
		if tok == "" {
			abortAuth(c, http.StatusUnauthorized, "unauthenticated", "missing credentials")
			return
		}
		claims, err := tokens.ValidateToken(tok)
		if err != nil {
			abortAuth(c, http.StatusUnauthorized, "unauthenticated", "invalid credentials")
			return
		}

		caller := &services.Caller{
			ID:         claims.UserID,
			Role:       services.Role(claims.Role),
			IsApproved: claims.Approved,
			IsBanned:   claims.Banned,
		}
		if !caller.Authenticated() {
			abortAuth(c, http.StatusForbidden, "forbidden", "account not in good standing")
			return
		}

		c.Set(callerKey, caller)
		c.Next()
	}
}

// WithCaller returns a middleware that injects a fixed caller. Handler tests
// use it in place of Auth to exercise endpoints without minting tokens.
func WithCaller(caller *services.Caller) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(callerKey, caller)
		c.Next()
	}
}

// CallerFrom returns the authenticated caller stored by Auth, or nil when the
// request was not authenticated. Handlers behind Auth can rely on a non-nil
// result.
func CallerFrom(c *gin.Context) *services.Caller {
	v, ok := c.Get(callerKey)
	if !ok {
		return nil
	}
	caller, _ := v.(*services.Caller)
	return caller
}

// CallerID returns the authenticated caller's id, or 0.
func CallerID(c *gin.Context) int64 {
	if caller := CallerFrom(c); caller != nil {
		return caller.ID
	}
	return 0
}

func abortAuth(c *gin.Context, status int, code, msg string) {
	rid, _ := c.Get(requestIDKey)
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": asString(rid),
		"code":       code,
		"message":    msg,
	})
}
