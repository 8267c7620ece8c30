package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sentrywall/core/internal/services"
)

const (
	ctxKeyActor = "actor"
	ctxKeyRole  = "role"
)

// RequireAuth parses Authorization: Bearer <token>, validates it against
// auth, and stores the resolved {actor, role} pair on the gin context.
// Everything downstream of this middleware (config API handlers) trusts
// that pair without touching passwords or tokens itself (spec.md §6).
func RequireAuth(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		token := strings.TrimSpace(header[len("bearer "):])

		claims, err := auth.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ctxKeyActor, claims.Email)
		c.Set(ctxKeyRole, claims.Role)
		c.Next()
	}
}

// RequireWrite aborts with 403 unless the resolved role permits writes.
// Must run after RequireAuth.
func RequireWrite() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get(ctxKeyRole)
		if role != "administrator" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// Actor returns the authenticated email resolved by RequireAuth.
func Actor(c *gin.Context) string {
	v, _ := c.Get(ctxKeyActor)
	s, _ := v.(string)
	return s
}
