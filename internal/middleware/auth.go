package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/simp-lee/jwt"

	"github.com/medilab/backend/internal/domain"
	"github.com/medilab/backend/internal/pkg"
)

// Context keys set by the Auth middleware.
const (
	ContextUsername = "auth.username"
	ContextRoles    = "auth.roles"
	ContextToken    = "auth.token"
)

// Auth returns a gin middleware that validates the bearer token on every
// request whose path is not listed in publicPaths. On success the username,
// roles, and raw token are stored in the request context.
func Auth(jwtSvc jwt.Service, publicPaths []string) gin.HandlerFunc {
	public := make(map[string]bool, len(publicPaths))
	for _, p := range publicPaths {
		public[p] = true
	}

	return func(c *gin.Context) {
		if public[c.Request.URL.Path] {
			c.Next()
			return
		}

		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			abortUnauthorized(c, "missing bearer token")
			return
		}

		token, err := jwtSvc.ValidateAndParse(raw)
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}
		if jwtSvc.IsTokenRevoked(raw) {
			abortUnauthorized(c, "token revoked")
			return
		}

		c.Set(ContextUsername, token.UserID)
		c.Set(ContextRoles, token.Roles)
		c.Set(ContextToken, raw)
		c.Next()
	}
}

// RequireRole returns a middleware that rejects requests whose token does
// not carry the given role. It must run after Auth.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roles, ok := c.Get(ContextRoles)
		if !ok {
			abortForbidden(c)
			return
		}
		held, ok := roles.([]string)
		if !ok || !domain.HasRole(held, role) {
			abortForbidden(c)
			return
		}
		c.Next()
	}
}

// Username returns the authenticated username from the request context.
func Username(c *gin.Context) string {
	return c.GetString(ContextUsername)
}

// Token returns the raw bearer token from the request context.
func Token(c *gin.Context) string {
	return c.GetString(ContextToken)
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, pkg.Response{
		Code:    http.StatusUnauthorized,
		Message: msg,
	})
}

func abortForbidden(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, pkg.Response{
		Code:    http.StatusForbidden,
		Message: "forbidden",
	})
}
