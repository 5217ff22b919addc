package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const reviewerKey = "reviewer"

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"statusCode": status,
		"message":    message,
		"code":       "unauthorized",
	})
}

// RequireAdmin requires a bearer token with the admin role. An empty secret
// disables the check, for local development.
func RequireAdmin(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "Authorization header required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abort(c, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		claims, err := ValidateToken(strings.TrimSpace(parts[1]), secret)
		if err != nil {
			abort(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		if claims.Role != RoleAdmin {
			abort(c, http.StatusForbidden, "Admin access required")
			return
		}

		c.Set(reviewerKey, claims)
		c.Next()
	}
}

// ReviewerFromContext returns the authenticated reviewer's display name,
// falling back to the subject. Empty when auth is disabled.
func ReviewerFromContext(c *gin.Context) string {
	v, ok := c.Get(reviewerKey)
	if !ok {
		return ""
	}
	claims, ok := v.(*Claims)
	if !ok {
		return ""
	}
	if claims.Name != "" {
		return claims.Name
	}
	return claims.Subject
}
