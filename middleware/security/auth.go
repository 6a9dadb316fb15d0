package security

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const ctxTokenKey = "authorization"

// Middleware extracts the bearer credential into the gin context so
// downstream handlers read it from one place. It never rejects here;
// whether a token is required is the endpoint's decision.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if authz := strings.TrimSpace(c.GetHeader("Authorization")); authz != "" {
			if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				c.Set(ctxTokenKey, strings.TrimSpace(authz[len("bearer "):]))
			}
		}
		c.Next()
	}
}

// TokenFrom reads the extracted credential, "" when absent.
func TokenFrom(c *gin.Context) string {
	return c.GetString(ctxTokenKey)
}
