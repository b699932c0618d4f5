package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/gatherin/backend/pkg/response"
)

// RequireRole returns a middleware that allows only the given roles.
// Must run after JWT so the role claim is in context.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		role, ok := c.Get(ContextUserRole)
		if !ok || !allowed[role.(string)] {
			response.Forbidden(c, "insufficient role")
			c.Abort()
			return
		}
		c.Next()
	}
}
