package middleware

import (
	"github.com/gin-gonic/gin"

	"smartfarm.io/farm/internal/authz"
	"smartfarm.io/farm/internal/domain"
)

// RequireRole returns middleware that lets the request through only when the
// principal set by JWTAuth holds role. A role failure is reported exactly
// like a missing session.
func RequireRole(role domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := GetPrincipal(c.Request.Context())
		if err := authz.Authorize(p, "", role); err != nil {
			abortUnauthorized(c, "Unauthorized")
			return
		}
		c.Next()
	}
}
