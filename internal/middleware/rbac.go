package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/oasistrek/tourops-api/internal/models"
	appErrors "github.com/oasistrek/tourops-api/pkg/errors"
)

// RBAC lets a request through when the authenticated role is on the allow
// list. Must run after JWT.
func RBAC(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		raw, ok := c.Get(ContextUserKey)
		if !ok {
			abort(c, appErrors.ErrUnauthorized)
			return
		}
		claims, ok := raw.(*models.JWTClaims)
		if !ok {
			abort(c, appErrors.ErrUnauthorized)
			return
		}

		if _, ok := allowed[claims.Role]; !ok {
			abort(c, appErrors.ErrForbidden)
			return
		}
		c.Next()
	}
}
