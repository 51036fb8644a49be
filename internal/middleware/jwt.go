package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oasistrek/tourops-api/internal/service"
	appErrors "github.com/oasistrek/tourops-api/pkg/errors"
	"github.com/oasistrek/tourops-api/pkg/response"
)

// ContextUserKey is the gin context key holding the verified access claims.
const ContextUserKey = "currentUser"

// JWT rejects requests without a valid bearer token and stores the claims on
// the context for RBAC and the handlers.
func JWT(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abort(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing or malformed authorization header"))
			return
		}

		claims, err := auth.ValidateToken(token)
		if err != nil {
			abort(c, err)
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

// abort writes the error envelope and stops the chain.
func abort(c *gin.Context, err error) {
	response.Error(c, err)
	c.Abort()
}
