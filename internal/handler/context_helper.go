package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/oasistrek/tourops-api/internal/middleware"
	"github.com/oasistrek/tourops-api/internal/models"
)

// claimsFromContext pulls the verified access claims set by the JWT
// middleware. Nil means the route was mounted without it.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	raw, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil
	}
	claims, _ := raw.(*models.JWTClaims)
	return claims
}
