package middleware

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oasistrek/tourops-api/internal/models"
	"github.com/oasistrek/tourops-api/internal/repository"
)

// Audit records a row in audit_logs after each successful request on the
// wrapped route. Failed requests leave no row, the error envelope already
// tells that story.
func Audit(repo *repository.UserRepository, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now().UTC()
		c.Next()

		status := c.Writer.Status()
		if status >= 400 {
			return
		}

		entry := models.AuditLog{
			Action:    action,
			Resource:  resource,
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		}
		if raw, ok := c.Get(ContextUserKey); ok {
			if claims, ok := raw.(*models.JWTClaims); ok {
				entry.UserID = &claims.UserID
			}
		}
		if id := c.Param("id"); id != "" {
			entry.ResourceID = &id
		}

		entry.NewValues, _ = json.Marshal(map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  status,
			"latency": time.Since(started).Milliseconds(),
		})

		_ = repo.CreateAuditLog(c.Request.Context(), &entry)
	}
}
