package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Header is the HTTP header carrying the request ID. Incoming values are
// trusted so upstream proxies can stitch traces across services.
const Header = "X-Request-ID"

const contextKey = "request_id"

// Middleware tags every request with an ID and echoes it on the response.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(contextKey, id)
		c.Writer.Header().Set(Header, id)
		c.Next()
	}
}

// Value reads the request ID from the Gin context. Empty when the middleware
// is not installed.
func Value(c *gin.Context) string {
	if v, ok := c.Get(contextKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
