package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oasistrek/tourops-api/internal/service"
)

// Metrics feeds request counts and latencies into the metrics service. The
// scrape endpoint itself is not observed.
func Metrics(metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil || c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		started := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(started))
	}
}
