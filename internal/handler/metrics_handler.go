package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oasistrek/tourops-api/internal/service"
)

// MetricsHandler serves the liveness probe and the Prometheus scrape
// endpoint.
type MetricsHandler struct {
	metrics *service.MetricsService
}

func NewMetricsHandler(metrics *service.MetricsService) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

// Health answers liveness probes. Readiness, which also pings the database,
// is wired separately in main.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "tourops-api"})
}

// Prometheus serves the metrics registry in exposition format.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}
