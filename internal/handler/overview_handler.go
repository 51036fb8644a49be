package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oasistrek/tourops-api/internal/dto"
	"github.com/oasistrek/tourops-api/internal/middleware"
	appErrors "github.com/oasistrek/tourops-api/pkg/errors"
	"github.com/oasistrek/tourops-api/pkg/response"
)

type overviewService interface {
	Summary(ctx context.Context) (*dto.OverviewResponse, bool, error)
}

// OverviewHandler wires the overview service to HTTP endpoints.
type OverviewHandler struct {
	service overviewService
}

// NewOverviewHandler constructs the handler.
func NewOverviewHandler(service overviewService) *OverviewHandler {
	return &OverviewHandler{service: service}
}

// Summary godoc
// @Summary Back-office overview
// @Description Status counts across rosters plus the most recent pending requests
// @Tags Overview
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /overview [get]
func (h *OverviewHandler) Summary(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	start := time.Now()
	summary, cacheHit, err := h.service.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.MarkCacheHit(c, cacheHit)
	meta := middleware.Meta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, summary, nil, meta)
}
