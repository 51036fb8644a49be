package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oasistrek/tourops-api/internal/models"
	"github.com/oasistrek/tourops-api/internal/realtime"
	"github.com/oasistrek/tourops-api/internal/service"
	appErrors "github.com/oasistrek/tourops-api/pkg/errors"
	"github.com/oasistrek/tourops-api/pkg/response"
)

// GuideHandler exposes guide roster endpoints.
type GuideHandler struct {
	guides *service.GuideService
	feed   *realtime.Feed
}

// NewGuideHandler constructs GuideHandler.
func NewGuideHandler(guides *service.GuideService, feed *realtime.Feed) *GuideHandler {
	return &GuideHandler{guides: guides, feed: feed}
}

// List godoc
// @Summary List guides
// @Tags Guides
// @Produce json
// @Param status query string false "Filter by status (available, busy, offline)"
// @Param specialization query string false "Filter by specialization tag"
// @Param search query string false "Search by name or email"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /guides [get]
func (h *GuideHandler) List(c *gin.Context) {
	var filter models.GuideFilter
	filter.Status = models.GuideStatus(strings.TrimSpace(c.Query("status")))
	filter.Specialization = strings.TrimSpace(c.Query("specialization"))
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	guides, pagination, err := h.guides.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, guides, pagination, versionMeta(h.feed, models.CollectionGuides))
}

// Get godoc
// @Summary Get guide detail
// @Tags Guides
// @Produce json
// @Param id path string true "Guide ID"
// @Success 200 {object} response.Envelope
// @Router /guides/{id} [get]
func (h *GuideHandler) Get(c *gin.Context) {
	guide, err := h.guides.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, guide, nil)
}

// Create godoc
// @Summary Add guide to roster
// @Tags Guides
// @Accept json
// @Produce json
// @Param payload body service.CreateGuideRequest true "Guide payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /guides [post]
func (h *GuideHandler) Create(c *gin.Context) {
	var req service.CreateGuideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	guide, err := h.guides.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, guide)
}

// Update godoc
// @Summary Update guide roster fields
// @Tags Guides
// @Accept json
// @Produce json
// @Param id path string true "Guide ID"
// @Param payload body service.UpdateGuideRequest true "Guide payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /guides/{id} [put]
func (h *GuideHandler) Update(c *gin.Context) {
	var req service.UpdateGuideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	guide, err := h.guides.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, guide, nil)
}
