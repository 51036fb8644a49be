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

// TouristHandler exposes the tourist roster endpoints.
type TouristHandler struct {
	tourists    *service.TouristService
	assignments *service.AssignmentService
	feed        *realtime.Feed
}

// NewTouristHandler constructs TouristHandler.
func NewTouristHandler(tourists *service.TouristService, assignments *service.AssignmentService, feed *realtime.Feed) *TouristHandler {
	return &TouristHandler{tourists: tourists, assignments: assignments, feed: feed}
}

// List godoc
// @Summary List tourists
// @Description Tourist roster with status derived from the current assignment
// @Tags Tourists
// @Produce json
// @Param status query string false "Filter by derived status (active, pending, assigned)"
// @Param search query string false "Search by name, email or phone"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /tourists [get]
func (h *TouristHandler) List(c *gin.Context) {
	var filter models.TouristFilter
	filter.Status = models.TouristStatus(strings.TrimSpace(c.Query("status")))
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	tourists, pagination, err := h.tourists.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tourists, pagination, versionMeta(h.feed, models.CollectionTourists))
}

// Get godoc
// @Summary Get tourist detail
// @Tags Tourists
// @Produce json
// @Param id path string true "Tourist ID"
// @Success 200 {object} response.Envelope
// @Router /tourists/{id} [get]
func (h *TouristHandler) Get(c *gin.Context) {
	tourist, err := h.tourists.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tourist, nil)
}

// Me godoc
// @Summary Get own tourist profile
// @Description Roster view for the authenticated tourist account
// @Tags Tourists
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /tourists/me [get]
func (h *TouristHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	tourist, err := h.tourists.GetByUser(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tourist, nil)
}

// AssignGuide godoc
// @Summary Assign or reassign a guide
// @Description Upserts the tourist's current assignment to the given guide
// @Tags Tourists
// @Accept json
// @Produce json
// @Param id path string true "Tourist ID"
// @Param payload body handler.AssignGuidePayload true "Guide selection"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tourists/{id}/guide [put]
func (h *TouristHandler) AssignGuide(c *gin.Context) {
	var payload AssignGuidePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "guide_id is required"))
		return
	}

	upsert, err := h.assignments.AssignOrReassign(c.Request.Context(), c.Param("id"), payload.GuideID)
	if err != nil {
		response.Error(c, err)
		return
	}

	status := http.StatusOK
	if upsert.Created {
		status = http.StatusCreated
	}
	response.JSON(c, status, upsert.Assignment, nil, map[string]interface{}{"created": upsert.Created})
}

// AssignGuidePayload selects the guide for PUT /tourists/:id/guide.
type AssignGuidePayload struct {
	GuideID string `json:"guide_id" binding:"required"`
}

// versionMeta stamps the collection's current change-feed token into the
// response meta so clients can discard responses older than what they hold.
func versionMeta(feed *realtime.Feed, collection models.Collection) map[string]interface{} {
	return map[string]interface{}{"version": feed.Version(collection)}
}
