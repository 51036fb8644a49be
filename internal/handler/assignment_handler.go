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

// AssignmentHandler exposes tour assignment endpoints.
type AssignmentHandler struct {
	assignments *service.AssignmentService
	feed        *realtime.Feed
}

// NewAssignmentHandler constructs AssignmentHandler.
func NewAssignmentHandler(assignments *service.AssignmentService, feed *realtime.Feed) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments, feed: feed}
}

// List godoc
// @Summary List assignments
// @Description Assignments joined with tourist and guide display names
// @Tags Assignments
// @Produce json
// @Param status query string false "Filter by status (pending, active, completed)"
// @Param touristId query string false "Filter by tourist"
// @Param guideId query string false "Filter by guide"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /assignments [get]
func (h *AssignmentHandler) List(c *gin.Context) {
	var filter models.AssignmentFilter
	filter.Status = models.AssignmentStatus(strings.TrimSpace(c.Query("status")))
	filter.TouristID = strings.TrimSpace(c.Query("touristId"))
	filter.GuideID = strings.TrimSpace(c.Query("guideId"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	assignments, pagination, err := h.assignments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, pagination, versionMeta(h.feed, models.CollectionAssignments))
}

// Create godoc
// @Summary Create assignment
// @Description Explicit create with tour name and date range
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body service.CreateAssignmentRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assignments [post]
func (h *AssignmentHandler) Create(c *gin.Context) {
	var req service.CreateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	assignment, err := h.assignments.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// UpdateStatus godoc
// @Summary Update assignment status
// @Description Moves the assignment along pending -> active -> completed
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body service.UpdateAssignmentStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assignments/{id}/status [patch]
func (h *AssignmentHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateAssignmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	assignment, err := h.assignments.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// Delete godoc
// @Summary Delete assignment
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 204 "No Content"
// @Failure 404 {object} response.Envelope
// @Router /assignments/{id} [delete]
func (h *AssignmentHandler) Delete(c *gin.Context) {
	if err := h.assignments.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
