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

// GuideRequestHandler exposes triage endpoints for guide requests.
type GuideRequestHandler struct {
	requests *service.GuideRequestService
	tourists *service.TouristService
	feed     *realtime.Feed
}

// NewGuideRequestHandler constructs GuideRequestHandler.
func NewGuideRequestHandler(requests *service.GuideRequestService, tourists *service.TouristService, feed *realtime.Feed) *GuideRequestHandler {
	return &GuideRequestHandler{requests: requests, tourists: tourists, feed: feed}
}

// List godoc
// @Summary List guide requests
// @Description Requests joined with tourist and assigned guide names
// @Tags GuideRequests
// @Produce json
// @Param status query string false "Filter by status (pending, approved, rejected)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /guide-requests [get]
func (h *GuideRequestHandler) List(c *gin.Context) {
	filter := h.parseFilter(c)

	requests, pagination, err := h.requests.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination, versionMeta(h.feed, models.CollectionRequests))
}

// Get godoc
// @Summary Get guide request detail
// @Tags GuideRequests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /guide-requests/{id} [get]
func (h *GuideRequestHandler) Get(c *gin.Context) {
	request, err := h.requests.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Create godoc
// @Summary Submit guide request
// @Description Tourist submits a request for a guided tour
// @Tags GuideRequests
// @Accept json
// @Produce json
// @Param payload body service.CreateGuideRequestRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /guide-requests [post]
func (h *GuideRequestHandler) Create(c *gin.Context) {
	profile, err := h.requireTouristProfile(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req service.CreateGuideRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	request, err := h.requests.Create(c.Request.Context(), profile.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// Mine godoc
// @Summary List own guide requests
// @Description Requests submitted by the authenticated tourist
// @Tags GuideRequests
// @Produce json
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /guide-requests/mine [get]
func (h *GuideRequestHandler) Mine(c *gin.Context) {
	profile, err := h.requireTouristProfile(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	filter := h.parseFilter(c)
	requests, pagination, err := h.requests.ListForTourist(c.Request.Context(), profile.ID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// Respond godoc
// @Summary Respond to guide request
// @Description Approve or reject a pending request, optionally assigning a guide
// @Tags GuideRequests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body service.RespondGuideRequestRequest true "Response payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /guide-requests/{id}/respond [post]
func (h *GuideRequestHandler) Respond(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.RespondGuideRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	request, err := h.requests.Respond(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

func (h *GuideRequestHandler) parseFilter(c *gin.Context) models.GuideRequestFilter {
	var filter models.GuideRequestFilter
	filter.Status = models.RequestStatus(strings.TrimSpace(c.Query("status")))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")
	return filter
}

// requireTouristProfile resolves the profile row owned by the authenticated
// tourist. Requests are keyed by profile ID, not account ID.
func (h *GuideRequestHandler) requireTouristProfile(c *gin.Context) (*models.TouristDetail, error) {
	claims := claimsFromContext(c)
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	return h.tourists.GetByUser(c.Request.Context(), claims.UserID)
}
