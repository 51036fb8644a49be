package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oasistrek/tourops-api/internal/models"
	"github.com/oasistrek/tourops-api/internal/service"
	appErrors "github.com/oasistrek/tourops-api/pkg/errors"
	"github.com/oasistrek/tourops-api/pkg/response"
)

// DriverHandler exposes driver roster endpoints.
type DriverHandler struct {
	drivers *service.DriverService
}

// NewDriverHandler constructs DriverHandler.
func NewDriverHandler(drivers *service.DriverService) *DriverHandler {
	return &DriverHandler{drivers: drivers}
}

// List godoc
// @Summary List drivers
// @Tags Drivers
// @Produce json
// @Param status query string false "Filter by status"
// @Param search query string false "Search by name or phone"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /drivers [get]
func (h *DriverHandler) List(c *gin.Context) {
	var filter models.DriverFilter
	filter.Status = strings.TrimSpace(c.Query("status"))
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	drivers, pagination, err := h.drivers.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, drivers, pagination)
}

// Get godoc
// @Summary Get driver detail
// @Tags Drivers
// @Produce json
// @Param id path string true "Driver ID"
// @Success 200 {object} response.Envelope
// @Router /drivers/{id} [get]
func (h *DriverHandler) Get(c *gin.Context) {
	driver, err := h.drivers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, driver, nil)
}

// Create godoc
// @Summary Add driver to roster
// @Tags Drivers
// @Accept json
// @Produce json
// @Param payload body service.CreateDriverRequest true "Driver payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /drivers [post]
func (h *DriverHandler) Create(c *gin.Context) {
	var req service.CreateDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	driver, err := h.drivers.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, driver)
}

// Update godoc
// @Summary Update driver
// @Tags Drivers
// @Accept json
// @Produce json
// @Param id path string true "Driver ID"
// @Param payload body service.UpdateDriverRequest true "Driver payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /drivers/{id} [put]
func (h *DriverHandler) Update(c *gin.Context) {
	var req service.UpdateDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	driver, err := h.drivers.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, driver, nil)
}
