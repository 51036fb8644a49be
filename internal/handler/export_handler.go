package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oasistrek/tourops-api/internal/dto"
	"github.com/oasistrek/tourops-api/internal/service"
	appErrors "github.com/oasistrek/tourops-api/pkg/errors"
	"github.com/oasistrek/tourops-api/pkg/response"
)

// ExportHandler exposes roster export endpoints.
type ExportHandler struct {
	service *service.ExportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Generate godoc
// @Summary Generate roster export
// @Description Renders a dataset to CSV or PDF and returns a signed download URL
// @Tags Exports
// @Accept json
// @Produce json
// @Param payload body dto.ExportRequest true "Export request"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /exports [post]
func (h *ExportHandler) Generate(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "export service not configured"))
		return
	}
	var req dto.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Download godoc
// @Summary Download export file via signed token
// @Tags Exports
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exports/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "export service not configured"))
		return
	}
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.service.Download(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.SizeBytes, result.MimeType, result.File, nil)
}
