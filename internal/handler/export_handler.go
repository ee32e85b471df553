package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/danuarta/mediaportal-api/internal/models"
	"github.com/danuarta/mediaportal-api/internal/service"
	"github.com/danuarta/mediaportal-api/pkg/response"
)

// ExportHandler streams roster and media reports.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Roster godoc
// @Summary Export the roster
// @Tags Exports
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Param class query string false "Filter by class"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /exports/roster [get]
func (h *ExportHandler) Roster(c *gin.Context) {
	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}

	filter := models.StudentFilter{Class: c.Query("class"), Section: c.Query("section")}
	doc, err := h.exports.RosterReport(c.Request.Context(), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Download(c, doc.Filename, doc.ContentType, doc.Data)
}

// Media godoc
// @Summary Export the media library
// @Tags Exports
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Param status query string false "Filter by moderation status"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /exports/media [get]
func (h *ExportHandler) Media(c *gin.Context) {
	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}

	filter := models.MediaFilter{
		Status: models.MediaStatus(c.Query("status")),
		Kind:   models.MediaKind(c.Query("kind")),
	}
	doc, err := h.exports.MediaReport(c.Request.Context(), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Download(c, doc.Filename, doc.ContentType, doc.Data)
}
