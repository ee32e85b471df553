package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/danuarta/mediaportal-api/internal/dto"
	"github.com/danuarta/mediaportal-api/internal/models"
	"github.com/danuarta/mediaportal-api/internal/service"
	appErrors "github.com/danuarta/mediaportal-api/pkg/errors"
	"github.com/danuarta/mediaportal-api/pkg/response"
)

// MediaHandler exposes media library endpoints.
type MediaHandler struct {
	media *service.MediaService
}

// NewMediaHandler constructs MediaHandler.
func NewMediaHandler(media *service.MediaService) *MediaHandler {
	return &MediaHandler{media: media}
}

// Upload godoc
// @Summary Upload media files
// @Description Upload one or more photos/videos with shared metadata
// @Tags Media
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Title"
// @Param description formData string false "Description"
// @Param assigned_to formData string false "Audience: a student id or all (admin only)"
// @Param files formData file true "Files to upload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /media [post]
func (h *MediaHandler) Upload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreateMediaRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid media payload"))
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "multipart form required"))
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		files = form.File["file"]
	}

	result, err := h.media.Upload(c.Request.Context(), claims, req, files)
	if err != nil {
		response.Error(c, err)
		return
	}

	status := http.StatusCreated
	if result.Uploaded == 0 {
		status = http.StatusBadRequest
	}
	response.JSON(c, status, result, nil)
}

// List godoc
// @Summary List media
// @Description Admin sees the full library with filters; students see what
// the visibility rule allows
// @Tags Media
// @Produce json
// @Param status query string false "Filter by moderation status (admin)"
// @Param kind query string false "Filter by kind (admin)"
// @Param assigned_to query string false "Filter by audience (admin)"
// @Param search query string false "Search title/description (admin)"
// @Param page query int false "Page (admin)"
// @Param limit query int false "Page size (admin)"
// @Success 200 {object} response.Envelope
// @Router /media [get]
func (h *MediaHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if claims.Role != models.RoleAdmin {
		items, err := h.media.ListForStudent(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, items, nil)
		return
	}

	var filter models.MediaFilter
	filter.Status = models.MediaStatus(c.Query("status"))
	filter.Kind = models.MediaKind(c.Query("kind"))
	filter.AssignedTo = c.Query("assigned_to")
	filter.UploadedBy = c.Query("uploaded_by")
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	items, pagination, err := h.media.ListAdmin(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get a media item
// @Tags Media
// @Produce json
// @Param id path string true "Media ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /media/{id} [get]
func (h *MediaHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	item, err := h.media.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, item, nil)
}

// Moderate godoc
// @Summary Approve or reject a media item
// @Tags Media
// @Accept json
// @Produce json
// @Param id path string true "Media ID"
// @Param payload body dto.ModerateMediaRequest true "Moderation decision"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /media/{id}/status [patch]
func (h *MediaHandler) Moderate(c *gin.Context) {
	var req dto.ModerateMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid moderation payload"))
		return
	}

	claims := claimsFromContext(c)
	actorID := ""
	if claims != nil {
		actorID = claims.UserID
	}

	item, err := h.media.Moderate(c.Request.Context(), actorID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete a media item
// @Description Admin deletes anything; a student deletes own non-approved items
// @Tags Media
// @Produce json
// @Param id path string true "Media ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /media/{id} [delete]
func (h *MediaHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.media.Delete(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
