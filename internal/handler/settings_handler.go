package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/danuarta/mediaportal-api/internal/dto"
	"github.com/danuarta/mediaportal-api/internal/service"
	appErrors "github.com/danuarta/mediaportal-api/pkg/errors"
	"github.com/danuarta/mediaportal-api/pkg/response"
)

// SettingsHandler exposes the storage credential endpoints.
type SettingsHandler struct {
	settings *service.SettingsService
}

// NewSettingsHandler constructs SettingsHandler.
func NewSettingsHandler(settings *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// GetStorage godoc
// @Summary Resolve storage credentials
// @Description Walk the fallback chain and return the active credentials
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /settings/storage [get]
func (h *SettingsHandler) GetStorage(c *gin.Context) {
	resolved, err := h.settings.ResolveStorage(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, resolved, nil)
}

// UpdateStorage godoc
// @Summary Save storage credentials
// @Tags Settings
// @Accept json
// @Produce json
// @Param payload body dto.UpdateStorageSettingsRequest true "Credentials"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /settings/storage [put]
func (h *SettingsHandler) UpdateStorage(c *gin.Context) {
	var req dto.UpdateStorageSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid settings payload"))
		return
	}

	claims := claimsFromContext(c)
	actorID := ""
	if claims != nil {
		actorID = claims.UserID
	}

	saved, err := h.settings.UpdateStorage(c.Request.Context(), actorID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, saved, nil)
}
