// internal/handler/preferences_handler.go
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pos-print-bridge/internal/preferences"
	"pos-print-bridge/internal/utils"
)

// WebURLRequest sets the page shown by the shell
type WebURLRequest struct {
	URL string `json:"url" binding:"required"`
}

// PreferencesHandler exposes the saved printer preferences
type PreferencesHandler struct {
	store  *preferences.FileStore
	logger *utils.ServiceLogger
}

// NewPreferencesHandler creates a new preferences handler
func NewPreferencesHandler(store *preferences.FileStore, logger *zap.Logger) *PreferencesHandler {
	return &PreferencesHandler{
		store:  store,
		logger: utils.NewServiceLogger(logger, "preferences-handler"),
	}
}

// RegisterRoutes registers preference routes
func (h *PreferencesHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/preferences", h.GetPreferences)
	router.PUT("/preferences/web-url", h.SetWebURL)
}

// GetPreferences returns the saved preferences
// @Summary Get preferences
// @Tags Preferences
// @Produce json
// @Success 200 {object} utils.APIResponse{data=object} "Preferences retrieved"
// @Router /preferences [get]
func (h *PreferencesHandler) GetPreferences(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Preferences retrieved", h.store.Read(c.Request.Context()))
}

// SetWebURL stores the page URL, adding https:// when no scheme is given
// @Summary Set web URL
// @Tags Preferences
// @Accept json
// @Produce json
// @Param request body WebURLRequest true "Page URL"
// @Success 200 {object} utils.APIResponse{data=object{url=string}} "URL saved"
// @Failure 400 {object} utils.APIResponse "URL missing"
// @Failure 500 {object} utils.APIResponse "Write failed"
// @Router /preferences/web-url [put]
func (h *PreferencesHandler) SetWebURL(c *gin.Context) {
	var req WebURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "URL is required", err)
		return
	}
	if preferences.NormalizeWebURL(req.URL) == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "URL is required", nil)
		return
	}

	url, err := h.store.SetWebURL(c.Request.Context(), req.URL)
	if err != nil {
		h.logger.Error("Failed to save web URL", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to save web URL", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Web URL saved", gin.H{"url": url})
}
