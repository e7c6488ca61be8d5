package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tuntasinaja/tuntasinaja/internal/services"
	"github.com/tuntasinaja/tuntasinaja/pkg/response"
)

// SettingsHandler reads and updates the caller's notification preferences.
type SettingsHandler struct {
	settings *services.NotificationSettingsService
}

// NewSettingsHandler constructs a settings handler.
func NewSettingsHandler(settings *services.NotificationSettingsService) (*SettingsHandler, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings handler: settings service is required")
	}
	return &SettingsHandler{settings: settings}, nil
}

// Get returns the caller's settings, creating defaults on first access.
func (h *SettingsHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	settings, err := h.settings.Get(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, settings)
}

// Update applies a partial update.
func (h *SettingsHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.UpdateSettingsInput
	if !bindAndValidate(c, &req) {
		return
	}

	settings, err := h.settings.Update(requestContext(c), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, settings)
}

// Reset restores the defaults.
func (h *SettingsHandler) Reset(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	settings, err := h.settings.Reset(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, settings)
}
