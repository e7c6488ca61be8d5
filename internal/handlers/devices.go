package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tuntasinaja/tuntasinaja/internal/services"
	"github.com/tuntasinaja/tuntasinaja/pkg/response"
)

// DeviceHandler registers native push tokens and browser push subscriptions.
type DeviceHandler struct {
	devices *services.DeviceService
}

// NewDeviceHandler constructs a device handler.
func NewDeviceHandler(devices *services.DeviceService) (*DeviceHandler, error) {
	if devices == nil {
		return nil, fmt.Errorf("device handler: device service is required")
	}
	return &DeviceHandler{devices: devices}, nil
}

type unregisterTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// webPushRequest accepts the browser's PushSubscription.toJSON() shape as well
// as flat key fields.
type webPushRequest struct {
	Endpoint string `json:"endpoint" validate:"required,url,max=1024"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
	P256dh    string `json:"p256dh"`
	Auth      string `json:"auth"`
	UserAgent string `json:"user_agent"`
}

func (r webPushRequest) input(userAgent string) services.RegisterWebPushInput {
	in := services.RegisterWebPushInput{
		Endpoint:  strings.TrimSpace(r.Endpoint),
		P256dh:    strings.TrimSpace(r.P256dh),
		Auth:      strings.TrimSpace(r.Auth),
		UserAgent: strings.TrimSpace(r.UserAgent),
	}
	if in.P256dh == "" {
		in.P256dh = strings.TrimSpace(r.Keys.P256dh)
	}
	if in.Auth == "" {
		in.Auth = strings.TrimSpace(r.Keys.Auth)
	}
	if in.UserAgent == "" {
		in.UserAgent = userAgent
	}
	if len(in.UserAgent) > 512 {
		in.UserAgent = in.UserAgent[:512]
	}
	return in
}

type unregisterWebPushRequest struct {
	Endpoint string `json:"endpoint" validate:"required"`
}

// List returns the caller's registered tokens and subscriptions.
func (h *DeviceHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	summary, err := h.devices.List(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, summary)
}

// RegisterToken stores a native push token for the caller.
func (h *DeviceHandler) RegisterToken(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.RegisterTokenInput
	if !bindAndValidate(c, &req) {
		return
	}

	token, err := h.devices.RegisterToken(requestContext(c), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, token)
}

// UnregisterToken removes one of the caller's native tokens.
func (h *DeviceHandler) UnregisterToken(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req unregisterTokenRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.devices.UnregisterToken(requestContext(c), userID, req.Token); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"unregistered": true})
}

// RegisterWebPush stores a browser push subscription for the caller.
func (h *DeviceHandler) RegisterWebPush(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req webPushRequest
	if !bindAndValidate(c, &req) {
		return
	}

	input := req.input(c.Request.UserAgent())
	if !validate(c, &input) {
		return
	}

	sub, err := h.devices.RegisterWebPush(requestContext(c), userID, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, sub)
}

// UnregisterWebPush removes one of the caller's browser subscriptions.
func (h *DeviceHandler) UnregisterWebPush(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req unregisterWebPushRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.devices.UnregisterWebPush(requestContext(c), userID, req.Endpoint); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"unregistered": true})
}
