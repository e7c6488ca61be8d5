package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tuntasinaja/tuntasinaja/internal/services"
	"github.com/tuntasinaja/tuntasinaja/pkg/response"
)

const (
	defaultTestTitle = "Tes Notifikasi"
	defaultTestBody  = "Notifikasi berhasil dikirim ke perangkatmu."
)

// PushHandler exposes push configuration, self tests and admin triggers.
type PushHandler struct {
	push      *services.PushService
	reminders *services.ReminderService
}

// NewPushHandler constructs a push handler.
func NewPushHandler(push *services.PushService, reminders *services.ReminderService) (*PushHandler, error) {
	if push == nil {
		return nil, fmt.Errorf("push handler: push service is required")
	}
	if reminders == nil {
		return nil, fmt.Errorf("push handler: reminder service is required")
	}
	return &PushHandler{push: push, reminders: reminders}, nil
}

type testPushRequest struct {
	Title string `json:"title" validate:"omitempty,max=255"`
	Body  string `json:"body" validate:"omitempty,max=1000"`
}

// VAPIDPublicKey returns the application server key browsers subscribe with.
func (h *PushHandler) VAPIDPublicKey(c *gin.Context) {
	key := h.push.VAPIDPublicKey()
	if key == "" {
		response.Error(c, services.ErrPushDisabled.WithMessage("Web push is not configured"))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"public_key": key})
}

// Test sends a notification to every device of the caller, ignoring preferences.
func (h *PushHandler) Test(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req testPushRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	result, err := h.push.SendToUser(requestContext(c), services.UserPushInput{
		UserID: userID,
		Title:  defaultIfBlank(req.Title, defaultTestTitle),
		Body:   defaultIfBlank(req.Body, defaultTestBody),
		Type:   services.NotificationTest,
		Force:  true,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// Trigger runs a deadline or schedule reminder for the listed classes now.
func (h *PushHandler) Trigger(c *gin.Context) {
	var req services.ManualPushInput
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.reminders.TriggerManual(requestContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

func defaultIfBlank(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}
