package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tuntasinaja/tuntasinaja/internal/services"
	"github.com/tuntasinaja/tuntasinaja/pkg/errors"
	"github.com/tuntasinaja/tuntasinaja/pkg/response"
)

// AnnouncementHandler posts and lists class announcements.
type AnnouncementHandler struct {
	announcements *services.AnnouncementService
}

// NewAnnouncementHandler constructs an announcement handler.
func NewAnnouncementHandler(announcements *services.AnnouncementService) (*AnnouncementHandler, error) {
	if announcements == nil {
		return nil, fmt.Errorf("announcement handler: announcement service is required")
	}
	return &AnnouncementHandler{announcements: announcements}, nil
}

// List returns the announcements visible to the caller.
func (h *AnnouncementHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	views, err := h.announcements.List(requestContext(c), user)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, views)
}

// Create posts an announcement and notifies the target class.
func (h *AnnouncementHandler) Create(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.CreateAnnouncementInput
	if !bindAndValidate(c, &req) {
		return
	}

	row, err := h.announcements.Create(requestContext(c), user, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, row)
}

// MarkRead records that the caller has seen an announcement.
func (h *AnnouncementHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	id, ok := announcementParam(c)
	if !ok {
		return
	}

	if err := h.announcements.MarkRead(requestContext(c), userID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"announcement_id": id, "read": true})
}

// Delete removes an announcement.
func (h *AnnouncementHandler) Delete(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	id, ok := announcementParam(c)
	if !ok {
		return
	}

	if err := h.announcements.Delete(requestContext(c), user, id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"announcement_id": id, "deleted": true})
}

func announcementParam(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		response.Error(c, errors.NewBadRequest("announcement id is required"))
		return "", false
	}
	return id, true
}
