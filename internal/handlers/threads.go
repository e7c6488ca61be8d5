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

// ThreadHandler posts homework and tracks completion.
type ThreadHandler struct {
	threads *services.ThreadService
}

// NewThreadHandler constructs a thread handler.
func NewThreadHandler(threads *services.ThreadService) (*ThreadHandler, error) {
	if threads == nil {
		return nil, fmt.Errorf("thread handler: thread service is required")
	}
	return &ThreadHandler{threads: threads}, nil
}

// Create posts a thread, or folds the comment into today's thread with the same title.
func (h *ThreadHandler) Create(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.CreateThreadInput
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.threads.Create(requestContext(c), user, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, result)
}

// AddComment attaches a sub-task to a thread.
func (h *ThreadHandler) AddComment(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	threadID, ok := threadParam(c)
	if !ok {
		return
	}

	var req services.AddCommentInput
	if !bindAndValidate(c, &req) {
		return
	}

	comment, err := h.threads.AddComment(requestContext(c), user, threadID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, comment)
}

// Complete marks the thread done for the caller.
func (h *ThreadHandler) Complete(c *gin.Context) {
	h.setCompletion(c, true)
}

// Uncomplete clears the caller's completion mark.
func (h *ThreadHandler) Uncomplete(c *gin.Context) {
	h.setCompletion(c, false)
}

func (h *ThreadHandler) setCompletion(c *gin.Context, done bool) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	threadID, ok := threadParam(c)
	if !ok {
		return
	}

	var err error
	if done {
		err = h.threads.Complete(requestContext(c), userID, threadID)
	} else {
		err = h.threads.Uncomplete(requestContext(c), userID, threadID)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"thread_id": threadID, "completed": done})
}

func threadParam(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		response.Error(c, errors.NewBadRequest("thread id is required"))
		return "", false
	}
	return id, true
}
