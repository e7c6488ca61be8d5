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

// ScheduleHandler reads and edits class timetables.
type ScheduleHandler struct {
	schedules *services.ScheduleService
}

// NewScheduleHandler constructs a schedule handler.
func NewScheduleHandler(schedules *services.ScheduleService) (*ScheduleHandler, error) {
	if schedules == nil {
		return nil, fmt.Errorf("schedule handler: schedule service is required")
	}
	return &ScheduleHandler{schedules: schedules}, nil
}

// List returns the weekly timetable of a class.
func (h *ScheduleHandler) List(c *gin.Context) {
	kelas, ok := classParam(c)
	if !ok {
		return
	}

	days, err := h.schedules.ListForClass(requestContext(c), kelas)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"kelas": kelas, "days": days})
}

// ReplaceDay overwrites the subjects of one weekday.
func (h *ScheduleHandler) ReplaceDay(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	kelas, ok := classParam(c)
	if !ok {
		return
	}

	var req services.ReplaceDayInput
	if !bindAndValidate(c, &req) {
		return
	}

	day, err := h.schedules.ReplaceDay(requestContext(c), user, kelas, c.Param("day"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, day)
}

func classParam(c *gin.Context) (string, bool) {
	kelas := strings.TrimSpace(c.Param("kelas"))
	if kelas == "" {
		response.Error(c, errors.NewBadRequest("kelas is required"))
		return "", false
	}
	return kelas, true
}
