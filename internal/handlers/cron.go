package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tuntasinaja/tuntasinaja/internal/services"
	"github.com/tuntasinaja/tuntasinaja/pkg/logger"
	"github.com/tuntasinaja/tuntasinaja/pkg/response"
)

// ReminderRunner runs the scheduled reminder jobs on demand.
type ReminderRunner interface {
	DeadlineReminders(ctx context.Context) (services.ReminderSummary, error)
	ScheduleReminders(ctx context.Context) (services.ReminderSummary, error)
}

// CronHandler lets an external scheduler trigger the reminder jobs.
type CronHandler struct {
	reminders ReminderRunner
}

// NewCronHandler constructs a cron handler.
func NewCronHandler(reminders ReminderRunner) (*CronHandler, error) {
	if reminders == nil {
		return nil, fmt.Errorf("cron handler: reminder runner is required")
	}
	return &CronHandler{reminders: reminders}, nil
}

// DeadlineReminders runs the deadline reminder job.
func (h *CronHandler) DeadlineReminders(c *gin.Context) {
	h.run(c, h.reminders.DeadlineReminders)
}

// ScheduleReminders runs the timetable reminder job.
func (h *CronHandler) ScheduleReminders(c *gin.Context) {
	h.run(c, h.reminders.ScheduleReminders)
}

// run reports partial failures inside the summary; only a run that produced
// nothing at all is an error response.
func (h *CronHandler) run(c *gin.Context, job func(context.Context) (services.ReminderSummary, error)) {
	summary, err := job(requestContext(c))
	if err != nil {
		logger.WithModule("cron").Warn("reminder job reported errors", zap.String("job", summary.Job), zap.Error(err))
		if len(summary.Classes) == 0 {
			response.Error(c, err)
			return
		}
	}
	response.Success(c, http.StatusOK, summary)
}
