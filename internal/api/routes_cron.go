package api

import (
	"github.com/gin-gonic/gin"

	"github.com/tuntasinaja/tuntasinaja/internal/app"
	"github.com/tuntasinaja/tuntasinaja/internal/handlers"
	"github.com/tuntasinaja/tuntasinaja/internal/middleware"
)

// registerCronRoutes mounts the endpoints an external scheduler calls with
// the shared cron secret instead of a user token.
func registerCronRoutes(r *gin.Engine, cfg *app.Config, svc *Services) error {
	handler, err := handlers.NewCronHandler(svc.Reminders)
	if err != nil {
		return err
	}

	group := r.Group("/api/cron", middleware.CronSecret(cfg.Reminders.CronSecret))
	{
		group.POST("/deadline-reminders", handler.DeadlineReminders)
		group.POST("/schedule-reminders", handler.ScheduleReminders)
	}
	return nil
}
