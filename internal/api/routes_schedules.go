package api

import (
	"github.com/gin-gonic/gin"

	"github.com/tuntasinaja/tuntasinaja/internal/handlers"
	"github.com/tuntasinaja/tuntasinaja/internal/middleware"
)

func registerScheduleRoutes(api *gin.RouterGroup, svc *Services) error {
	handler, err := handlers.NewScheduleHandler(svc.Schedules)
	if err != nil {
		return err
	}

	group := api.Group("/schedules")
	{
		group.GET("/:kelas", handler.List)
		group.PUT("/:kelas/:day", middleware.RequireClassLeader(), handler.ReplaceDay)
	}
	return nil
}
