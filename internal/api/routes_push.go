package api

import (
	"github.com/gin-gonic/gin"

	"github.com/tuntasinaja/tuntasinaja/internal/handlers"
	"github.com/tuntasinaja/tuntasinaja/internal/middleware"
)

func registerPushRoutes(api *gin.RouterGroup, svc *Services) error {
	handler, err := handlers.NewPushHandler(svc.Push, svc.Reminders)
	if err != nil {
		return err
	}

	group := api.Group("/push")
	{
		group.GET("/vapid-public-key", handler.VAPIDPublicKey)
		group.POST("/test", handler.Test)
	}

	api.POST("/admin/push/trigger", middleware.RequireAdmin(), handler.Trigger)
	return nil
}
