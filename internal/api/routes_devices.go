package api

import (
	"github.com/gin-gonic/gin"

	"github.com/tuntasinaja/tuntasinaja/internal/handlers"
)

func registerDeviceRoutes(api *gin.RouterGroup, svc *Services) error {
	handler, err := handlers.NewDeviceHandler(svc.Devices)
	if err != nil {
		return err
	}

	group := api.Group("/devices")
	{
		group.GET("", handler.List)
		group.POST("/tokens", handler.RegisterToken)
		group.DELETE("/tokens", handler.UnregisterToken)
		group.POST("/web-push", handler.RegisterWebPush)
		group.DELETE("/web-push", handler.UnregisterWebPush)
	}
	return nil
}
