package api

import (
	"github.com/gin-gonic/gin"

	"github.com/tuntasinaja/tuntasinaja/internal/handlers"
)

func registerSettingsRoutes(api *gin.RouterGroup, svc *Services) error {
	handler, err := handlers.NewSettingsHandler(svc.Settings)
	if err != nil {
		return err
	}

	group := api.Group("/settings/notifications")
	{
		group.GET("", handler.Get)
		group.PATCH("", handler.Update)
		group.POST("/reset", handler.Reset)
	}
	return nil
}
