package api

import (
	"github.com/gin-gonic/gin"

	"github.com/tuntasinaja/tuntasinaja/internal/handlers"
)

func registerAnnouncementRoutes(api *gin.RouterGroup, svc *Services) error {
	handler, err := handlers.NewAnnouncementHandler(svc.Announcements)
	if err != nil {
		return err
	}

	group := api.Group("/announcements")
	{
		group.GET("", handler.List)
		group.POST("", handler.Create)
		group.POST("/:id/read", handler.MarkRead)
		group.DELETE("/:id", handler.Delete)
	}
	return nil
}
