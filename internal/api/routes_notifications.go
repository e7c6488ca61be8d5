package api

import (
	"github.com/gin-gonic/gin"

	"github.com/tuntasinaja/tuntasinaja/internal/handlers"
)

func registerNotificationRoutes(api *gin.RouterGroup, svc *Services) error {
	handler, err := handlers.NewNotificationHandler(svc.Notifications)
	if err != nil {
		return err
	}

	group := api.Group("/notifications")
	{
		group.GET("", handler.List)
		group.GET("/unread-count", handler.UnreadCount)
		group.POST("/read-all", handler.MarkAllRead)
		group.POST("/:id/read", handler.MarkRead)
		group.DELETE("/:id", handler.Delete)
	}
	return nil
}
