package api

import (
	"github.com/gin-gonic/gin"

	"github.com/tuntasinaja/tuntasinaja/internal/handlers"
)

func registerThreadRoutes(api *gin.RouterGroup, svc *Services) error {
	handler, err := handlers.NewThreadHandler(svc.Threads)
	if err != nil {
		return err
	}

	group := api.Group("/threads")
	{
		group.POST("", handler.Create)
		group.POST("/:id/comments", handler.AddComment)
		group.POST("/:id/complete", handler.Complete)
		group.DELETE("/:id/complete", handler.Uncomplete)
	}
	return nil
}
