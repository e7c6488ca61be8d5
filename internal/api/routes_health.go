package api

import (
	"github.com/gin-gonic/gin"

	"github.com/tuntasinaja/tuntasinaja/internal/handlers"
	"github.com/tuntasinaja/tuntasinaja/internal/monitoring"
)

func registerHealthRoutes(r *gin.Engine, svc *Services) {
	manager := svc.Health
	if manager == nil {
		manager = monitoring.NewHealthManager()
	}

	for _, router := range []gin.IRouter{r, r.Group("/api")} {
		router.GET("/health", handlers.Health(manager))
		router.GET("/health/live", handlers.Liveness(manager))
	}
}
