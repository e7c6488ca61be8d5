package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/tuntasinaja/tuntasinaja/internal/app"
	iauth "github.com/tuntasinaja/tuntasinaja/internal/auth"
	"github.com/tuntasinaja/tuntasinaja/internal/handlers"
	"github.com/tuntasinaja/tuntasinaja/internal/middleware"
)

// NewRouter builds the Gin engine, wires middleware and registers every route.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, svc *Services, rateStore middleware.RateStore) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if svc == nil {
		return nil, fmt.Errorf("services must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())

	registerHealthRoutes(r, svc)
	registerMonitoringRoutes(r, cfg)

	realtimeHandler := handlers.NewRealtimeHandler(svc.Hub, jwt, db)
	// The stream authenticates itself from the query string.
	r.GET("/api/notifications/stream", realtimeHandler.Stream)

	if err := registerCronRoutes(r, cfg, svc); err != nil {
		return nil, err
	}

	api := r.Group("/api")
	api.Use(middleware.Auth(jwt, db))
	if cfg.RateLimit.Enabled {
		api.Use(rateLimits(rateStore, cfg.RateLimit))
	}

	if err := registerDeviceRoutes(api, svc); err != nil {
		return nil, err
	}
	if err := registerPushRoutes(api, svc); err != nil {
		return nil, err
	}
	if err := registerSettingsRoutes(api, svc); err != nil {
		return nil, err
	}
	if err := registerNotificationRoutes(api, svc); err != nil {
		return nil, err
	}
	if err := registerThreadRoutes(api, svc); err != nil {
		return nil, err
	}
	if err := registerScheduleRoutes(api, svc); err != nil {
		return nil, err
	}
	if err := registerAnnouncementRoutes(api, svc); err != nil {
		return nil, err
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

// rateLimits applies the query window to reads and the mutation window to
// everything else, with separate counters.
func rateLimits(store middleware.RateStore, cfg app.RateLimitConfig) gin.HandlerFunc {
	query := middleware.RateLimit(store, middleware.RateLimitOptions{
		Scope:  "query",
		Max:    cfg.Query.Max,
		Window: cfg.Query.Window,
	})
	mutation := middleware.RateLimit(store, middleware.RateLimitOptions{
		Scope:  "mutation",
		Max:    cfg.Mutation.Max,
		Window: cfg.Mutation.Window,
	})

	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			query(c)
		default:
			mutation(c)
		}
	}
}

func registerMonitoringRoutes(r *gin.Engine, cfg *app.Config) {
	prom := cfg.Monitoring.Prometheus
	if !prom.Enabled {
		return
	}
	endpoint := strings.TrimSpace(prom.Endpoint)
	if endpoint == "" {
		endpoint = "/metrics"
	}
	r.GET(endpoint, gin.WrapH(promhttp.Handler()))
}
