package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tuntasinaja/tuntasinaja/internal/api"
	"github.com/tuntasinaja/tuntasinaja/internal/app"
	"github.com/tuntasinaja/tuntasinaja/internal/app/maintenance"
	iauth "github.com/tuntasinaja/tuntasinaja/internal/auth"
	"github.com/tuntasinaja/tuntasinaja/internal/cache"
	"github.com/tuntasinaja/tuntasinaja/internal/database"
	"github.com/tuntasinaja/tuntasinaja/internal/middleware"
	"github.com/tuntasinaja/tuntasinaja/internal/monitoring/checks"
	"github.com/tuntasinaja/tuntasinaja/internal/push"
	"github.com/tuntasinaja/tuntasinaja/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Cache     *cache.DatabaseStore
	Services  *api.Services
	Scheduler *maintenance.Scheduler
	RateStore middleware.RateStore
	Router    *gin.Engine
}

// bootstrapRuntime initialises the database, push providers, services, the
// reminder scheduler and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}
	stack.Cache = cache.NewDatabaseStore(stack.DB)

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	senders, err := push.NewSenders(ctx, cfg.Push.SenderOptions())
	if err != nil {
		return nil, fmt.Errorf("initialise push senders: %w", err)
	}
	log.Info("push providers ready",
		zap.Bool("enabled", cfg.Push.Enabled),
		zap.String("native", senders.Native.Name()),
		zap.Bool("webpush", senders.Web.PublicKey() != ""),
	)

	stack.Services, err = api.NewServices(stack.DB, cfg, senders)
	if err != nil {
		return nil, fmt.Errorf("initialise services: %w", err)
	}

	var reminders maintenance.ReminderRunner
	if cfg.Reminders.Enabled {
		reminders = stack.Services.Reminders
	}
	stack.Scheduler = maintenance.NewScheduler(reminders, stack.Cache,
		maintenance.WithLocation(cfg.Reminders.Location()),
		maintenance.WithDeadlineSchedule(cfg.Reminders.DeadlineSchedule),
		maintenance.WithScheduleSchedule(cfg.Reminders.ScheduleSchedule),
		maintenance.WithCleanupSchedule(cfg.Reminders.CacheCleanup),
		maintenance.WithClaims(stack.Cache),
	)
	if err := stack.Scheduler.Start(); err != nil {
		return nil, fmt.Errorf("start scheduler: %w", err)
	}
	stack.Services.Health.RegisterReadiness(checks.Maintenance(stack.Scheduler, 0, nil))

	stack.RateStore = newRateStore(ctx, cfg.RateLimit, stack.Cache)

	stack.Router, err = api.NewRouter(stack.DB, jwtSvc, cfg, stack.Services, stack.RateStore)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// newRateStore keeps counters in the database cache table unless memory is
// requested. Memory counters are per process.
func newRateStore(ctx context.Context, cfg app.RateLimitConfig, store *cache.DatabaseStore) middleware.RateStore {
	if strings.EqualFold(strings.TrimSpace(cfg.Store), "memory") || store == nil {
		return middleware.NewMemoryRateStore(ctx)
	}
	return middleware.NewDatabaseRateStore(store)
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Scheduler != nil {
		stopCtx := s.Scheduler.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
			log.Warn("scheduler jobs still running at shutdown")
		}
	}

	if s.Services != nil && s.Services.Tasks != nil {
		if err := s.Services.Tasks.Shutdown(ctx); err != nil {
			log.Warn("background notifications did not finish", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if err := database.Close(db); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
