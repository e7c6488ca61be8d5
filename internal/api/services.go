package api

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/tuntasinaja/tuntasinaja/internal/app"
	"github.com/tuntasinaja/tuntasinaja/internal/monitoring"
	"github.com/tuntasinaja/tuntasinaja/internal/monitoring/checks"
	"github.com/tuntasinaja/tuntasinaja/internal/push"
	"github.com/tuntasinaja/tuntasinaja/internal/realtime"
	"github.com/tuntasinaja/tuntasinaja/internal/services"
)

// Services bundles the domain services the HTTP layer and the scheduler share.
type Services struct {
	Devices       *services.DeviceService
	Settings      *services.NotificationSettingsService
	Push          *services.PushService
	Notifications *services.NotificationService
	Threads       *services.ThreadService
	Announcements *services.AnnouncementService
	Schedules     *services.ScheduleService
	Reminders     *services.ReminderService
	Tasks         *services.Background
	Hub           *realtime.Hub
	Health        *monitoring.HealthManager
}

// NewServices wires every domain service from configuration and push senders.
func NewServices(db *gorm.DB, cfg *app.Config, senders push.Senders) (*Services, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	if senders.Native == nil {
		senders.Native = push.NoopNativeSender{}
	}
	if senders.Web == nil {
		senders.Web = push.NoopWebSender{}
	}

	loc := cfg.Reminders.Location()
	hub := realtime.NewHub(cfg.Server.AllowedOrigins...)
	tasks := services.NewBackground(cfg.Server.ShutdownTimeout)

	devices, err := services.NewDeviceService(db)
	if err != nil {
		return nil, err
	}
	settings, err := services.NewNotificationSettingsService(db, services.WithSettingsLocation(loc))
	if err != nil {
		return nil, err
	}
	pushSvc, err := services.NewPushService(devices, settings, senders,
		services.WithPushEnabled(cfg.Push.Enabled),
		services.WithDefaultLink(cfg.Push.DefaultLink),
	)
	if err != nil {
		return nil, err
	}
	inbox, err := services.NewNotificationService(db, hub)
	if err != nil {
		return nil, err
	}
	threads, err := services.NewThreadService(db, pushSvc, inbox, tasks, services.WithThreadLocation(loc))
	if err != nil {
		return nil, err
	}
	announcements, err := services.NewAnnouncementService(db, pushSvc, inbox, tasks)
	if err != nil {
		return nil, err
	}
	schedules, err := services.NewScheduleService(db)
	if err != nil {
		return nil, err
	}
	reminders, err := services.NewReminderService(db, pushSvc, schedules, services.ReminderOptions{
		Location:          loc,
		DeadlineWindow:    cfg.Reminders.DeadlineWindow,
		DeadlineLookahead: cfg.Reminders.DeadlineLookahead,
	})
	if err != nil {
		return nil, err
	}

	health := monitoring.NewHealthManager()
	health.RegisterReadiness(checks.Database(db, 0))
	health.RegisterReadiness(checks.Push(checks.PushState{
		Enabled:        cfg.Push.Enabled,
		NativeProvider: senders.Native.Name(),
		WebPush:        senders.Web.PublicKey() != "",
	}))
	health.RegisterLiveness(checks.Realtime(hub))

	return &Services{
		Devices:       devices,
		Settings:      settings,
		Push:          pushSvc,
		Notifications: inbox,
		Threads:       threads,
		Announcements: announcements,
		Schedules:     schedules,
		Reminders:     reminders,
		Tasks:         tasks,
		Hub:           hub,
		Health:        health,
	}, nil
}
