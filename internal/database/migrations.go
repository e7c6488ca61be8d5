package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tuntasinaja/tuntasinaja/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.UserSettings{},
		&models.DeviceToken{},
		&models.WebPushSubscription{},
		&models.Thread{},
		&models.Comment{},
		&models.History{},
		&models.ClassSchedule{},
		&models.Notification{},
		&models.Announcement{},
		&models.AnnouncementRead{},
		&models.CacheEntry{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
