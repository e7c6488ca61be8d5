package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuntasinaja/tuntasinaja/internal/models"
)

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
}

func TestOpenSQLiteFileAndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tuntasinaja.db")

	db, err := Open(Config{Driver: "sqlite", Path: path, MaxOpenConns: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, Ping(context.Background(), db))
	require.NoError(t, AutoMigrate(db))

	for _, table := range []interface{}{
		&models.User{},
		&models.DeviceToken{},
		&models.WebPushSubscription{},
		&models.UserSettings{},
		&models.Thread{},
		&models.Comment{},
		&models.History{},
		&models.ClassSchedule{},
		&models.Notification{},
		&models.Announcement{},
		&models.AnnouncementRead{},
		&models.CacheEntry{},
	} {
		require.True(t, db.Migrator().HasTable(table), "missing table for %T", table)
	}
}

func TestDeleteUserCascadesToDevices(t *testing.T) {
	db, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "cascade.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	require.NoError(t, AutoMigrate(db))

	user := models.User{Name: "Siti", Email: "siti@example.com"}
	require.NoError(t, db.Create(&user).Error)
	require.NoError(t, db.Create(&models.DeviceToken{Token: "tok-1", UserID: user.ID}).Error)
	require.NoError(t, db.Create(&models.WebPushSubscription{Endpoint: "https://push.example/1", P256dh: "k", Auth: "a", UserID: user.ID}).Error)

	require.NoError(t, db.Delete(&user).Error)

	var tokens, subs int64
	require.NoError(t, db.Model(&models.DeviceToken{}).Count(&tokens).Error)
	require.NoError(t, db.Model(&models.WebPushSubscription{}).Count(&subs).Error)
	require.Zero(t, tokens)
	require.Zero(t, subs)
}

func TestAutoMigrateNilHandle(t *testing.T) {
	require.Error(t, AutoMigrate(nil))
	require.Error(t, Ping(context.Background(), nil))
	require.NoError(t, Close(nil))
}
