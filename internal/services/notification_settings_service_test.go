package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tuntasinaja/tuntasinaja/internal/database/testutil"
	"github.com/tuntasinaja/tuntasinaja/internal/models"
)

func TestNotificationSettingsGetCreatesDefaults(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	createUser(t, db, "budi", "X RPL 1", false)

	svc, err := NewNotificationSettingsService(db)
	require.NoError(t, err)

	settings, err := svc.Get(context.Background(), "budi")
	require.NoError(t, err)
	require.True(t, settings.PushNotificationsEnabled)
	require.True(t, settings.TaskNotificationsEnabled)
	require.False(t, settings.DNDEnabled)
	require.NotNil(t, settings.ReminderTime)
	require.Equal(t, models.DefaultReminderTime, *settings.ReminderTime)

	again, err := svc.Get(context.Background(), "budi")
	require.NoError(t, err)
	require.Equal(t, settings.ID, again.ID)
}

func TestNotificationSettingsUpdateIsPartial(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	createUser(t, db, "budi", "X RPL 1", false)

	svc, err := NewNotificationSettingsService(db)
	require.NoError(t, err)
	ctx := context.Background()

	updated, err := svc.Update(ctx, "budi", UpdateSettingsInput{
		TaskNotificationsEnabled: boolPtr(false),
		DNDEnabled:               boolPtr(true),
		DNDStartTime:             strPtr("22:00"),
		DNDEndTime:               strPtr("06:00"),
	})
	require.NoError(t, err)
	require.False(t, updated.TaskNotificationsEnabled)
	require.True(t, updated.CommentNotificationsEnabled)
	require.True(t, updated.DNDEnabled)
	require.Equal(t, "22:00", *updated.DNDStartTime)

	updated, err = svc.Update(ctx, "budi", UpdateSettingsInput{ReminderTime: strPtr("")})
	require.NoError(t, err)
	require.Nil(t, updated.ReminderTime)
	require.False(t, updated.TaskNotificationsEnabled)

	_, err = svc.Update(ctx, "budi", UpdateSettingsInput{DNDEndTime: strPtr("25:00")})
	require.Error(t, err)
}

func TestNotificationSettingsReset(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	createUser(t, db, "budi", "X RPL 1", false)
	saveSettings(t, db, "budi", func(s *models.UserSettings) {
		s.PushNotificationsEnabled = false
	})

	svc, err := NewNotificationSettingsService(db)
	require.NoError(t, err)

	settings, err := svc.Reset(context.Background(), "budi")
	require.NoError(t, err)
	require.True(t, settings.PushNotificationsEnabled)

	var count int64
	require.NoError(t, db.Model(&models.UserSettings{}).Where("user_id = ?", "budi").Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestEligibleUsersAppliesRules(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	for _, id := range []string{"ani", "budi", "citra", "dewi"} {
		createUser(t, db, id, "X RPL 1", false)
	}
	saveSettings(t, db, "budi", func(s *models.UserSettings) {
		s.DeadlineReminderEnabled = false
	})
	saveSettings(t, db, "citra", func(s *models.UserSettings) {
		s.DNDEnabled = true
		s.DNDStartTime = strPtr("21:00")
		s.DNDEndTime = strPtr("05:00")
	})
	saveSettings(t, db, "dewi", func(s *models.UserSettings) {
		s.PushNotificationsEnabled = false
	})

	jakarta := time.FixedZone("WIB", 7*3600)
	// 16:30 UTC is 23:30 in Jakarta, inside citra's quiet hours.
	clock := func() time.Time { return time.Date(2026, 3, 2, 16, 30, 0, 0, time.UTC) }
	svc, err := NewNotificationSettingsService(db, WithSettingsLocation(jakarta), WithSettingsClock(clock))
	require.NoError(t, err)

	eligible := svc.EligibleUsers(context.Background(), []string{"ani", "budi", "citra", "dewi", "ani"}, NotificationDeadline)
	require.Len(t, eligible, 1)
	require.Contains(t, eligible, "ani")

	eligible = svc.EligibleUsers(context.Background(), []string{"ani", "budi", "citra", "dewi"}, NotificationTask)
	require.Len(t, eligible, 2)
	require.Contains(t, eligible, "budi")
}

func TestEligibleUsersFailsOpen(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	createUser(t, db, "budi", "X RPL 1", false)
	saveSettings(t, db, "budi", func(s *models.UserSettings) {
		s.PushNotificationsEnabled = false
	})
	require.NoError(t, db.Migrator().DropTable(&models.UserSettings{}))

	svc, err := NewNotificationSettingsService(db)
	require.NoError(t, err)

	eligible := svc.EligibleUsers(context.Background(), []string{"budi"}, NotificationTask)
	require.Contains(t, eligible, "budi")
}

func TestAllows(t *testing.T) {
	base := models.DefaultUserSettings("u")

	cases := []struct {
		name   string
		mutate func(*models.UserSettings)
		typ    NotificationType
		clock  string
		want   bool
	}{
		{"defaults", nil, NotificationTask, "12:00", true},
		{"global off", func(s *models.UserSettings) { s.PushNotificationsEnabled = false }, NotificationTest, "12:00", false},
		{"category off", func(s *models.UserSettings) { s.CommentNotificationsEnabled = false }, NotificationComment, "12:00", false},
		{"other category off", func(s *models.UserSettings) { s.CommentNotificationsEnabled = false }, NotificationTask, "12:00", true},
		{"overdue off", func(s *models.UserSettings) { s.OverdueReminderEnabled = false }, NotificationOverdue, "12:00", false},
		{"dnd same day inside", dnd("13:00", "15:00"), NotificationTask, "14:00", false},
		{"dnd same day outside", dnd("13:00", "15:00"), NotificationTask, "15:01", true},
		{"dnd overnight late", dnd("22:00", "06:00"), NotificationTask, "23:59", false},
		{"dnd overnight early", dnd("22:00", "06:00"), NotificationTask, "06:00", false},
		{"dnd overnight daytime", dnd("22:00", "06:00"), NotificationTask, "12:00", true},
		{"dnd without bounds", func(s *models.UserSettings) { s.DNDEnabled = true }, NotificationTask, "12:00", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			settings := base
			if tc.mutate != nil {
				tc.mutate(&settings)
			}
			require.Equal(t, tc.want, Allows(&settings, tc.typ, tc.clock))
		})
	}

	require.True(t, Allows(nil, NotificationTask, "12:00"))
}

func dnd(start, end string) func(*models.UserSettings) {
	return func(s *models.UserSettings) {
		s.DNDEnabled = true
		s.DNDStartTime = &start
		s.DNDEndTime = &end
	}
}
