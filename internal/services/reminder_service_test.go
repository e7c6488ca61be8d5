package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tuntasinaja/tuntasinaja/internal/database/testutil"
	"github.com/tuntasinaja/tuntasinaja/internal/models"
)

var wib = time.FixedZone("WIB", 7*3600)

func newReminderService(t *testing.T, db *gorm.DB, notifier ClassNotifier, now time.Time) *ReminderService {
	t.Helper()
	schedules, err := NewScheduleService(db)
	require.NoError(t, err)
	svc, err := NewReminderService(db, notifier, schedules, ReminderOptions{
		Location: wib,
		Now:      func() time.Time { return now },
	})
	require.NoError(t, err)
	return svc
}

func createThread(t *testing.T, db *gorm.DB, authorID, title string, date time.Time, deadline *time.Time) models.Thread {
	t.Helper()
	thread := models.Thread{Title: title, AuthorID: authorID, Date: date, Deadline: deadline}
	require.NoError(t, db.Create(&thread).Error)
	return thread
}

func TestDeadlineRemindersOncePerClass(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	// 19:10 in Jakarta.
	now := time.Date(2026, 3, 2, 12, 10, 0, 0, time.UTC)

	for _, id := range []string{"budi", "citra"} {
		createUser(t, db, id, "X RPL 1", false)
		saveSettings(t, db, id, nil)
	}
	createUser(t, db, "eka", "XI BC 1", false)
	saveSettings(t, db, "eka", func(s *models.UserSettings) { s.ReminderTime = strPtr("07:00") })

	soon := now.Add(5 * time.Hour)
	later := now.Add(48 * time.Hour)
	math := createThread(t, db, "budi", "Matematika", startOfDay(now, wib), &soon)
	createThread(t, db, "budi", "Fisika", startOfDay(now, wib), &later)
	createThread(t, db, "eka", "Ekonomi", startOfDay(now, wib), &soon)
	require.NoError(t, db.Create(&models.History{UserID: "budi", ThreadID: math.ID, CompletedDate: now}).Error)

	notifier := &recordingNotifier{}
	svc := newReminderService(t, db, notifier, now)

	summary, err := svc.DeadlineReminders(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Classes, 1)
	require.Equal(t, "X RPL 1", summary.Classes[0].Kelas)

	sent := notifier.sent()
	require.Len(t, sent, 1)
	require.Equal(t, NotificationDeadline, sent[0].Type)
	require.False(t, sent[0].Force)
	require.Equal(t, `Tugas "Matematika" deadline besok!`, sent[0].Body)
	require.Equal(t, math.ID, sent[0].Data["threadIds"])
}

func TestDeadlineRemindersSkipCompletedWork(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	createUser(t, db, "budi", "X RPL 1", false)
	saveSettings(t, db, "budi", nil)
	soon := now.Add(time.Hour)
	thread := createThread(t, db, "budi", "Kimia", startOfDay(now, wib), &soon)
	require.NoError(t, db.Create(&models.History{UserID: "budi", ThreadID: thread.ID, CompletedDate: now}).Error)

	notifier := &recordingNotifier{}
	summary, err := newReminderService(t, db, notifier, now).DeadlineReminders(context.Background())
	require.NoError(t, err)
	require.Empty(t, notifier.sent())
	require.Equal(t, SkipNothingDue, summary.Classes[0].Skipped)
}

func TestScheduleRemindersMaghribSlot(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	// Monday 18:02 in Jakarta; tomorrow is selasa.
	now := time.Date(2026, 3, 2, 11, 2, 0, 0, time.UTC)

	createUser(t, db, "budi", "X RPL 1", false)
	require.NoError(t, db.Create(&[]models.ClassSchedule{
		{Kelas: "X RPL 1", DayOfWeek: models.DaySelasa, Subject: "Matematika", Position: 0},
		{Kelas: "X RPL 1", DayOfWeek: models.DaySelasa, Subject: "Fisika", Position: 1},
		{Kelas: "XI BC 1", DayOfWeek: models.DayRabu, Subject: "Ekonomi", Position: 0},
	}).Error)
	createThread(t, db, "budi", "PR matematika bab 2", startOfDay(now, wib), nil)

	notifier := &recordingNotifier{}
	summary, err := newReminderService(t, db, notifier, now).ScheduleReminders(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Classes, 1)

	sent := notifier.sent()
	require.Len(t, sent, 1)
	require.Equal(t, "X RPL 1", sent[0].Kelas)
	require.Equal(t, NotificationSchedule, sent[0].Type)
	require.Equal(t, "Reminder Maghrib: Besok Ada Pelajaran!", sent[0].Title)
	require.Contains(t, sent[0].Body, "Selasa, 3 Maret 2026")
	require.Contains(t, sent[0].Body, "Matematika, Fisika")
	require.Equal(t, "true", sent[0].Data["hasIncompleteTasks"])
	require.Equal(t, "/?filter=Matematika%2CFisika", sent[0].Data["url"])
}

func TestScheduleRemindersOutsideSlot(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	noon := time.Date(2026, 3, 2, 5, 0, 0, 0, time.UTC)

	notifier := &recordingNotifier{}
	summary, err := newReminderService(t, db, notifier, noon).ScheduleReminders(context.Background())
	require.NoError(t, err)
	require.Equal(t, SkipNotReminderTime, summary.Skipped)
	require.Empty(t, notifier.sent())
}

func TestTriggerManual(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2026, 3, 2, 5, 0, 0, 0, time.UTC)

	createUser(t, db, "budi", "X RPL 1", false)
	soon := now.Add(3 * time.Hour)
	createThread(t, db, "budi", "Matematika", startOfDay(now, wib), &soon)
	require.NoError(t, db.Create(&models.ClassSchedule{Kelas: "X RPL 1", DayOfWeek: models.DaySelasa, Subject: "Seni", Position: 0}).Error)

	notifier := &recordingNotifier{}
	svc := newReminderService(t, db, notifier, now)
	ctx := context.Background()

	_, err := svc.TriggerManual(ctx, ManualPushInput{Category: "overdue", Classes: []string{"X RPL 1"}})
	require.ErrorIs(t, err, ErrUnknownCategory)

	result, err := svc.TriggerManual(ctx, ManualPushInput{Category: "deadline", Classes: []string{"X RPL 1", " XI BC 1 "}, Force: true})
	require.NoError(t, err)
	require.Len(t, result.Classes, 2)
	require.Empty(t, result.Classes[0].Skipped)
	require.Equal(t, "XI BC 1", result.Classes[1].Kelas)
	require.Equal(t, SkipNothingDue, result.Classes[1].Skipped)

	sent := notifier.sent()
	require.Len(t, sent, 1)
	require.True(t, sent[0].Force)

	result, err = svc.TriggerManual(ctx, ManualPushInput{Category: "schedule", Classes: []string{"X RPL 1"}})
	require.NoError(t, err)
	require.Len(t, result.Classes, 1)
	sent = notifier.sent()
	require.Len(t, sent, 2)
	require.Equal(t, NotificationSchedule, sent[1].Type)
	require.Contains(t, sent[1].Body, "Seni")
}

func TestMinuteDistanceWrapsMidnight(t *testing.T) {
	require.Equal(t, 10, minuteDistance(5, 23*60+55))
	require.Equal(t, 30, minuteDistance(19*60, 19*60+30))
}
