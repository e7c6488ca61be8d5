package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tuntasinaja/tuntasinaja/internal/database/testutil"
	"github.com/tuntasinaja/tuntasinaja/internal/models"
	apperrors "github.com/tuntasinaja/tuntasinaja/pkg/errors"
)

type announcementFixture struct {
	db       *gorm.DB
	notifier *recordingNotifier
	inbox    *NotificationService
	svc      *AnnouncementService
	now      time.Time
}

func newAnnouncementFixture(t *testing.T) *announcementFixture {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	inbox, err := NewNotificationService(db, nil)
	require.NoError(t, err)

	f := &announcementFixture{
		db:       db,
		notifier: &recordingNotifier{},
		inbox:    inbox,
		now:      time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC),
	}
	f.svc, err = NewAnnouncementService(db, f.notifier, inbox, NewBackground(time.Second),
		WithAnnouncementClock(func() time.Time { return f.now }),
	)
	require.NoError(t, err)
	return f
}

func (f *announcementFixture) user(t *testing.T, id, kelas string, mutate func(*models.User)) *models.User {
	t.Helper()
	user := models.User{
		BaseModel: models.BaseModel{ID: id},
		Name:      id,
		Email:     id + "@example.com",
	}
	if kelas != "" {
		user.Kelas = strPtr(kelas)
	}
	if mutate != nil {
		mutate(&user)
	}
	require.NoError(t, f.db.Create(&user).Error)
	return &user
}

func asDanton(u *models.User) { u.IsDanton = true }
func asAdmin(u *models.User)  { u.IsAdmin = true }

func TestAnnouncementCreateNotifiesClass(t *testing.T) {
	f := newAnnouncementFixture(t)
	leader := f.user(t, "dewi", "X RPL 1", asDanton)
	f.user(t, "citra", "X RPL 1", nil)
	f.user(t, "eka", "XI BC 1", nil)

	content := strings.Repeat("á", 120)
	row, err := f.svc.Create(context.Background(), leader, CreateAnnouncementInput{
		Title:    "Libur",
		Content:  content,
		Priority: "urgent",
	})
	require.NoError(t, err)
	require.NotNil(t, row.TargetKelas)
	require.Equal(t, "X RPL 1", *row.TargetKelas)
	f.svc.Wait()

	sent := f.notifier.sent()
	require.Len(t, sent, 1)
	require.Equal(t, "X RPL 1", sent[0].Kelas)
	require.Equal(t, NotificationAnnouncement, sent[0].Type)
	require.Equal(t, "📢 Libur", sent[0].Title)
	require.Equal(t, strings.Repeat("á", 100)+"...", sent[0].Body)
	require.Equal(t, map[string]string{
		"type":           "announcement",
		"announcementId": row.ID,
		"priority":       models.PriorityUrgent,
	}, sent[0].Data)

	count, err := f.inbox.UnreadCount(context.Background(), "citra")
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	count, err = f.inbox.UnreadCount(context.Background(), "dewi")
	require.NoError(t, err)
	require.Zero(t, count)
	count, err = f.inbox.UnreadCount(context.Background(), "eka")
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestAnnouncementShortContentIsNotTruncated(t *testing.T) {
	f := newAnnouncementFixture(t)
	leader := f.user(t, "dewi", "X RPL 1", asDanton)

	row, err := f.svc.Create(context.Background(), leader, CreateAnnouncementInput{Title: "Rapat", Content: "Besok jam 7"})
	require.NoError(t, err)
	require.Equal(t, models.PriorityNormal, row.Priority)
	f.svc.Wait()

	sent := f.notifier.sent()
	require.Len(t, sent, 1)
	require.Equal(t, "Besok jam 7", sent[0].Body)
}

func TestAnnouncementCreatePermissions(t *testing.T) {
	f := newAnnouncementFixture(t)
	student := f.user(t, "budi", "X RPL 1", nil)
	leader := f.user(t, "dewi", "X RPL 1", asDanton)
	root := f.user(t, "root", "", asAdmin)
	ctx := context.Background()
	input := CreateAnnouncementInput{Title: "Info", Content: "Isi"}

	_, err := f.svc.Create(ctx, student, input)
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	other := input
	other.Kelas = "XI BC 1"
	_, err = f.svc.Create(ctx, leader, other)
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	global := input
	global.Global = true
	_, err = f.svc.Create(ctx, leader, global)
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	// An admin without a class must name one.
	_, err = f.svc.Create(ctx, root, input)
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	row, err := f.svc.Create(ctx, root, other)
	require.NoError(t, err)
	require.Equal(t, "XI BC 1", *row.TargetKelas)

	row, err = f.svc.Create(ctx, root, global)
	require.NoError(t, err)
	require.Nil(t, row.TargetKelas)
	f.svc.Wait()

	// Only the class announcement is pushed.
	sent := f.notifier.sent()
	require.Len(t, sent, 1)
	require.Equal(t, "XI BC 1", sent[0].Kelas)
}

func TestAnnouncementCreateRejectsBadInput(t *testing.T) {
	f := newAnnouncementFixture(t)
	leader := f.user(t, "dewi", "X RPL 1", asDanton)
	ctx := context.Background()

	past := f.now.Add(-time.Minute)
	_, err := f.svc.Create(ctx, leader, CreateAnnouncementInput{Title: "Info", Content: "Isi", ExpiresAt: &past})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = f.svc.Create(ctx, leader, CreateAnnouncementInput{Title: "Info", Content: "Isi", Priority: "critical"})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = f.svc.Create(ctx, leader, CreateAnnouncementInput{Title: "  ", Content: "Isi"})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = f.svc.Create(ctx, nil, CreateAnnouncementInput{Title: "Info", Content: "Isi"})
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
	require.Empty(t, f.notifier.sent())
}

func TestAnnouncementListOrderingAndVisibility(t *testing.T) {
	f := newAnnouncementFixture(t)
	leader := f.user(t, "dewi", "X RPL 1", asDanton)
	student := f.user(t, "citra", "X RPL 1", nil)
	root := f.user(t, "root", "", asAdmin)
	ctx := context.Background()

	create := func(author *models.User, input CreateAnnouncementInput) *models.Announcement {
		t.Helper()
		row, err := f.svc.Create(ctx, author, input)
		require.NoError(t, err)
		f.now = f.now.Add(time.Minute)
		return row
	}

	soon := f.now.Add(30 * time.Minute)
	low := create(leader, CreateAnnouncementInput{Title: "Low", Content: "x", Priority: "low"})
	urgent := create(leader, CreateAnnouncementInput{Title: "Urgent", Content: "x", Priority: "urgent"})
	pinned := create(leader, CreateAnnouncementInput{Title: "Pinned", Content: "x", Priority: "low", IsPinned: true})
	global := create(root, CreateAnnouncementInput{Title: "Global", Content: "x", Global: true})
	create(root, CreateAnnouncementInput{Title: "Other", Content: "x", Kelas: "XI BC 1"})
	create(leader, CreateAnnouncementInput{Title: "Expiring", Content: "x", ExpiresAt: &soon})
	f.svc.Wait()

	f.now = f.now.Add(time.Hour)
	views, err := f.svc.List(ctx, student)
	require.NoError(t, err)

	var ids []string
	for _, view := range views {
		ids = append(ids, view.ID)
	}
	require.Equal(t, []string{pinned.ID, urgent.ID, global.ID, low.ID}, ids)

	require.NoError(t, f.svc.MarkRead(ctx, student.ID, urgent.ID))
	require.NoError(t, f.svc.MarkRead(ctx, student.ID, urgent.ID))
	views, err = f.svc.List(ctx, student)
	require.NoError(t, err)
	for _, view := range views {
		require.Equal(t, view.ID == urgent.ID, view.IsRead, view.Title)
	}

	// A user without a class only sees global announcements.
	views, err = f.svc.List(ctx, root)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, global.ID, views[0].ID)

	err = f.svc.MarkRead(ctx, student.ID, "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAnnouncementDelete(t *testing.T) {
	f := newAnnouncementFixture(t)
	leader := f.user(t, "dewi", "X RPL 1", asDanton)
	student := f.user(t, "citra", "X RPL 1", nil)
	root := f.user(t, "root", "", asAdmin)
	ctx := context.Background()

	row, err := f.svc.Create(ctx, leader, CreateAnnouncementInput{Title: "Info", Content: "Isi"})
	require.NoError(t, err)
	global, err := f.svc.Create(ctx, root, CreateAnnouncementInput{Title: "Global", Content: "Isi", Global: true})
	require.NoError(t, err)
	f.svc.Wait()
	require.NoError(t, f.svc.MarkRead(ctx, student.ID, row.ID))

	require.ErrorIs(t, f.svc.Delete(ctx, student, row.ID), apperrors.ErrForbidden)
	require.ErrorIs(t, f.svc.Delete(ctx, leader, global.ID), apperrors.ErrForbidden)

	require.NoError(t, f.svc.Delete(ctx, leader, row.ID))
	require.ErrorIs(t, f.svc.Delete(ctx, leader, row.ID), apperrors.ErrNotFound)

	var marks int64
	require.NoError(t, f.db.Model(&models.AnnouncementRead{}).Count(&marks).Error)
	require.Zero(t, marks)

	require.NoError(t, f.svc.Delete(ctx, root, global.ID))
}
