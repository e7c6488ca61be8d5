package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tuntasinaja/tuntasinaja/internal/database/testutil"
	"github.com/tuntasinaja/tuntasinaja/internal/models"
	apperrors "github.com/tuntasinaja/tuntasinaja/pkg/errors"
)

func TestScheduleServiceReplaceAndList(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewScheduleService(db)
	require.NoError(t, err)
	ctx := context.Background()

	danton := createUser(t, db, "danton", "X RPL 1", false)
	require.NoError(t, db.Model(&danton).Update("is_danton", true).Error)
	danton.IsDanton = true

	day, err := svc.ReplaceDay(ctx, &danton, "X RPL 1", "Senin", ReplaceDayInput{Subjects: []string{"Matematika", " ", "Fisika"}})
	require.NoError(t, err)
	require.Equal(t, models.DaySenin, day.Day)
	require.Equal(t, []string{"Matematika", "Fisika"}, day.Subjects)

	_, err = svc.ReplaceDay(ctx, &danton, "X RPL 1", "senin", ReplaceDayInput{Subjects: []string{"Biologi", "Kimia"}})
	require.NoError(t, err)

	days, err := svc.ListForClass(ctx, "X RPL 1")
	require.NoError(t, err)
	require.Len(t, days, 7)
	require.Equal(t, []string{"Biologi", "Kimia"}, days[0].Subjects)
	require.Empty(t, days[1].Subjects)

	byClass, err := svc.SubjectsForDay(ctx, models.DaySenin)
	require.NoError(t, err)
	require.Equal(t, map[string][]string{"X RPL 1": {"Biologi", "Kimia"}}, byClass)
}

func TestScheduleServicePermissions(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewScheduleService(db)
	require.NoError(t, err)
	ctx := context.Background()

	student := createUser(t, db, "budi", "X RPL 1", false)
	otherDanton := createUser(t, db, "eka", "XI BC 1", false)
	otherDanton.IsDanton = true
	admin := createUser(t, db, "admin", "", true)

	_, err = svc.ReplaceDay(ctx, &student, "X RPL 1", "selasa", ReplaceDayInput{Subjects: []string{"PKN"}})
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = svc.ReplaceDay(ctx, &otherDanton, "X RPL 1", "selasa", ReplaceDayInput{Subjects: []string{"PKN"}})
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = svc.ReplaceDay(ctx, &admin, "X RPL 1", "selasa", ReplaceDayInput{Subjects: []string{"PKN"}})
	require.NoError(t, err)

	_, err = svc.ReplaceDay(ctx, &admin, "X RPL 1", "someday", ReplaceDayInput{})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestDayName(t *testing.T) {
	// 2 March 2026 is a Monday.
	monday := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	require.Equal(t, models.DaySenin, DayName(monday.Weekday()))
	require.Equal(t, models.DayMinggu, DayName(monday.AddDate(0, 0, 6).Weekday()))
}
