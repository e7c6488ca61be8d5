package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tuntasinaja/tuntasinaja/internal/models"
	apperrors "github.com/tuntasinaja/tuntasinaja/pkg/errors"
)

// Weekdays lists the timetable days in calendar order starting Monday.
var Weekdays = []string{
	models.DaySenin,
	models.DaySelasa,
	models.DayRabu,
	models.DayKamis,
	models.DayJumat,
	models.DaySabtu,
	models.DayMinggu,
}

// DayName maps a time.Weekday to the stored day name.
func DayName(day time.Weekday) string {
	switch day {
	case time.Monday:
		return models.DaySenin
	case time.Tuesday:
		return models.DaySelasa
	case time.Wednesday:
		return models.DayRabu
	case time.Thursday:
		return models.DayKamis
	case time.Friday:
		return models.DayJumat
	case time.Saturday:
		return models.DaySabtu
	default:
		return models.DayMinggu
	}
}

// ParseDay normalises a day name and reports whether it is known.
func ParseDay(value string) (string, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, day := range Weekdays {
		if day == value {
			return day, true
		}
	}
	return "", false
}

// DaySchedule is the ordered subject list of one weekday.
type DaySchedule struct {
	Day      string   `json:"day"`
	Subjects []string `json:"subjects"`
}

// ReplaceDayInput replaces a weekday's subjects.
type ReplaceDayInput struct {
	Subjects []string `json:"subjects" validate:"max=20,dive,required,max=255"`
}

// ScheduleService manages class timetables.
type ScheduleService struct {
	db *gorm.DB
}

// NewScheduleService constructs a ScheduleService.
func NewScheduleService(db *gorm.DB) (*ScheduleService, error) {
	if db == nil {
		return nil, errors.New("schedule service: db is required")
	}
	return &ScheduleService{db: db}, nil
}

// ListForClass returns every weekday of kelas, including empty ones.
func (s *ScheduleService) ListForClass(ctx context.Context, kelas string) ([]DaySchedule, error) {
	ctx = ensureContext(ctx)
	kelas = strings.TrimSpace(kelas)
	if kelas == "" {
		return nil, ErrInvalidClass
	}

	var rows []models.ClassSchedule
	if err := s.db.WithContext(ctx).
		Where("kelas = ?", kelas).
		Order("position ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("schedule service: list schedule: %w", err)
	}

	byDay := make(map[string][]string, len(Weekdays))
	for _, row := range rows {
		byDay[row.DayOfWeek] = append(byDay[row.DayOfWeek], row.Subject)
	}

	out := make([]DaySchedule, 0, len(Weekdays))
	for _, day := range Weekdays {
		subjects := byDay[day]
		if subjects == nil {
			subjects = []string{}
		}
		out = append(out, DaySchedule{Day: day, Subjects: subjects})
	}
	return out, nil
}

// ReplaceDay overwrites the subjects of one weekday. Administrators may edit
// any class; a danton only their own.
func (s *ScheduleService) ReplaceDay(ctx context.Context, actor *models.User, kelas, day string, input ReplaceDayInput) (DaySchedule, error) {
	ctx = ensureContext(ctx)
	kelas = strings.TrimSpace(kelas)
	if kelas == "" {
		return DaySchedule{}, ErrInvalidClass
	}
	dayName, ok := ParseDay(day)
	if !ok {
		return DaySchedule{}, apperrors.NewBadRequest("unknown day " + day)
	}
	if !CanManageClass(actor, kelas) {
		return DaySchedule{}, apperrors.NewForbidden("only administrators or the class leader can change this schedule")
	}

	subjects := make([]string, 0, len(input.Subjects))
	for _, subject := range input.Subjects {
		if subject = strings.TrimSpace(subject); subject != "" {
			subjects = append(subjects, subject)
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("kelas = ? AND day_of_week = ?", kelas, dayName).Delete(&models.ClassSchedule{}).Error; err != nil {
			return err
		}
		if len(subjects) == 0 {
			return nil
		}
		rows := make([]models.ClassSchedule, len(subjects))
		for i, subject := range subjects {
			rows[i] = models.ClassSchedule{Kelas: kelas, DayOfWeek: dayName, Subject: subject, Position: i}
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return DaySchedule{}, fmt.Errorf("schedule service: replace day: %w", err)
	}
	return DaySchedule{Day: dayName, Subjects: subjects}, nil
}

// SubjectsForDay groups the subjects of day by class.
func (s *ScheduleService) SubjectsForDay(ctx context.Context, day string) (map[string][]string, error) {
	ctx = ensureContext(ctx)
	dayName, ok := ParseDay(day)
	if !ok {
		return nil, apperrors.NewBadRequest("unknown day " + day)
	}

	var rows []models.ClassSchedule
	if err := s.db.WithContext(ctx).
		Where("day_of_week = ?", dayName).
		Order("kelas ASC, position ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("schedule service: subjects for day: %w", err)
	}

	out := make(map[string][]string)
	for _, row := range rows {
		kelas := strings.TrimSpace(row.Kelas)
		out[kelas] = append(out[kelas], row.Subject)
	}
	return out, nil
}

// CanManageClass reports whether actor may administer kelas.
func CanManageClass(actor *models.User, kelas string) bool {
	if actor == nil {
		return false
	}
	if actor.IsAdmin {
		return true
	}
	return actor.IsDanton && actor.InClass(kelas)
}
