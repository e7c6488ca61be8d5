package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tuntasinaja/tuntasinaja/internal/models"
	"github.com/tuntasinaja/tuntasinaja/pkg/logger"
	"github.com/tuntasinaja/tuntasinaja/pkg/metrics"
)

// Reminder jobs and manual push categories.
const (
	JobDeadline = "deadline"
	JobSchedule = "schedule"
)

// Reasons a class or a whole run sent nothing.
const (
	SkipNotReminderTime = "not_reminder_time"
	SkipNothingDue      = "nothing_due"
	SkipNoSchedule      = "no_schedule"
)

const (
	defaultDeadlineWindow    = 30 * time.Minute
	defaultDeadlineLookahead = 24 * time.Hour
	maxListedTitles          = 3
	slotTolerance            = 5
)

// ClassReminderResult is the outcome for one class.
type ClassReminderResult struct {
	Kelas string `json:"kelas"`
	PushResult
	Skipped string `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ReminderSummary is the outcome of one reminder run.
type ReminderSummary struct {
	Job         string                `json:"job"`
	Skipped     string                `json:"skipped,omitempty"`
	Classes     []ClassReminderResult `json:"classes"`
	TotalSent   int                   `json:"total_sent"`
	TotalFailed int                   `json:"total_failed"`
}

func (s *ReminderSummary) add(result ClassReminderResult) {
	s.Classes = append(s.Classes, result)
	s.TotalSent += result.SuccessCount
	s.TotalFailed += result.FailureCount
}

// ManualPushInput asks for an immediate reminder for specific classes.
type ManualPushInput struct {
	Category string   `json:"category" validate:"required,oneof=deadline schedule"`
	Classes  []string `json:"classes" validate:"required,min=1,max=100,dive,kelas"`
	Force    bool     `json:"force"`
}

// ManualPushResult lists the per-class outcome of a manual push.
type ManualPushResult struct {
	Category string                `json:"category"`
	Forced   bool                  `json:"forced"`
	Classes  []ClassReminderResult `json:"classes"`
}

// ReminderOptions tunes the reminder jobs.
type ReminderOptions struct {
	Location *time.Location
	// DeadlineWindow is how far from a user's reminder time a run still
	// counts as on time.
	DeadlineWindow time.Duration
	// DeadlineLookahead bounds which deadlines are considered upcoming.
	DeadlineLookahead time.Duration
	Now               func() time.Time
}

// ReminderService builds the scheduled deadline and timetable reminders.
type ReminderService struct {
	db        *gorm.DB
	notifier  ClassNotifier
	schedules *ScheduleService
	loc       *time.Location
	window    time.Duration
	lookahead time.Duration
	now       func() time.Time
	log       *zap.Logger
}

// NewReminderService constructs a ReminderService.
func NewReminderService(db *gorm.DB, notifier ClassNotifier, schedules *ScheduleService, opts ReminderOptions) (*ReminderService, error) {
	if db == nil {
		return nil, errors.New("reminder service: db is required")
	}
	if notifier == nil {
		return nil, errors.New("reminder service: notifier is required")
	}
	if schedules == nil {
		var err error
		if schedules, err = NewScheduleService(db); err != nil {
			return nil, err
		}
	}

	svc := &ReminderService{
		db:        db,
		notifier:  notifier,
		schedules: schedules,
		loc:       opts.Location,
		window:    opts.DeadlineWindow,
		lookahead: opts.DeadlineLookahead,
		now:       opts.Now,
		log:       logger.WithModule("reminders"),
	}
	if svc.loc == nil {
		svc.loc = time.UTC
	}
	if svc.window <= 0 {
		svc.window = defaultDeadlineWindow
	}
	if svc.lookahead <= 0 {
		svc.lookahead = defaultDeadlineLookahead
	}
	if svc.now == nil {
		svc.now = systemNow
	}
	return svc, nil
}

type reminderCandidate struct {
	UserID       string  `gorm:"column:user_id"`
	ReminderTime string  `gorm:"column:reminder_time"`
	Kelas        *string `gorm:"column:kelas"`
}

type pendingThread struct {
	ID    string
	Title string
}

// DeadlineReminders notifies each class that has a member whose reminder
// time is now and who has upcoming unfinished deadlines. A class is sent at
// most one reminder per run.
func (s *ReminderService) DeadlineReminders(ctx context.Context) (ReminderSummary, error) {
	ctx = ensureContext(ctx)
	summary := ReminderSummary{Job: JobDeadline, Classes: []ClassReminderResult{}}
	now := s.now().UTC()
	local := now.In(s.loc)
	current := local.Hour()*60 + local.Minute()

	var candidates []reminderCandidate
	err := s.db.WithContext(ctx).
		Table("user_settings").
		Select("user_settings.user_id AS user_id, user_settings.reminder_time AS reminder_time, users.kelas AS kelas").
		Joins("JOIN users ON users.id = user_settings.user_id").
		Where("user_settings.deadline_reminder_enabled = ? AND user_settings.reminder_time IS NOT NULL", true).
		Where("users.kelas IS NOT NULL AND users.is_admin = ?", false).
		Scan(&candidates).Error
	if err != nil {
		s.record(JobDeadline, err)
		return summary, fmt.Errorf("reminder service: load reminder settings: %w", err)
	}

	due := make(map[string][]string)
	for _, c := range candidates {
		kelas := trimmedLabel(c.Kelas)
		if kelas == "" {
			continue
		}
		minutes, ok := clockMinutes(c.ReminderTime)
		if !ok || minuteDistance(current, minutes) > int(s.window/time.Minute) {
			continue
		}
		due[kelas] = append(due[kelas], c.UserID)
	}
	if len(due) == 0 {
		summary.Skipped = SkipNotReminderTime
		s.record(JobDeadline, nil)
		return summary, nil
	}

	var errs error
	for _, kelas := range sortedKeys(due) {
		pending, err := s.pendingForUsers(ctx, kelas, due[kelas], now)
		if err != nil {
			errs = multierr.Append(errs, err)
			summary.add(ClassReminderResult{Kelas: kelas, Error: err.Error()})
			continue
		}
		result := s.sendDeadline(ctx, kelas, pending, false)
		if result.Error != "" {
			errs = multierr.Append(errs, fmt.Errorf("reminder service: deadline reminder for %s: %s", kelas, result.Error))
		}
		summary.add(result)
	}

	s.record(JobDeadline, errs)
	s.log.Info("deadline reminders finished",
		zap.Int("classes", len(summary.Classes)),
		zap.Int("sent", summary.TotalSent),
		zap.Int("failed", summary.TotalFailed),
	)
	return summary, errs
}

// ScheduleReminders tells every class with lessons tomorrow what to prepare.
// It only sends during the evening slots around 18:00 and 21:00 local time.
func (s *ReminderService) ScheduleReminders(ctx context.Context) (ReminderSummary, error) {
	ctx = ensureContext(ctx)
	summary := ReminderSummary{Job: JobSchedule, Classes: []ClassReminderResult{}}
	local := s.now().In(s.loc)

	slot, ok := reminderSlot(local)
	if !ok {
		summary.Skipped = SkipNotReminderTime
		s.record(JobSchedule, nil)
		return summary, nil
	}

	tomorrow := local.AddDate(0, 0, 1)
	byClass, err := s.schedules.SubjectsForDay(ctx, DayName(tomorrow.Weekday()))
	if err != nil {
		s.record(JobSchedule, err)
		return summary, err
	}
	if len(byClass) == 0 {
		summary.Skipped = SkipNoSchedule
		s.record(JobSchedule, nil)
		return summary, nil
	}

	var errs error
	for _, kelas := range sortedKeys(byClass) {
		result := s.sendSchedule(ctx, kelas, byClass[kelas], slot, local, false)
		if result.Error != "" {
			errs = multierr.Append(errs, fmt.Errorf("reminder service: schedule reminder for %s: %s", kelas, result.Error))
		}
		summary.add(result)
	}

	s.record(JobSchedule, errs)
	s.log.Info("schedule reminders finished",
		zap.String("slot", slot),
		zap.Int("classes", len(summary.Classes)),
		zap.Int("sent", summary.TotalSent),
		zap.Int("failed", summary.TotalFailed),
	)
	return summary, errs
}

// TriggerManual sends a reminder category to the listed classes right away,
// ignoring reminder times and evening slots.
func (s *ReminderService) TriggerManual(ctx context.Context, input ManualPushInput) (ManualPushResult, error) {
	ctx = ensureContext(ctx)
	category := strings.ToLower(strings.TrimSpace(input.Category))
	if category != JobDeadline && category != JobSchedule {
		return ManualPushResult{}, ErrUnknownCategory
	}

	classes := normaliseIDs(input.Classes)
	if len(classes) == 0 {
		return ManualPushResult{}, ErrInvalidClass
	}

	out := ManualPushResult{Category: category, Forced: input.Force, Classes: make([]ClassReminderResult, 0, len(classes))}
	now := s.now().UTC()
	local := now.In(s.loc)

	for _, kelas := range classes {
		var result ClassReminderResult
		switch category {
		case JobDeadline:
			pending, err := s.pendingForClass(ctx, kelas, now)
			if err != nil {
				result = ClassReminderResult{Kelas: kelas, Error: err.Error()}
				break
			}
			result = s.sendDeadline(ctx, kelas, pending, input.Force)
		case JobSchedule:
			result = s.manualSchedule(ctx, kelas, local, input.Force)
		}
		out.Classes = append(out.Classes, result)
	}

	s.log.Info("manual push finished",
		zap.String("category", category),
		zap.Bool("force", input.Force),
		zap.Int("classes", len(classes)),
	)
	return out, nil
}

func (s *ReminderService) manualSchedule(ctx context.Context, kelas string, local time.Time, force bool) ClassReminderResult {
	days, err := s.schedules.ListForClass(ctx, kelas)
	if err != nil {
		return ClassReminderResult{Kelas: kelas, Error: err.Error()}
	}
	tomorrow := DayName(local.AddDate(0, 0, 1).Weekday())
	for _, day := range days {
		if day.Day == tomorrow && len(day.Subjects) > 0 {
			slot, ok := reminderSlot(local)
			if !ok {
				slot = "Malam"
			}
			return s.sendSchedule(ctx, kelas, day.Subjects, slot, local, force)
		}
	}
	return ClassReminderResult{Kelas: kelas, Skipped: SkipNoSchedule}
}

func (s *ReminderService) sendDeadline(ctx context.Context, kelas string, pending []pendingThread, force bool) ClassReminderResult {
	if len(pending) == 0 {
		return ClassReminderResult{Kelas: kelas, Skipped: SkipNothingDue}
	}

	titles := make([]string, 0, maxListedTitles)
	ids := make([]string, 0, len(pending))
	for i, t := range pending {
		if i < maxListedTitles {
			titles = append(titles, t.Title)
		}
		ids = append(ids, t.ID)
	}

	body := fmt.Sprintf("Tugas %q deadline besok!", titles[0])
	if len(pending) > 1 {
		body = fmt.Sprintf("%d tugas deadline besok: %s", len(pending), strings.Join(titles, ", "))
		if len(pending) > maxListedTitles {
			body += "..."
		}
	}

	res, err := s.notifier.SendToClass(ctx, ClassPushInput{
		Kelas: kelas,
		Title: "Pengingat Deadline",
		Body:  body,
		Type:  NotificationDeadline,
		Force: force,
		Data: map[string]string{
			"type":      "deadline_reminder",
			"threadIds": strings.Join(ids, ","),
		},
	})
	result := ClassReminderResult{Kelas: kelas, PushResult: res}
	if err != nil {
		result.Error = err.Error()
		s.log.Warn("deadline reminder failed", zap.String("kelas", kelas), zap.Error(err))
	}
	return result
}

func (s *ReminderService) sendSchedule(ctx context.Context, kelas string, subjects []string, slot string, local time.Time, force bool) ClassReminderResult {
	if len(subjects) == 0 {
		return ClassReminderResult{Kelas: kelas, Skipped: SkipNoSchedule}
	}

	hasTasks, err := s.hasRelevantTasks(ctx, kelas, subjects, local)
	if err != nil {
		return ClassReminderResult{Kelas: kelas, Error: err.Error()}
	}

	tomorrow := formatIndonesianDate(local.AddDate(0, 0, 1))
	list := strings.Join(subjects, ", ")
	title := fmt.Sprintf("Reminder %s: Besok Ada Pelajaran", slot)
	body := fmt.Sprintf("Besok (%s) ada pelajaran: %s. Jangan lupa persiapkan!", tomorrow, list)
	if hasTasks {
		title = fmt.Sprintf("Reminder %s: Besok Ada Pelajaran!", slot)
		body = fmt.Sprintf("Besok (%s) ada pelajaran: %s. Cek PR yang belum selesai dan segera selesaikan!", tomorrow, list)
	}

	filter := strings.Join(subjects, ",")
	res, err := s.notifier.SendToClass(ctx, ClassPushInput{
		Kelas: kelas,
		Title: title,
		Body:  body,
		Type:  NotificationSchedule,
		Force: force,
		Data: map[string]string{
			"type":               "schedule_reminder",
			"filter":             filter,
			"url":                "/?filter=" + url.QueryEscape(filter),
			"tomorrow":           tomorrow,
			"subjects":           list,
			"hasIncompleteTasks": fmt.Sprint(hasTasks),
		},
	})
	result := ClassReminderResult{Kelas: kelas, PushResult: res}
	if err != nil {
		result.Error = err.Error()
		s.log.Warn("schedule reminder failed", zap.String("kelas", kelas), zap.Error(err))
	}
	return result
}

// pendingForUsers returns threads of kelas due within the lookahead that at
// least one of userIDs has not completed.
func (s *ReminderService) pendingForUsers(ctx context.Context, kelas string, userIDs []string, now time.Time) ([]pendingThread, error) {
	threads, err := s.pendingForClass(ctx, kelas, now)
	if err != nil || len(threads) == 0 {
		return threads, err
	}

	ids := make([]string, len(threads))
	for i, t := range threads {
		ids[i] = t.ID
	}

	var done []models.History
	if err := s.db.WithContext(ctx).
		Where("user_id IN ? AND thread_id IN ?", userIDs, ids).
		Find(&done).Error; err != nil {
		return nil, fmt.Errorf("reminder service: load completions: %w", err)
	}

	completedBy := make(map[string]int, len(ids))
	for _, h := range done {
		completedBy[h.ThreadID]++
	}

	users := len(normaliseIDs(userIDs))
	out := threads[:0]
	for _, t := range threads {
		if completedBy[t.ID] < users {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *ReminderService) pendingForClass(ctx context.Context, kelas string, now time.Time) ([]pendingThread, error) {
	var threads []pendingThread
	err := s.db.WithContext(ctx).
		Model(&models.Thread{}).
		Select("threads.id AS id, threads.title AS title").
		Joins("JOIN users ON users.id = threads.author_id").
		Where("users.kelas = ?", kelas).
		Where("threads.deadline >= ? AND threads.deadline <= ?", now, now.Add(s.lookahead)).
		Order("threads.deadline ASC").
		Scan(&threads).Error
	if err != nil {
		return nil, fmt.Errorf("reminder service: load upcoming deadlines: %w", err)
	}
	return threads, nil
}

// hasRelevantTasks reports whether kelas posted a thread today whose title
// mentions one of subjects.
func (s *ReminderService) hasRelevantTasks(ctx context.Context, kelas string, subjects []string, local time.Time) (bool, error) {
	from := startOfDay(local, s.loc)
	var titles []string
	err := s.db.WithContext(ctx).
		Model(&models.Thread{}).
		Joins("JOIN users ON users.id = threads.author_id").
		Where("users.kelas = ? AND threads.date >= ? AND threads.date < ?", kelas, from, from.Add(24*time.Hour)).
		Pluck("threads.title", &titles).Error
	if err != nil {
		return false, fmt.Errorf("reminder service: load today's threads: %w", err)
	}

	for _, title := range titles {
		upper := strings.ToUpper(title)
		for _, subject := range subjects {
			if strings.Contains(upper, strings.ToUpper(subject)) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *ReminderService) record(job string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.ReminderRuns.WithLabelValues(job, result).Inc()
}

// reminderSlot names the evening slot local falls in, allowing runs to start
// a few minutes early.
func reminderSlot(local time.Time) (string, bool) {
	hour, minute := local.Hour(), local.Minute()
	switch {
	case hour == 18 || (hour == 17 && minute >= 60-slotTolerance):
		return "Maghrib", true
	case hour == 21 || (hour == 20 && minute >= 60-slotTolerance):
		return "Malam", true
	}
	return "", false
}

func clockMinutes(value string) (int, bool) {
	t, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

// minuteDistance is the distance between two minutes of the day, wrapping at midnight.
func minuteDistance(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if wrapped := 24*60 - d; wrapped < d {
		return wrapped
	}
	return d
}

var (
	indonesianDays   = [...]string{"Minggu", "Senin", "Selasa", "Rabu", "Kamis", "Jumat", "Sabtu"}
	indonesianMonths = [...]string{"Januari", "Februari", "Maret", "April", "Mei", "Juni", "Juli",
		"Agustus", "September", "Oktober", "November", "Desember"}
)

func formatIndonesianDate(t time.Time) string {
	return fmt.Sprintf("%s, %d %s %d", indonesianDays[t.Weekday()], t.Day(), indonesianMonths[t.Month()-1], t.Year())
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
