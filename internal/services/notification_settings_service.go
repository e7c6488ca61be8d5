package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tuntasinaja/tuntasinaja/internal/models"
	apperrors "github.com/tuntasinaja/tuntasinaja/pkg/errors"
	"github.com/tuntasinaja/tuntasinaja/pkg/logger"
	"github.com/tuntasinaja/tuntasinaja/pkg/validator"
)

// settingsLookupBatch bounds the IN list of a single settings query.
const settingsLookupBatch = 500

// UpdateSettingsInput is a partial update; nil fields are left untouched.
// For the clock fields an empty string clears the stored value.
type UpdateSettingsInput struct {
	PushNotificationsEnabled         *bool   `json:"push_notifications_enabled"`
	TaskNotificationsEnabled         *bool   `json:"task_notifications_enabled"`
	CommentNotificationsEnabled      *bool   `json:"comment_notifications_enabled"`
	AnnouncementNotificationsEnabled *bool   `json:"announcement_notifications_enabled"`
	DeadlineReminderEnabled          *bool   `json:"deadline_reminder_enabled"`
	ScheduleReminderEnabled          *bool   `json:"schedule_reminder_enabled"`
	OverdueReminderEnabled           *bool   `json:"overdue_reminder_enabled"`
	ReminderTime                     *string `json:"reminder_time" validate:"omitempty,clock"`
	DNDEnabled                       *bool   `json:"dnd_enabled"`
	DNDStartTime                     *string `json:"dnd_start_time" validate:"omitempty,clock"`
	DNDEndTime                       *string `json:"dnd_end_time" validate:"omitempty,clock"`
}

func (in UpdateSettingsInput) columns() (map[string]any, error) {
	updates := make(map[string]any)
	setBool := func(column string, value *bool) {
		if value != nil {
			updates[column] = *value
		}
	}
	setBool("push_notifications_enabled", in.PushNotificationsEnabled)
	setBool("task_notifications_enabled", in.TaskNotificationsEnabled)
	setBool("comment_notifications_enabled", in.CommentNotificationsEnabled)
	setBool("announcement_notifications_enabled", in.AnnouncementNotificationsEnabled)
	setBool("deadline_reminder_enabled", in.DeadlineReminderEnabled)
	setBool("schedule_reminder_enabled", in.ScheduleReminderEnabled)
	setBool("overdue_reminder_enabled", in.OverdueReminderEnabled)
	setBool("dnd_enabled", in.DNDEnabled)

	clocks := []struct {
		column string
		value  *string
	}{
		{"reminder_time", in.ReminderTime},
		{"dnd_start_time", in.DNDStartTime},
		{"dnd_end_time", in.DNDEndTime},
	}
	for _, clock := range clocks {
		if clock.value == nil {
			continue
		}
		value := strings.TrimSpace(*clock.value)
		if value == "" {
			updates[clock.column] = nil
			continue
		}
		if !validator.IsClock(value) {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("%s must use HH:MM", clock.column))
		}
		updates[clock.column] = value
	}
	return updates, nil
}

// NotificationSettingsService stores notification preferences and decides
// which users accept a given notification category.
type NotificationSettingsService struct {
	db  *gorm.DB
	loc *time.Location
	now func() time.Time
	log *zap.Logger
}

// SettingsOption customises a NotificationSettingsService.
type SettingsOption func(*NotificationSettingsService)

// WithSettingsLocation sets the timezone do-not-disturb windows are evaluated in.
func WithSettingsLocation(loc *time.Location) SettingsOption {
	return func(s *NotificationSettingsService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithSettingsClock overrides the time source, mainly for tests.
func WithSettingsClock(now func() time.Time) SettingsOption {
	return func(s *NotificationSettingsService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewNotificationSettingsService constructs the service.
func NewNotificationSettingsService(db *gorm.DB, opts ...SettingsOption) (*NotificationSettingsService, error) {
	if db == nil {
		return nil, errors.New("notification settings service: db is required")
	}
	svc := &NotificationSettingsService{
		db:  db,
		loc: time.UTC,
		now: systemNow,
		log: logger.WithModule("settings"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Get returns the user's settings, creating the default row on first access.
func (s *NotificationSettingsService) Get(ctx context.Context, userID string) (models.UserSettings, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return models.UserSettings{}, apperrors.NewBadRequest("user id is required")
	}

	var settings models.UserSettings
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&settings).Error
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.UserSettings{}, fmt.Errorf("notification settings service: load settings: %w", err)
	}

	settings = models.DefaultUserSettings(userID)
	if err := s.db.WithContext(ctx).Create(&settings).Error; err != nil {
		if !isUniqueConstraintError(err) {
			return models.UserSettings{}, fmt.Errorf("notification settings service: create settings: %w", err)
		}
		// Another request created the row first.
		if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&settings).Error; err != nil {
			return models.UserSettings{}, fmt.Errorf("notification settings service: reload settings: %w", err)
		}
	}
	return settings, nil
}

// Update applies a partial update and returns the stored result.
func (s *NotificationSettingsService) Update(ctx context.Context, userID string, input UpdateSettingsInput) (models.UserSettings, error) {
	ctx = ensureContext(ctx)

	updates, err := input.columns()
	if err != nil {
		return models.UserSettings{}, err
	}

	current, err := s.Get(ctx, userID)
	if err != nil {
		return models.UserSettings{}, err
	}
	if len(updates) == 0 {
		return current, nil
	}

	updates["updated_at"] = s.now().UTC()
	if err := s.db.WithContext(ctx).
		Model(&models.UserSettings{}).
		Where("id = ?", current.ID).
		Updates(updates).Error; err != nil {
		return models.UserSettings{}, fmt.Errorf("notification settings service: update settings: %w", err)
	}

	var updated models.UserSettings
	if err := s.db.WithContext(ctx).Where("id = ?", current.ID).Take(&updated).Error; err != nil {
		return models.UserSettings{}, fmt.Errorf("notification settings service: reload settings: %w", err)
	}
	return updated, nil
}

// Reset restores the defaults for the user.
func (s *NotificationSettingsService) Reset(ctx context.Context, userID string) (models.UserSettings, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return models.UserSettings{}, apperrors.NewBadRequest("user id is required")
	}

	settings := models.DefaultUserSettings(userID)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.UserSettings{}).Error; err != nil {
			return err
		}
		return tx.Create(&settings).Error
	})
	if err != nil {
		return models.UserSettings{}, fmt.Errorf("notification settings service: reset settings: %w", err)
	}
	return settings, nil
}

// EligibleUsers returns the subset of userIDs that accept notifications of
// type t right now. Users without a settings row accept everything. When the
// lookup fails every user is returned so that a storage hiccup never
// silences a class.
func (s *NotificationSettingsService) EligibleUsers(ctx context.Context, userIDs []string, t NotificationType) map[string]struct{} {
	ctx = ensureContext(ctx)
	ids := normaliseIDs(userIDs)
	eligible := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		eligible[id] = struct{}{}
	}
	if len(ids) == 0 {
		return eligible
	}

	stored := make([]models.UserSettings, 0, len(ids))
	for start := 0; start < len(ids); start += settingsLookupBatch {
		end := start + settingsLookupBatch
		if end > len(ids) {
			end = len(ids)
		}
		var batch []models.UserSettings
		if err := s.db.WithContext(ctx).Where("user_id IN ?", ids[start:end]).Find(&batch).Error; err != nil {
			s.log.Warn("settings lookup failed, allowing all recipients",
				zap.String("type", t.String()),
				zap.Int("users", len(ids)),
				zap.Error(err),
			)
			return eligible
		}
		stored = append(stored, batch...)
	}

	clock := s.now().In(s.loc).Format("15:04")
	for i := range stored {
		if !Allows(&stored[i], t, clock) {
			delete(eligible, stored[i].UserID)
		}
	}
	return eligible
}

// Allows applies the preference rules to one settings row. clock is the
// current local time as "HH:MM". A nil settings row allows everything.
func Allows(settings *models.UserSettings, t NotificationType, clock string) bool {
	if settings == nil {
		return true
	}
	if !settings.PushNotificationsEnabled {
		return false
	}

	switch t {
	case NotificationTask:
		if !settings.TaskNotificationsEnabled {
			return false
		}
	case NotificationComment:
		if !settings.CommentNotificationsEnabled {
			return false
		}
	case NotificationAnnouncement:
		if !settings.AnnouncementNotificationsEnabled {
			return false
		}
	case NotificationDeadline:
		if !settings.DeadlineReminderEnabled {
			return false
		}
	case NotificationSchedule:
		if !settings.ScheduleReminderEnabled {
			return false
		}
	case NotificationOverdue:
		if !settings.OverdueReminderEnabled {
			return false
		}
	}

	if settings.DNDEnabled && settings.DNDStartTime != nil && settings.DNDEndTime != nil {
		if InQuietHours(*settings.DNDStartTime, *settings.DNDEndTime, clock) {
			return false
		}
	}
	return true
}

// InQuietHours reports whether clock falls inside the [start, end] window.
// Windows with start after end wrap past midnight. Both bounds are inclusive.
func InQuietHours(start, end, clock string) bool {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start == "" || end == "" {
		return false
	}
	if start > end {
		return clock >= start || clock <= end
	}
	return clock >= start && clock <= end
}
