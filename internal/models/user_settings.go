package models

// UserSettings holds the notification preferences of a single user.
// Boolean columns carry no database default so that explicit false values
// survive inserts; DefaultUserSettings is the only constructor.
type UserSettings struct {
	BaseModel

	UserID string `gorm:"type:varchar(36);uniqueIndex;not null" json:"user_id"`

	PushNotificationsEnabled         bool `gorm:"not null" json:"push_notifications_enabled"`
	TaskNotificationsEnabled         bool `gorm:"not null" json:"task_notifications_enabled"`
	CommentNotificationsEnabled      bool `gorm:"not null" json:"comment_notifications_enabled"`
	AnnouncementNotificationsEnabled bool `gorm:"not null" json:"announcement_notifications_enabled"`
	DeadlineReminderEnabled          bool `gorm:"not null" json:"deadline_reminder_enabled"`
	ScheduleReminderEnabled          bool `gorm:"not null" json:"schedule_reminder_enabled"`
	OverdueReminderEnabled           bool `gorm:"not null" json:"overdue_reminder_enabled"`

	// ReminderTime is the "HH:MM" local time deadline reminders are sent at.
	ReminderTime *string `gorm:"type:varchar(5)" json:"reminder_time"`

	DNDEnabled   bool    `gorm:"not null" json:"dnd_enabled"`
	DNDStartTime *string `gorm:"type:varchar(5)" json:"dnd_start_time"`
	DNDEndTime   *string `gorm:"type:varchar(5)" json:"dnd_end_time"`
}

// DefaultReminderTime is applied to new settings rows.
const DefaultReminderTime = "19:00"

// DefaultUserSettings returns the settings a user has before changing anything:
// every category enabled and do-not-disturb off.
func DefaultUserSettings(userID string) UserSettings {
	reminder := DefaultReminderTime
	return UserSettings{
		UserID:                           userID,
		PushNotificationsEnabled:         true,
		TaskNotificationsEnabled:         true,
		CommentNotificationsEnabled:      true,
		AnnouncementNotificationsEnabled: true,
		DeadlineReminderEnabled:          true,
		ScheduleReminderEnabled:          true,
		OverdueReminderEnabled:           true,
		ReminderTime:                     &reminder,
	}
}
