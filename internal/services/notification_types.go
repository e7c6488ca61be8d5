package services

import "strings"

// NotificationType is the category a push belongs to. Each category maps to
// one toggle in UserSettings.
type NotificationType string

const (
	NotificationTask         NotificationType = "task"
	NotificationComment      NotificationType = "comment"
	NotificationAnnouncement NotificationType = "announcement"
	NotificationDeadline     NotificationType = "deadline"
	NotificationSchedule     NotificationType = "schedule"
	NotificationOverdue      NotificationType = "overdue"
	// NotificationTest is used for self-test pushes and is never filtered.
	NotificationTest NotificationType = "test"
)

var notificationTypeAliases = map[string]NotificationType{
	"new_thread":        NotificationTask,
	"new_comment":       NotificationComment,
	"deadline_reminder": NotificationDeadline,
	"schedule_reminder": NotificationSchedule,
}

// ParseNotificationType accepts canonical names and the payload aliases
// clients historically sent.
func ParseNotificationType(value string) (NotificationType, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	switch t := NotificationType(value); t {
	case NotificationTask, NotificationComment, NotificationAnnouncement,
		NotificationDeadline, NotificationSchedule, NotificationOverdue, NotificationTest:
		return t, true
	}
	if t, ok := notificationTypeAliases[value]; ok {
		return t, true
	}
	return "", false
}

func (t NotificationType) String() string {
	return string(t)
}
