package models

import "time"

// Announcement priorities, highest first.
const (
	PriorityUrgent = "urgent"
	PriorityNormal = "normal"
	PriorityLow    = "low"
)

// Announcement is a notice posted to one class, or to everyone when
// TargetKelas is nil.
type Announcement struct {
	BaseModel

	Title       string     `gorm:"type:varchar(200);not null" json:"title"`
	Content     string     `gorm:"type:text;not null" json:"content"`
	AuthorID    string     `gorm:"type:varchar(36);index;not null" json:"author_id"`
	TargetKelas *string    `gorm:"type:varchar(64);index" json:"target_kelas"`
	Priority    string     `gorm:"type:varchar(16);not null;default:normal" json:"priority"`
	IsPinned    bool       `gorm:"not null;default:false" json:"is_pinned"`
	ExpiresAt   *time.Time `gorm:"index" json:"expires_at"`

	Author *User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}

// PriorityRank orders priorities so that urgent sorts first.
func PriorityRank(priority string) int {
	switch priority {
	case PriorityUrgent:
		return 2
	case PriorityNormal:
		return 1
	default:
		return 0
	}
}

// ActiveAt reports whether the announcement is still visible at t.
func (a *Announcement) ActiveAt(t time.Time) bool {
	return a.ExpiresAt == nil || a.ExpiresAt.After(t)
}

// AnnouncementRead records that a user has seen an announcement.
type AnnouncementRead struct {
	BaseModel

	AnnouncementID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_announcement_read_user" json:"announcement_id"`
	UserID         string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_announcement_read_user" json:"user_id"`
	ReadAt         time.Time `gorm:"not null" json:"read_at"`
}
