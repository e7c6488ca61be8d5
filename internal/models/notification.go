package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is an in-app notification shown in the user's inbox.
type Notification struct {
	BaseModel

	UserID    string         `gorm:"type:varchar(36);index;not null" json:"user_id"`
	Type      string         `gorm:"type:varchar(32);not null" json:"type"`
	Title     string         `gorm:"type:varchar(255);not null" json:"title"`
	Message   string         `gorm:"type:text" json:"message"`
	ThreadID  *string        `gorm:"type:varchar(36);index" json:"thread_id"`
	CommentID *string        `gorm:"type:varchar(36)" json:"comment_id"`
	Metadata  datatypes.JSON `json:"metadata"`

	IsRead bool       `gorm:"not null;default:false;index" json:"is_read"`
	ReadAt *time.Time `json:"read_at"`
}
