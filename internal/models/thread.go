package models

import "time"

// Thread is a homework posting. Date is the local calendar day it was posted
// (stored as midnight in the service timezone) and is used to group duplicate
// titles from the same class.
type Thread struct {
	BaseModel

	Title    string     `gorm:"type:varchar(255);not null;index" json:"title"`
	AuthorID string     `gorm:"type:varchar(36);index;not null" json:"author_id"`
	Date     time.Time  `gorm:"index;not null" json:"date"`
	Deadline *time.Time `gorm:"index" json:"deadline"`

	Author   *User     `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Comments []Comment `gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE" json:"comments,omitempty"`
}

// Comment is a sub-task attached to a thread.
type Comment struct {
	BaseModel

	ThreadID string     `gorm:"type:varchar(36);index;not null" json:"thread_id"`
	AuthorID string     `gorm:"type:varchar(36);index;not null" json:"author_id"`
	Content  string     `gorm:"type:text;not null" json:"content"`
	Deadline *time.Time `json:"deadline"`

	Author *User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}

// History marks a thread as completed by a user.
type History struct {
	BaseModel

	UserID        string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_history_user_thread" json:"user_id"`
	ThreadID      string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_history_user_thread" json:"thread_id"`
	CompletedDate time.Time `gorm:"not null" json:"completed_date"`
}
