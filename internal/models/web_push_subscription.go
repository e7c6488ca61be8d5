package models

// WebPushSubscription is a browser push endpoint with its encryption keys.
// Endpoint is unique and follows the same ownership rules as DeviceToken.
type WebPushSubscription struct {
	BaseModel

	Endpoint  string `gorm:"type:varchar(1024);uniqueIndex;not null" json:"endpoint"`
	P256dh    string `gorm:"column:p256dh;type:varchar(255);not null" json:"p256dh"`
	Auth      string `gorm:"type:varchar(255);not null" json:"auth"`
	UserID    string `gorm:"type:varchar(36);index;not null" json:"user_id"`
	UserAgent string `gorm:"type:varchar(512)" json:"user_agent"`
}
