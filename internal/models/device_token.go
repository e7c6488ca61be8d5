package models

// DeviceToken is a native push token registered by an app installation.
// Token is unique: registering it again moves it to the latest user.
type DeviceToken struct {
	BaseModel

	Token      string `gorm:"type:varchar(512);uniqueIndex;not null" json:"token"`
	UserID     string `gorm:"type:varchar(36);index;not null" json:"user_id"`
	DeviceInfo string `gorm:"type:varchar(255)" json:"device_info"`
}
