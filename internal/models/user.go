package models

import "strings"

// User is a student, class leader (danton) or administrator. Accounts are
// provisioned by the auth collaborator; this service only reads them.
type User struct {
	BaseModel

	Name     string  `gorm:"type:varchar(255);not null" json:"name"`
	Email    string  `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Kelas    *string `gorm:"type:varchar(64);index" json:"kelas"`
	IsAdmin  bool    `gorm:"not null;default:false" json:"is_admin"`
	IsDanton bool    `gorm:"not null;default:false" json:"is_danton"`

	DeviceTokens         []DeviceToken         `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	WebPushSubscriptions []WebPushSubscription `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Settings             *UserSettings         `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// ClassLabel returns the trimmed class label, or "" when the user has none.
func (u *User) ClassLabel() string {
	if u == nil || u.Kelas == nil {
		return ""
	}
	return strings.TrimSpace(*u.Kelas)
}

// InClass reports whether the user belongs to kelas after trimming both sides.
func (u *User) InClass(kelas string) bool {
	label := u.ClassLabel()
	return label != "" && label == strings.TrimSpace(kelas)
}
