package models

// Weekday names as stored on ClassSchedule.DayOfWeek.
const (
	DaySenin  = "senin"
	DaySelasa = "selasa"
	DayRabu   = "rabu"
	DayKamis  = "kamis"
	DayJumat  = "jumat"
	DaySabtu  = "sabtu"
	DayMinggu = "minggu"
)

// ClassSchedule is one subject slot in a class's weekly timetable.
type ClassSchedule struct {
	BaseModel

	Kelas     string `gorm:"type:varchar(64);not null;index:idx_schedule_class_day" json:"kelas"`
	DayOfWeek string `gorm:"type:varchar(16);not null;index:idx_schedule_class_day" json:"day_of_week"`
	Subject   string `gorm:"type:varchar(255);not null" json:"subject"`
	Position  int    `gorm:"not null" json:"position"`
}
