package models

type CourseType string

const (
	CourseLongTerm    CourseType = "Long Term"
	CourseShortTerm   CourseType = "Short Term"
	CourseCertificate CourseType = "Certificate"
)

type Course struct {
	ID          uint       `gorm:"primaryKey"`
	Name        string     `gorm:"size:200;not null"`
	Code        string     `gorm:"size:30;not null;uniqueIndex:uq_courses_code"`
	Duration    string     `gorm:"size:50"`
	Type        CourseType `gorm:"size:20"`
	Fees        float64    `gorm:"not null;default:0"`
	Description string     `gorm:"type:text"`
}

type Subject struct {
	ID       uint   `gorm:"primaryKey"`
	CourseID uint   `gorm:"not null;index"`
	Name     string `gorm:"size:150;not null"`
	MaxMarks int    `gorm:"not null"`
	MinMarks int    `gorm:"not null"`
}
