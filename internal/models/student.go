package models

import "time"

type StudentStatus string

const (
	StudentActive    StudentStatus = "active"
	StudentCompleted StudentStatus = "completed"
	StudentDropout   StudentStatus = "dropout"
)

func (s StudentStatus) Valid() bool {
	switch s {
	case StudentActive, StudentCompleted, StudentDropout:
		return true
	}
	return false
}

type Student struct {
	ID           uint   `gorm:"primaryKey"`
	EnrollmentNo string `gorm:"size:50;not null;uniqueIndex:uq_students_enrollment_no"`

	Name       string `gorm:"size:150;not null"`
	Gender     string `gorm:"size:10"`
	FatherName string `gorm:"size:150"`
	MotherName string `gorm:"size:150"`
	DOB        string `gorm:"size:20"`
	Email      string `gorm:"size:150"`
	Mobile     string `gorm:"size:20"`
	Address    string `gorm:"size:255"`
	State      string `gorm:"size:100"`
	District   string `gorm:"size:100"`

	// Prior qualification
	ExamPass        bool   `gorm:"not null;default:false"`
	MarksPercentage string `gorm:"size:10"`
	Board           string `gorm:"size:100"`
	PassingYear     string `gorm:"size:10"`

	CourseID     uint `gorm:"not null;index"`
	Course       *Course
	FranchiseID  uint `gorm:"not null;index"`
	Franchise    *Franchise
	SessionStart string `gorm:"size:20"`
	SessionEnd   string `gorm:"size:20"`

	Photo     string        `gorm:"size:255"`
	Status    StudentStatus `gorm:"size:20;not null;default:active"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
