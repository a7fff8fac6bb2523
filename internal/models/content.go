package models

import (
	"time"

	"gorm.io/datatypes"
)

type AdmitCard struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	EnrollmentNo string `gorm:"size:50;not null;index" json:"enrollment_no" validate:"required,max=50"`
	RollNo       string `gorm:"size:50;not null" json:"roll_no" validate:"required,max=50"`
	CourseID     uint   `gorm:"not null" json:"course_id" validate:"required"`
	ExamCenter   string `gorm:"size:200" json:"exam_center" validate:"max=200"`
	ExamDate     string `gorm:"size:20" json:"exam_date" validate:"max=20"`
	ExamTime     string `gorm:"size:20" json:"exam_time" validate:"max=20"`
}

func (a AdmitCard) GetEnrollmentNo() string { return a.EnrollmentNo }

type Certificate struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	EnrollmentNo    string `gorm:"size:50;not null;index" json:"enrollment_no" validate:"required,max=50"`
	IssueDate       string `gorm:"size:20" json:"issue_date" validate:"max=20"`
	CertificatePath string `gorm:"size:255" json:"certificate_path" validate:"max=255"`
}

func (c Certificate) GetEnrollmentNo() string { return c.EnrollmentNo }

// Result holds one marks sheet. Marks maps subject name to obtained marks.
type Result struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	EnrollmentNo string         `gorm:"size:50;not null;index" json:"enrollment_no" validate:"required,max=50"`
	RollNo       string         `gorm:"size:50" json:"roll_no" validate:"max=50"`
	CourseID     uint           `gorm:"not null" json:"course_id" validate:"required"`
	Marks        datatypes.JSON `json:"marks"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (r Result) GetEnrollmentNo() string { return r.EnrollmentNo }

type StudyMaterial struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Title       string `gorm:"size:200;not null" json:"title" validate:"required,max=200"`
	Description string `gorm:"type:text" json:"description"`
	Type        string `gorm:"size:50" json:"type" validate:"max=50"`
	FileURL     string `gorm:"size:255" json:"file_url" validate:"max=255"`
	LinkURL     string `gorm:"size:255" json:"link_url" validate:"max=255"`
}

type Assignment struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Title       string `gorm:"size:200;not null" json:"title" validate:"required,max=200"`
	Description string `gorm:"type:text" json:"description"`
	FileURL     string `gorm:"size:255" json:"file_url" validate:"max=255"`
}

type InstituteMember struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:150;not null" json:"name" validate:"required,max=150"`
	Designation string `gorm:"size:150" json:"designation" validate:"max=150"`
	Photo       string `gorm:"size:255" json:"photo" validate:"max=255"`
}

type GalleryItem struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"size:150;not null" json:"name" validate:"required,max=150"`
	Category string `gorm:"size:100" json:"category" validate:"max=100"`
	Photo    string `gorm:"size:255" json:"photo" validate:"max=255"`
}

// SiteSettings is a singleton row (ID 1).
type SiteSettings struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	HeaderText   string    `gorm:"size:255" json:"header_text" validate:"max=255"`
	FooterText   string    `gorm:"size:255" json:"footer_text" validate:"max=255"`
	FacebookURL  string    `gorm:"size:255" json:"facebook_url" validate:"max=255"`
	InstagramURL string    `gorm:"size:255" json:"instagram_url" validate:"max=255"`
	YoutubeURL   string    `gorm:"size:255" json:"youtube_url" validate:"max=255"`
	LogoURL      string    `gorm:"size:255" json:"logo_url" validate:"max=255"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func DefaultSiteSettings() SiteSettings {
	return SiteSettings{
		ID:          1,
		HeaderText:  "SGC Skills & Computer Centre",
		FooterText:  "© SGCSC. All rights reserved.",
		FacebookURL: "#", InstagramURL: "#", YoutubeURL: "#",
	}
}
