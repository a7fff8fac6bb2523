package models

import "time"

type FranchiseStatus string

const (
	FranchisePending   FranchiseStatus = "pending"
	FranchiseActive    FranchiseStatus = "active"
	FranchiseSuspended FranchiseStatus = "suspended"
)

func (s FranchiseStatus) Valid() bool {
	switch s {
	case FranchisePending, FranchiseActive, FranchiseSuspended:
		return true
	}
	return false
}

// Franchise is one training center.
type Franchise struct {
	ID          uint   `gorm:"primaryKey"`
	InstituteID string `gorm:"size:50;not null;uniqueIndex:uq_franchises_institute_id"`

	InstituteName     string `gorm:"size:200;not null"`
	OwnerName         string `gorm:"size:150;not null"`
	OwnerDOB          string `gorm:"size:20"`
	AadharNumber      string `gorm:"size:20"`
	PanNumber         string `gorm:"size:20"`
	HeadQualification string `gorm:"size:150"`

	Email          string `gorm:"size:150;not null"`
	ContactNumber  string `gorm:"size:20;not null"`
	WhatsappNumber string `gorm:"size:20"`

	Address  string `gorm:"size:255"`
	State    string `gorm:"size:100"`
	District string `gorm:"size:100"`
	City     string `gorm:"size:100"`

	NumComputerOperators int    `gorm:"not null;default:0"`
	NumClassRooms        int    `gorm:"not null;default:0"`
	TotalComputers       int    `gorm:"not null;default:0"`
	CenterSpace          string `gorm:"size:100"`
	HasReception         bool   `gorm:"not null;default:false"`
	HasStaffRoom         bool   `gorm:"not null;default:false"`
	HasWaterSupply       bool   `gorm:"not null;default:false"`
	HasToilet            bool   `gorm:"not null;default:false"`

	// Opaque blob references produced by the upload service.
	AadharFront     string `gorm:"size:255"`
	AadharBack      string `gorm:"size:255"`
	PanImage        string `gorm:"size:255"`
	InstitutePhoto  string `gorm:"size:255"`
	OwnerSign       string `gorm:"size:255"`
	OwnerPhoto      string `gorm:"size:255"`
	CertificateCopy string `gorm:"size:255"`

	Status    FranchiseStatus `gorm:"size:20;not null;default:pending;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
