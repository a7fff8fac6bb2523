package models

import "time"

type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleFranchise Role = "FRANCHISE"
	RoleStudent   Role = "STUDENT"
	RoleGuest     Role = "GUEST"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleFranchise, RoleStudent:
		return true
	}
	return false
}

// RequiresOwner reports whether credentials of this role must point at a
// profile record.
func (r Role) RequiresOwner() bool {
	return r == RoleFranchise || r == RoleStudent
}

// Credential is the login record of one human actor. OwnerID points at a
// Franchise for RoleFranchise and at a Student for RoleStudent.
type Credential struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"size:100;not null;uniqueIndex:uq_credentials_username"`
	PasswordHash string `gorm:"size:255;not null"`
	Name         string `gorm:"size:150;not null"`
	Role         Role   `gorm:"size:20;not null;index:idx_credentials_owner,priority:1"`
	OwnerID      *uint  `gorm:"index:idx_credentials_owner,priority:2"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
