package models

import (
	"time"

	"gorm.io/datatypes"
)

type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionDelete AuditAction = "delete"
	AuditActionStatus AuditAction = "status"
)

type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	// Franchise the record belongs to, nil for global records.
	FranchiseID *uint `gorm:"index" json:"franchise_id"`

	ActorID   uint   `json:"actor_id"`
	ActorName string `gorm:"size:150" json:"actor_name"`
	ActorRole Role   `gorm:"size:20" json:"actor_role"`

	// franchise, student, course, subject, credential, ...
	EntityType string `gorm:"size:50;index" json:"entity_type"`
	EntityID   uint   `gorm:"index" json:"entity_id"`

	Action      AuditAction `gorm:"size:20" json:"action"`
	Description string      `gorm:"size:255" json:"description"`

	BeforeData datatypes.JSON `json:"before_data"`
	AfterData  datatypes.JSON `json:"after_data"`
}
