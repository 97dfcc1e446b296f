package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionJobCreated       = "JOB_CREATED"
	ActionJobStatusUpdated = "JOB_STATUS_UPDATED"
	ActionJobCancelled     = "JOB_CANCELLED"

	ActionTaskCreated            = "TASK_CREATED"
	ActionTaskAutoCreated        = "TASK_AUTO_CREATED"
	ActionTaskAssignedPeer       = "TASK_ASSIGNED_PEER"
	ActionTaskCompleted          = "TASK_COMPLETED"
	ActionTaskCompletionRecorded = "TASK_COMPLETION_RECORDED"
	ActionTaskApproved           = "TASK_APPROVED"
	ActionTaskRejected           = "TASK_REJECTED"
	ActionTaskDeleted            = "TASK_DELETED"
	ActionTaskSkippedNoAssignee  = "TASK_SKIPPED_NO_ASSIGNEE"
)

// AuditLog tracks Who, What, and When for every engine state transition.
// Append-only: the engines write these records and never read them back.
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // nil when the system acted
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    string     `gorm:"type:jsonb" json:"details"` // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
