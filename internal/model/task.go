package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaskStatus enum constants. Rejection is not a status: a rejected task
// reverts to pending with rejectedAt/By/reason recorded on the row.
const (
	TaskStatusPending         = "pending"
	TaskStatusPendingApproval = "pending_approval"
	TaskStatusCompleted       = "completed"
)

// TaskType enum constants
const (
	TaskTypeManual     = "manual"
	TaskTypeJobAuto    = "job-auto"
	TaskTypeAdmin      = "admin"
	TaskTypeSuperAdmin = "super-admin"
	TaskTypeUser       = "user" // peer-assigned
)

// TaskPriority enum constants
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// JobSnapshot is the denormalized copy of job fields captured when a task is
// created. It is a value, not a live reference: later edits to the Job do
// not propagate back into existing tasks.
type JobSnapshot struct {
	DocNo        string `gorm:"type:varchar(100)" json:"doc_no"`
	CustomerName string `gorm:"type:varchar(255)" json:"customer_name"`
	ItemCode     string `gorm:"type:varchar(100)" json:"item_code"`
	Description  string `gorm:"type:text" json:"description"`
	Qty          int    `json:"qty"`
	CurrentStage string `gorm:"type:varchar(50)" json:"current_stage"`
	NextStage    string `gorm:"type:varchar(100)" json:"next_stage"`
}

// Task is a unit of work with an approval gate. It may be created manually,
// peer-assigned, or generated by the propagation engine (type job-auto).
type Task struct {
	ID                uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Title             string           `gorm:"type:varchar(255);not null" json:"title"`
	Description       string           `gorm:"type:text" json:"description"`
	Assignees         []User           `gorm:"many2many:task_assignees" json:"assignees"`
	AssignedBy        *uuid.UUID       `gorm:"type:uuid;index" json:"assigned_by"` // nil for system-generated tasks
	Assigner          *User            `gorm:"foreignKey:AssignedBy" json:"assigner,omitempty"`
	Priority          string           `gorm:"type:varchar(20);not null;default:'medium'" json:"priority"`
	Status            string           `gorm:"type:varchar(30);not null;default:'pending';index" json:"status"`
	Type              string           `gorm:"type:varchar(30);not null;index" json:"type"`
	JobID             *uuid.UUID       `gorm:"type:uuid;index" json:"job_id"`
	Job               *Job             `gorm:"foreignKey:JobID" json:"job,omitempty"`
	JobDetails        JobSnapshot      `gorm:"embedded;embeddedPrefix:job_" json:"job_details"`
	DueDate           *time.Time       `json:"due_date"`
	CompletedAt       *time.Time       `json:"completed_at"`
	ApprovedAt        *time.Time       `json:"approved_at"`
	ApprovedBy        *uuid.UUID       `gorm:"type:uuid" json:"approved_by"`
	Approver          *User            `gorm:"foreignKey:ApprovedBy" json:"approver,omitempty"`
	RejectedAt        *time.Time       `json:"rejected_at"`
	RejectedBy        *uuid.UUID       `gorm:"type:uuid" json:"rejected_by"`
	RejectionReason   string           `gorm:"type:text" json:"rejection_reason"`
	CompletionRemarks string           `gorm:"type:text" json:"completion_remarks"`
	Attachments       []string         `gorm:"serializer:json" json:"attachments"`
	Completions       []TaskCompletion `gorm:"foreignKey:TaskID" json:"completions"`
	CreatedAt         time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t *Task) BeforeCreate(_ *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Active reports whether the task still occupies its pipeline slot
// (pending or awaiting approval).
func (t *Task) Active() bool {
	return t.Status == TaskStatusPending || t.Status == TaskStatusPendingApproval
}

// AssignedTo reports whether userID is one of the task assignees.
func (t *Task) AssignedTo(userID uuid.UUID) bool {
	for _, u := range t.Assignees {
		if u.ID == userID {
			return true
		}
	}
	return false
}

// TaskCompletion records one assignee's completion of a multi-assignee
// task. Unique per (task, user).
type TaskCompletion struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TaskID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_completions_task_user" json:"task_id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_completions_task_user" json:"user_id"`
	User        *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CompletedAt time.Time `gorm:"not null" json:"completed_at"`
	Remarks     string    `gorm:"type:text" json:"remarks"`
	Attachments []string  `gorm:"serializer:json" json:"attachments"`
}

func (c *TaskCompletion) BeforeCreate(_ *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
