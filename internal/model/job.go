package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Terminal and side-branch job statuses. The progression statuses live in
// the workflow status flow table; these are referenced directly by the
// engines.
const (
	JobStatusReceived    = "sales order received"
	JobStatusCompleted   = "completed"
	JobStatusCancelled   = "so cancelled"
	JobStatusHold        = "hold"
	JobStatusHoldCleared = "hold cleared"
)

// Job is a production order moving through the fixed pipeline. Its status
// changes are the trigger for auto-task generation. The same DocNo may
// appear for different item codes, never twice for the same pair.
type Job struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Month        string     `gorm:"type:varchar(20)" json:"month"`
	DocNo        string     `gorm:"type:varchar(100);not null;uniqueIndex:idx_jobs_doc_item" json:"doc_no"`
	CustomerName string     `gorm:"type:varchar(255);not null" json:"customer_name"`
	ItemCode     string     `gorm:"type:varchar(100);not null;uniqueIndex:idx_jobs_doc_item" json:"item_code"`
	Description  string     `gorm:"type:text" json:"description"`
	Qty          int        `gorm:"not null" json:"qty"`
	Week         string     `gorm:"type:varchar(20)" json:"week"`
	Status       string     `gorm:"type:varchar(100);not null;index" json:"status"`
	CreatedBy    *uuid.UUID `gorm:"type:uuid;index" json:"created_by"` // nullable for bulk imports
	Creator      *User      `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (j *Job) BeforeCreate(_ *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}
