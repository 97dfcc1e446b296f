package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"jobtrack/internal/model"
	"jobtrack/internal/repository"

	"github.com/google/uuid"
)

// Actor is the authenticated identity attached to every engine operation.
// The HTTP layer builds it from the verified JWT; the engines trust it.
type Actor struct {
	ID   uuid.UUID
	Role string
}

// System is the actor recorded when the engine itself acts (chained
// propagation, imports without a session).
var System = Actor{Role: "system"}

func (a Actor) IsAdmin() bool {
	return a.Role == model.RoleAdmin || a.Role == model.RoleSuperAdmin
}

// writeAudit appends one audit record inside the current transaction.
func writeAudit(ctx context.Context, audits repository.AuditRepository, userID *uuid.UUID, action, entityID, entityName string, details map[string]interface{}) error {
	payload, err := json.Marshal(details)
	if err != nil {
		log.Println("audit: marshal details:", err)
		payload = []byte("{}")
	}
	return audits.Create(ctx, &model.AuditLog{
		UserID:     userID,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(payload),
	})
}

func fmtTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func fmtUUID(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

// --- Response DTOs shared by the job and task services ---

type AssigneeResponse struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Department string `json:"department"`
}

type CompletionResponse struct {
	UserID      string   `json:"user_id"`
	CompletedAt string   `json:"completed_at"`
	Remarks     string   `json:"remarks"`
	Attachments []string `json:"attachments"`
}

type TaskResponse struct {
	ID                string               `json:"id"`
	Title             string               `json:"title"`
	Description       string               `json:"description"`
	Assignees         []AssigneeResponse   `json:"assignees"`
	AssignedBy        *string              `json:"assigned_by"`
	Priority          string               `json:"priority"`
	Status            string               `json:"status"`
	Type              string               `json:"type"`
	JobID             *string              `json:"job_id"`
	JobDetails        model.JobSnapshot    `json:"job_details"`
	DueDate           *string              `json:"due_date"`
	CompletedAt       *string              `json:"completed_at"`
	ApprovedAt        *string              `json:"approved_at"`
	ApprovedBy        *string              `json:"approved_by"`
	RejectedAt        *string              `json:"rejected_at"`
	RejectedBy        *string              `json:"rejected_by"`
	RejectionReason   string               `json:"rejection_reason"`
	CompletionRemarks string               `json:"completion_remarks"`
	Completions       []CompletionResponse `json:"completions"`
	CreatedAt         string               `json:"created_at"`
}

type JobResponse struct {
	ID           string  `json:"id"`
	Month        string  `json:"month"`
	DocNo        string  `json:"doc_no"`
	CustomerName string  `json:"customer_name"`
	ItemCode     string  `json:"item_code"`
	Description  string  `json:"description"`
	Qty          int     `json:"qty"`
	Week         string  `json:"week"`
	Status       string  `json:"status"`
	CreatedBy    *string `json:"created_by"`
	CreatedAt    string  `json:"created_at"`
}

func toTaskResponse(t *model.Task) TaskResponse {
	resp := TaskResponse{
		ID:                t.ID.String(),
		Title:             t.Title,
		Description:       t.Description,
		AssignedBy:        fmtUUID(t.AssignedBy),
		Priority:          t.Priority,
		Status:            t.Status,
		Type:              t.Type,
		JobID:             fmtUUID(t.JobID),
		JobDetails:        t.JobDetails,
		DueDate:           fmtTime(t.DueDate),
		CompletedAt:       fmtTime(t.CompletedAt),
		ApprovedAt:        fmtTime(t.ApprovedAt),
		ApprovedBy:        fmtUUID(t.ApprovedBy),
		RejectedAt:        fmtTime(t.RejectedAt),
		RejectedBy:        fmtUUID(t.RejectedBy),
		RejectionReason:   t.RejectionReason,
		CompletionRemarks: t.CompletionRemarks,
		CreatedAt:         t.CreatedAt.Format(time.RFC3339),
	}
	for _, u := range t.Assignees {
		resp.Assignees = append(resp.Assignees, AssigneeResponse{
			ID:         u.ID.String(),
			Username:   u.Username,
			Department: u.Department,
		})
	}
	for _, c := range t.Completions {
		resp.Completions = append(resp.Completions, CompletionResponse{
			UserID:      c.UserID.String(),
			CompletedAt: c.CompletedAt.Format(time.RFC3339),
			Remarks:     c.Remarks,
			Attachments: c.Attachments,
		})
	}
	return resp
}

func toJobResponse(j *model.Job) JobResponse {
	return JobResponse{
		ID:           j.ID.String(),
		Month:        j.Month,
		DocNo:        j.DocNo,
		CustomerName: j.CustomerName,
		ItemCode:     j.ItemCode,
		Description:  j.Description,
		Qty:          j.Qty,
		Week:         j.Week,
		Status:       j.Status,
		CreatedBy:    fmtUUID(j.CreatedBy),
		CreatedAt:    j.CreatedAt.Format(time.RFC3339),
	}
}
