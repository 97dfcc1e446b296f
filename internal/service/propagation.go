package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"jobtrack/internal/model"
	"jobtrack/internal/repository"
	"jobtrack/internal/workflow"
	"jobtrack/pkg/apperror"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Due windows and priorities for auto-generated tasks. Hold tasks get the
// short window and elevated priority.
const (
	defaultDueIn        = 7 * 24 * time.Hour
	holdDueIn           = 3 * 24 * time.Hour
	defaultAutoPriority = model.PriorityMedium
	holdAutoPriority    = model.PriorityHigh
)

// Propagator is the auto-task generation engine. Given a job and a status
// it consults the flow table, picks the responsible user for the mapped
// stage, and creates the follow-up job-auto task. "No flow entry" and "no
// responsible user" are expected outcomes, not errors: the result is simply
// a nil task.
//
// All methods expect to run inside a transaction context created by
// repository.TransactionManager.
type Propagator struct {
	db     *gorm.DB
	jobs   repository.JobRepository
	tasks  repository.TaskRepository
	users  repository.UserRepository
	audits repository.AuditRepository
	flow   *workflow.Table
}

func NewPropagator(db *gorm.DB, jobs repository.JobRepository, tasks repository.TaskRepository, users repository.UserRepository, audits repository.AuditRepository, flow *workflow.Table) *Propagator {
	return &Propagator{db: db, jobs: jobs, tasks: tasks, users: users, audits: audits, flow: flow}
}

// Flow exposes the table for status validation by the job service.
func (p *Propagator) Flow() *workflow.Table { return p.flow }

// Propagate creates the next job-auto task for job at the given status.
// Returns nil when the status is terminal, unknown, already propagated, or
// no active user exists in the target department.
func (p *Propagator) Propagate(ctx context.Context, job *model.Job, status string) (*model.Task, error) {
	status = strings.ToLower(strings.TrimSpace(status))

	if status == workflow.StatusCancelled {
		err := writeAudit(ctx, p.audits, nil, model.ActionJobCancelled, job.ID.String(), job.DocNo, map[string]interface{}{
			"doc_no":    job.DocNo,
			"item_code": job.ItemCode,
		})
		return nil, err
	}

	entry, ok := p.flow.Lookup(status)
	if !ok || entry.NextTask == "" {
		// Terminal or unrecognized status: nothing to generate.
		return nil, nil
	}

	assignee, err := p.findResponsible(ctx, entry.Stage)
	if err != nil {
		return nil, fmt.Errorf("select responsible user for stage %q: %w", entry.Stage, err)
	}
	if assignee == nil {
		// Soft failure: the pipeline stalls here until the department has
		// an active member. Logged and audited for operational visibility.
		log.Printf("propagation: no active user in department %q for job %s, task skipped", entry.Stage, job.DocNo)
		err := writeAudit(ctx, p.audits, nil, model.ActionTaskSkippedNoAssignee, job.ID.String(), job.DocNo, map[string]interface{}{
			"stage":  entry.Stage,
			"status": status,
		})
		return nil, err
	}

	// Guard against duplicate auto-tasks for the same pipeline transition
	// under concurrent status updates: serialize on an advisory lock, then
	// check for an active task occupying the slot.
	lockKey := fmt.Sprintf("job-auto:%s:%s:%s", job.ID, entry.Stage, entry.Next)
	if err := repository.AcquireAdvisoryLock(ctx, p.db, lockKey); err != nil {
		return nil, fmt.Errorf("acquire propagation lock: %w", err)
	}
	active, err := p.tasks.CountActiveAuto(ctx, job.ID, entry.Stage, entry.Next)
	if err != nil {
		return nil, fmt.Errorf("check active auto-tasks: %w", err)
	}
	if active > 0 {
		return nil, nil
	}

	dueIn := defaultDueIn
	priority := defaultAutoPriority
	if status == workflow.StatusHold {
		dueIn = holdDueIn
		priority = holdAutoPriority
	}
	due := time.Now().Add(dueIn)

	jobID := job.ID
	task := &model.Task{
		Title:     entry.NextTask,
		Type:      model.TaskTypeJobAuto,
		Assignees: []model.User{*assignee},
		Priority:  priority,
		Status:    model.TaskStatusPending,
		JobID:     &jobID,
		JobDetails: model.JobSnapshot{
			DocNo:        job.DocNo,
			CustomerName: job.CustomerName,
			ItemCode:     job.ItemCode,
			Description:  job.Description,
			Qty:          job.Qty,
			CurrentStage: entry.Stage,
			NextStage:    entry.Next,
		},
		DueDate: &due,
	}
	if err := p.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create auto-task: %w", err)
	}

	if err := writeAudit(ctx, p.audits, nil, model.ActionTaskAutoCreated, task.ID.String(), task.Title, map[string]interface{}{
		"job_id":      job.ID.String(),
		"doc_no":      job.DocNo,
		"stage":       entry.Stage,
		"next_stage":  entry.Next,
		"assigned_to": assignee.Username,
	}); err != nil {
		return nil, err
	}

	return task, nil
}

// AdvanceJob is the single authoritative job status mutation path, shared
// by the explicit status-update operation and chained propagation on
// task completion. Returns the updated job and the generated task, if any.
func (p *Propagator) AdvanceJob(ctx context.Context, jobID uuid.UUID, newStatus string, actorID *uuid.UUID) (*model.Job, *model.Task, error) {
	status := strings.ToLower(strings.TrimSpace(newStatus))
	if !p.flow.Known(status) {
		return nil, nil, apperror.Validationf("unknown job status %q", newStatus)
	}

	job, err := p.jobs.FindByIDForUpdate(ctx, jobID)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, nil, apperror.NotFoundf("job %s not found", jobID)
		}
		return nil, nil, err
	}

	previous := job.Status
	if err := p.jobs.UpdateStatus(ctx, job.ID, status); err != nil {
		return nil, nil, fmt.Errorf("update job status: %w", err)
	}
	job.Status = status

	if err := writeAudit(ctx, p.audits, actorID, model.ActionJobStatusUpdated, job.ID.String(), job.DocNo, map[string]interface{}{
		"from": previous,
		"to":   status,
	}); err != nil {
		return nil, nil, err
	}

	task, err := p.Propagate(ctx, job, status)
	if err != nil {
		return nil, nil, err
	}
	return job, task, nil
}

// findResponsible returns the first active role=user member whose
// department matches the stage name, case-insensitively, in stable account
// order. nil means the department is empty.
func (p *Propagator) findResponsible(ctx context.Context, stage string) (*model.User, error) {
	pattern, err := regexp.Compile("(?i)" + regexp.QuoteMeta(stage))
	if err != nil {
		return nil, err
	}
	candidates, err := p.users.ListActiveByRole(ctx, model.RoleUser)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		if pattern.MatchString(candidates[i].Department) {
			return &candidates[i], nil
		}
	}
	return nil, nil
}

func isRecordNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
