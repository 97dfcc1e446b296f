package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"jobtrack/internal/model"
	"jobtrack/internal/notifier"
	"jobtrack/internal/repository"
	"jobtrack/pkg/apperror"

	"github.com/google/uuid"
)

// --- DTOs ---

type CreateTaskRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	AssignedTo  []string   `json:"assigned_to" binding:"required,min=1"`
	Priority    string     `json:"priority"`
	Type        string     `json:"type"`
	JobID       *string    `json:"job_id"`
	DueDate     *time.Time `json:"due_date"`
}

type PeerTaskRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	AssignedTo  []string   `json:"assigned_to" binding:"required,min=1"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
}

// CompleteTaskResult reports what happened on a complete() call. For
// multi-assignee tasks the call may record a partial completion: the task
// stays pending and WaitingOn says how many assignees are still missing.
type CompleteTaskResult struct {
	Task      TaskResponse  `json:"task"`
	Submitted bool          `json:"submitted"`
	WaitingOn int           `json:"waiting_on"`
	Message   string        `json:"message"`
	NextTask  *TaskResponse `json:"next_task,omitempty"`
}

// --- Interface ---

type TaskService interface {
	CreateManualTask(ctx context.Context, req CreateTaskRequest, actor Actor) (*TaskResponse, error)
	AssignPeerTask(ctx context.Context, req PeerTaskRequest, actor Actor) (*TaskResponse, error)
	CompleteTask(ctx context.Context, id string, actor Actor, remarks string, attachments []string) (*CompleteTaskResult, error)
	ApproveTask(ctx context.Context, id string, actor Actor) (*TaskResponse, error)
	RejectTask(ctx context.Context, id string, actor Actor, reason string) (*TaskResponse, error)
	DeleteTask(ctx context.Context, id string, actor Actor) error
	GetTask(ctx context.Context, id string) (*TaskResponse, error)
	ListTasks(ctx context.Context, filter repository.TaskFilter) ([]TaskResponse, int64, error)
}

type taskService struct {
	tasks      repository.TaskRepository
	users      repository.UserRepository
	jobs       repository.JobRepository
	audits     repository.AuditRepository
	txm        repository.TransactionManager
	propagator *Propagator
	notify     notifier.Dispatcher
}

func NewTaskService(tasks repository.TaskRepository, users repository.UserRepository, jobs repository.JobRepository, audits repository.AuditRepository, txm repository.TransactionManager, propagator *Propagator, notify notifier.Dispatcher) TaskService {
	return &taskService{tasks: tasks, users: users, jobs: jobs, audits: audits, txm: txm, propagator: propagator, notify: notify}
}

// --- Creation ---

func (s *taskService) CreateManualTask(ctx context.Context, req CreateTaskRequest, actor Actor) (*TaskResponse, error) {
	taskType := req.Type
	if taskType == "" {
		taskType = model.TaskTypeManual
	}
	if taskType == model.TaskTypeJobAuto {
		return nil, apperror.Validationf("job-auto tasks are generated by the workflow engine")
	}
	if !canCreateType(actor, taskType) {
		return nil, apperror.Unauthorizedf("role %q may not create %q tasks", actor.Role, taskType)
	}
	return s.createAssignedTask(ctx, req.Title, req.Description, req.AssignedTo, req.Priority, taskType, req.JobID, req.DueDate, actor, model.ActionTaskCreated)
}

func (s *taskService) AssignPeerTask(ctx context.Context, req PeerTaskRequest, actor Actor) (*TaskResponse, error) {
	return s.createAssignedTask(ctx, req.Title, req.Description, req.AssignedTo, req.Priority, model.TaskTypeUser, nil, req.DueDate, actor, model.ActionTaskAssignedPeer)
}

func (s *taskService) createAssignedTask(ctx context.Context, title, description string, assignedTo []string, priority, taskType string, jobIDStr *string, dueDate *time.Time, actor Actor, auditAction string) (*TaskResponse, error) {
	if strings.TrimSpace(title) == "" {
		return nil, apperror.Validationf("title is required")
	}
	if len(assignedTo) == 0 {
		return nil, apperror.Validationf("at least one assignee is required")
	}
	priority = normalizePriority(priority)
	if priority == "" {
		return nil, apperror.Validationf("invalid priority")
	}

	// Resolve assignees, dropping duplicate ids.
	seen := make(map[uuid.UUID]bool, len(assignedTo))
	assignees := make([]model.User, 0, len(assignedTo))
	for _, raw := range assignedTo {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, apperror.Validationf("invalid assignee id %q", raw)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			if isRecordNotFound(err) {
				return nil, apperror.NotFoundf("assignee %s not found", raw)
			}
			return nil, err
		}
		if !u.Active {
			return nil, apperror.Validationf("assignee %s is inactive", u.Username)
		}
		assignees = append(assignees, *u)
	}

	assignedBy := actor.ID
	task := &model.Task{
		Title:       title,
		Description: description,
		Assignees:   assignees,
		AssignedBy:  &assignedBy,
		Priority:    priority,
		Status:      model.TaskStatusPending,
		Type:        taskType,
		DueDate:     dueDate,
	}

	if jobIDStr != nil && *jobIDStr != "" {
		jobID, err := uuid.Parse(*jobIDStr)
		if err != nil {
			return nil, apperror.Validationf("invalid job id %q", *jobIDStr)
		}
		job, err := s.jobs.FindByID(ctx, jobID)
		if err != nil {
			if isRecordNotFound(err) {
				return nil, apperror.NotFoundf("job %s not found", *jobIDStr)
			}
			return nil, err
		}
		task.JobID = &job.ID
		task.JobDetails = model.JobSnapshot{
			DocNo:        job.DocNo,
			CustomerName: job.CustomerName,
			ItemCode:     job.ItemCode,
			Description:  job.Description,
			Qty:          job.Qty,
		}
	}

	err := s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.tasks.Create(txCtx, task); err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		return writeAudit(txCtx, s.audits, &assignedBy, auditAction, task.ID.String(), task.Title, map[string]interface{}{
			"type":      taskType,
			"assignees": len(assignees),
		})
	})
	if err != nil {
		return nil, err
	}

	for _, u := range assignees {
		s.notify.Dispatch(context.Background(), notifier.Event{
			Type:    notifier.EventTaskAssigned,
			Title:   "New task assigned",
			Message: task.Title,
			UserID:  u.ID.String(),
			Email:   u.Email,
			TaskID:  task.ID.String(),
		})
	}

	resp := toTaskResponse(task)
	return &resp, nil
}

// --- Completion ---

func (s *taskService) CompleteTask(ctx context.Context, id string, actor Actor, remarks string, attachments []string) (*CompleteTaskResult, error) {
	taskID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.Validationf("invalid task id %q", id)
	}

	var result *CompleteTaskResult
	var chained *model.Task
	var chainedJob *model.Job
	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		task, err := s.tasks.FindByIDForUpdate(txCtx, taskID)
		if err != nil {
			if isRecordNotFound(err) {
				return apperror.NotFoundf("task %s not found", id)
			}
			return err
		}
		if !task.AssignedTo(actor.ID) {
			return apperror.Unauthorizedf("user is not assigned to this task")
		}
		if task.Status != model.TaskStatusPending {
			return apperror.InvalidStatef("task is %s, only pending tasks can be completed", task.Status)
		}

		now := time.Now()
		if len(task.Assignees) <= 1 {
			task.Status = model.TaskStatusPendingApproval
			task.CompletedAt = &now
			task.CompletionRemarks = remarks
			task.Attachments = attachments
			if err := s.tasks.Update(txCtx, task); err != nil {
				return fmt.Errorf("update task: %w", err)
			}
			if err := s.auditCompleted(txCtx, task, actor); err != nil {
				return err
			}

			// Chained propagation happens at completion time, not at
			// approval time, so the next stage is never blocked on
			// approval latency.
			if task.Type == model.TaskTypeJobAuto && task.JobID != nil && task.JobDetails.NextStage != "" {
				job, next, err := s.propagator.AdvanceJob(txCtx, *task.JobID, task.JobDetails.NextStage, nil)
				if err != nil {
					return err
				}
				chained = next
				chainedJob = job
			}

			result = &CompleteTaskResult{
				Task:      toTaskResponse(task),
				Submitted: true,
				Message:   "task submitted for approval",
			}
			return nil
		}

		// Multi-assignee: record this actor's completion and check whether
		// everyone has now completed. The row lock taken above makes the
		// append-and-count atomic against concurrent completions.
		done, err := s.tasks.HasCompletion(txCtx, task.ID, actor.ID)
		if err != nil {
			return err
		}
		if done {
			return apperror.Conflictf("completion already recorded for this user")
		}
		if err := s.tasks.AddCompletion(txCtx, &model.TaskCompletion{
			TaskID:      task.ID,
			UserID:      actor.ID,
			CompletedAt: now,
			Remarks:     remarks,
			Attachments: attachments,
		}); err != nil {
			return fmt.Errorf("record completion: %w", err)
		}

		count, err := s.tasks.CountCompletions(txCtx, task.ID)
		if err != nil {
			return err
		}
		if int(count) < len(task.Assignees) {
			if err := writeAudit(txCtx, s.audits, &actor.ID, model.ActionTaskCompletionRecorded, task.ID.String(), task.Title, map[string]interface{}{
				"completed": count,
				"of":        len(task.Assignees),
			}); err != nil {
				return err
			}
			waiting := len(task.Assignees) - int(count)
			reloaded, err := s.tasks.FindByIDForUpdate(txCtx, task.ID)
			if err != nil {
				return err
			}
			result = &CompleteTaskResult{
				Task:      toTaskResponse(reloaded),
				Submitted: false,
				WaitingOn: waiting,
				Message:   fmt.Sprintf("completion recorded, waiting on %d others", waiting),
			}
			return nil
		}

		// Last assignee: aggregate remarks and submit for approval.
		completions, err := s.tasks.ListCompletions(txCtx, task.ID)
		if err != nil {
			return err
		}
		task.Status = model.TaskStatusPendingApproval
		task.CompletedAt = &now
		task.CompletionRemarks = joinRemarks(completions)
		if err := s.tasks.Update(txCtx, task); err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		if err := s.auditCompleted(txCtx, task, actor); err != nil {
			return err
		}
		task.Completions = completions
		result = &CompleteTaskResult{
			Task:      toTaskResponse(task),
			Submitted: true,
			Message:   "all assignees completed, task submitted for approval",
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Submitted {
		s.notify.Dispatch(context.Background(), notifier.Event{
			Type:    notifier.EventTaskSubmitted,
			Title:   "Task completion submitted for approval",
			Message: result.Task.Title,
			TaskID:  result.Task.ID,
		})
	}
	if chained != nil {
		if chainedJob != nil && len(chained.Assignees) > 0 {
			assignee := chained.Assignees[0]
			s.notify.Dispatch(context.Background(), notifier.Event{
				Type:    notifier.EventTaskAssigned,
				Title:   "New task assigned",
				Message: fmt.Sprintf("%s (job %s)", chained.Title, chainedJob.DocNo),
				UserID:  assignee.ID.String(),
				Email:   assignee.Email,
				TaskID:  chained.ID.String(),
				JobID:   chainedJob.ID.String(),
			})
		}
		next := toTaskResponse(chained)
		result.NextTask = &next
	}
	return result, nil
}

func (s *taskService) auditCompleted(ctx context.Context, task *model.Task, actor Actor) error {
	return writeAudit(ctx, s.audits, &actor.ID, model.ActionTaskCompleted, task.ID.String(), task.Title, map[string]interface{}{
		"type":   task.Type,
		"status": task.Status,
	})
}

// --- Approval / rejection ---

func (s *taskService) ApproveTask(ctx context.Context, id string, actor Actor) (*TaskResponse, error) {
	taskID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.Validationf("invalid task id %q", id)
	}

	var resp TaskResponse
	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		task, err := s.tasks.FindByIDForUpdate(txCtx, taskID)
		if err != nil {
			if isRecordNotFound(err) {
				return apperror.NotFoundf("task %s not found", id)
			}
			return err
		}
		if task.Status != model.TaskStatusPendingApproval {
			return apperror.InvalidStatef("task is %s, only pending_approval tasks can be approved", task.Status)
		}
		if !canApproveOrReject(actor, task) {
			return apperror.Unauthorizedf("user may not approve this task")
		}

		now := time.Now()
		approver := actor.ID
		task.Status = model.TaskStatusCompleted
		task.ApprovedAt = &now
		task.ApprovedBy = &approver
		if err := s.tasks.Update(txCtx, task); err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		if err := writeAudit(txCtx, s.audits, &approver, model.ActionTaskApproved, task.ID.String(), task.Title, map[string]interface{}{
			"type": task.Type,
		}); err != nil {
			return err
		}
		resp = toTaskResponse(task)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *taskService) RejectTask(ctx context.Context, id string, actor Actor, reason string) (*TaskResponse, error) {
	taskID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.Validationf("invalid task id %q", id)
	}
	if strings.TrimSpace(reason) == "" {
		return nil, apperror.Validationf("rejection reason is required")
	}

	var resp TaskResponse
	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		task, err := s.tasks.FindByIDForUpdate(txCtx, taskID)
		if err != nil {
			if isRecordNotFound(err) {
				return apperror.NotFoundf("task %s not found", id)
			}
			return err
		}
		if task.Status != model.TaskStatusPendingApproval {
			return apperror.InvalidStatef("task is %s, only pending_approval tasks can be rejected", task.Status)
		}
		if !canApproveOrReject(actor, task) {
			return apperror.Unauthorizedf("user may not reject this task")
		}

		now := time.Now()
		rejecter := actor.ID
		task.Status = model.TaskStatusPending
		task.CompletedAt = nil
		task.CompletionRemarks = ""
		task.RejectedAt = &now
		task.RejectedBy = &rejecter
		task.RejectionReason = reason
		if err := s.tasks.Update(txCtx, task); err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		// Individual completions are reset so every assignee must complete
		// again after a rejection; stale completions must not satisfy the
		// all-assignees gate.
		if err := s.tasks.DeleteCompletions(txCtx, task.ID); err != nil {
			return fmt.Errorf("clear completions: %w", err)
		}
		task.Completions = nil
		if err := writeAudit(txCtx, s.audits, &rejecter, model.ActionTaskRejected, task.ID.String(), task.Title, map[string]interface{}{
			"reason": reason,
		}); err != nil {
			return err
		}
		resp = toTaskResponse(task)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Deletion / queries ---

func (s *taskService) DeleteTask(ctx context.Context, id string, actor Actor) error {
	taskID, err := uuid.Parse(id)
	if err != nil {
		return apperror.Validationf("invalid task id %q", id)
	}
	return s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		task, err := s.tasks.FindByIDForUpdate(txCtx, taskID)
		if err != nil {
			if isRecordNotFound(err) {
				return apperror.NotFoundf("task %s not found", id)
			}
			return err
		}
		if !canDelete(actor, task) {
			return apperror.Unauthorizedf("user may not delete this task")
		}
		if err := s.tasks.Delete(txCtx, task); err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		return writeAudit(txCtx, s.audits, &actor.ID, model.ActionTaskDeleted, task.ID.String(), task.Title, map[string]interface{}{
			"type":   task.Type,
			"status": task.Status,
		})
	})
}

func (s *taskService) GetTask(ctx context.Context, id string) (*TaskResponse, error) {
	taskID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.Validationf("invalid task id %q", id)
	}
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, apperror.NotFoundf("task %s not found", id)
		}
		return nil, err
	}
	resp := toTaskResponse(task)
	return &resp, nil
}

func (s *taskService) ListTasks(ctx context.Context, filter repository.TaskFilter) ([]TaskResponse, int64, error) {
	tasks, total, err := s.tasks.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	out := make([]TaskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, toTaskResponse(&tasks[i]))
	}
	return out, total, nil
}

// --- Helpers ---

func normalizePriority(priority string) string {
	if priority == "" {
		return model.PriorityMedium
	}
	switch strings.ToLower(priority) {
	case model.PriorityLow, model.PriorityMedium, model.PriorityHigh, model.PriorityUrgent:
		return strings.ToLower(priority)
	}
	return ""
}

// joinRemarks concatenates individual completion remarks in completion
// order, semicolon-joined, dropping empty ones.
func joinRemarks(completions []model.TaskCompletion) string {
	parts := make([]string, 0, len(completions))
	for _, c := range completions {
		if r := strings.TrimSpace(c.Remarks); r != "" {
			parts = append(parts, r)
		}
	}
	return strings.Join(parts, "; ")
}
