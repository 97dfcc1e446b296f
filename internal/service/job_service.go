package service

import (
	"context"
	"fmt"
	"strings"

	"jobtrack/internal/model"
	"jobtrack/internal/notifier"
	"jobtrack/internal/repository"
	"jobtrack/internal/workflow"
	"jobtrack/pkg/apperror"

	"github.com/google/uuid"
)

// --- DTOs ---

type CreateJobRequest struct {
	Month        string `json:"month"`
	DocNo        string `json:"doc_no" binding:"required"`
	CustomerName string `json:"customer_name" binding:"required"`
	ItemCode     string `json:"item_code" binding:"required"`
	Description  string `json:"description"`
	Qty          int    `json:"qty" binding:"required"`
	Week         string `json:"week"`
	Status       string `json:"status"`
}

// JobResult pairs the created/updated job with the auto-task the
// propagation engine generated for it, if any.
type JobResult struct {
	Job           JobResponse   `json:"job"`
	GeneratedTask *TaskResponse `json:"generated_task,omitempty"`
}

// BulkRowResult reports the outcome for one row of a bulk import.
type BulkRowResult struct {
	Index int     `json:"index"`
	DocNo string  `json:"doc_no"`
	JobID *string `json:"job_id,omitempty"`
	Error string  `json:"error,omitempty"`
}

type BulkJobResult struct {
	Created int             `json:"created"`
	Failed  int             `json:"failed"`
	Rows    []BulkRowResult `json:"rows"`
}

// --- Interface ---

type JobService interface {
	CreateJob(ctx context.Context, req CreateJobRequest, actor Actor) (*JobResult, error)
	BulkCreateJobs(ctx context.Context, reqs []CreateJobRequest, actor Actor) (*BulkJobResult, error)
	UpdateJobStatus(ctx context.Context, id, newStatus string, actor Actor) (*JobResult, error)
	GetJob(ctx context.Context, id string) (*JobResponse, error)
	ListJobs(ctx context.Context, filter repository.JobFilter) ([]JobResponse, int64, error)
}

type jobService struct {
	jobs       repository.JobRepository
	txm        repository.TransactionManager
	propagator *Propagator
	notify     notifier.Dispatcher
}

func NewJobService(jobs repository.JobRepository, txm repository.TransactionManager, propagator *Propagator, notify notifier.Dispatcher) JobService {
	return &jobService{jobs: jobs, txm: txm, propagator: propagator, notify: notify}
}

// --- Implementation ---

func (s *jobService) CreateJob(ctx context.Context, req CreateJobRequest, actor Actor) (*JobResult, error) {
	if err := validateJobRequest(req); err != nil {
		return nil, err
	}
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if status == "" {
		status = model.JobStatusReceived
	}
	if !s.propagator.Flow().Known(status) {
		return nil, apperror.Validationf("unknown job status %q", req.Status)
	}

	var createdBy *uuid.UUID
	if actor.ID != uuid.Nil {
		id := actor.ID
		createdBy = &id
	}

	job := &model.Job{
		Month:        req.Month,
		DocNo:        strings.TrimSpace(req.DocNo),
		CustomerName: req.CustomerName,
		ItemCode:     strings.TrimSpace(req.ItemCode),
		Description:  req.Description,
		Qty:          req.Qty,
		Week:         req.Week,
		Status:       status,
		CreatedBy:    createdBy,
	}

	var generated *model.Task
	err := s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.jobs.FindByDocItem(txCtx, job.DocNo, job.ItemCode); err == nil {
			return apperror.Conflictf("job with doc no %q and item code %q already exists", job.DocNo, job.ItemCode)
		} else if !isRecordNotFound(err) {
			return err
		}

		if err := s.jobs.Create(txCtx, job); err != nil {
			return fmt.Errorf("create job: %w", err)
		}

		if err := writeAudit(txCtx, s.propagator.audits, createdBy, model.ActionJobCreated, job.ID.String(), job.DocNo, map[string]interface{}{
			"doc_no":    job.DocNo,
			"item_code": job.ItemCode,
			"status":    status,
		}); err != nil {
			return err
		}

		task, err := s.propagator.Propagate(txCtx, job, status)
		if err != nil {
			return err
		}
		generated = task
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitJobEvents(job, generated)

	result := &JobResult{Job: toJobResponse(job)}
	if generated != nil {
		resp := toTaskResponse(generated)
		result.GeneratedTask = &resp
	}
	return result, nil
}

// BulkCreateJobs applies CreateJob per row, collecting per-row outcomes
// instead of failing the batch. Duplicate (docNo, itemCode) rows are
// reported as conflicts and skipped.
func (s *jobService) BulkCreateJobs(ctx context.Context, reqs []CreateJobRequest, actor Actor) (*BulkJobResult, error) {
	if len(reqs) == 0 {
		return nil, apperror.Validationf("no rows provided")
	}
	result := &BulkJobResult{Rows: make([]BulkRowResult, 0, len(reqs))}
	for i, req := range reqs {
		row := BulkRowResult{Index: i, DocNo: req.DocNo}
		created, err := s.CreateJob(ctx, req, actor)
		if err != nil {
			row.Error = err.Error()
			result.Failed++
		} else {
			row.JobID = &created.Job.ID
			result.Created++
		}
		result.Rows = append(result.Rows, row)
	}
	return result, nil
}

func (s *jobService) UpdateJobStatus(ctx context.Context, id, newStatus string, actor Actor) (*JobResult, error) {
	jobID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.Validationf("invalid job id %q", id)
	}
	if strings.TrimSpace(newStatus) == "" {
		return nil, apperror.Validationf("status is required")
	}

	var actorID *uuid.UUID
	if actor.ID != uuid.Nil {
		aid := actor.ID
		actorID = &aid
	}

	var job *model.Job
	var generated *model.Task
	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		j, task, err := s.propagator.AdvanceJob(txCtx, jobID, newStatus, actorID)
		if err != nil {
			return err
		}
		job = j
		generated = task
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitJobEvents(job, generated)

	result := &JobResult{Job: toJobResponse(job)}
	if generated != nil {
		resp := toTaskResponse(generated)
		result.GeneratedTask = &resp
	}
	return result, nil
}

func (s *jobService) GetJob(ctx context.Context, id string) (*JobResponse, error) {
	jobID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.Validationf("invalid job id %q", id)
	}
	job, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, apperror.NotFoundf("job %s not found", id)
		}
		return nil, err
	}
	resp := toJobResponse(job)
	return &resp, nil
}

func (s *jobService) ListJobs(ctx context.Context, filter repository.JobFilter) ([]JobResponse, int64, error) {
	jobs, total, err := s.jobs.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	out := make([]JobResponse, 0, len(jobs))
	for i := range jobs {
		out = append(out, toJobResponse(&jobs[i]))
	}
	return out, total, nil
}

// emitJobEvents dispatches fire-and-forget notifications after the
// transaction committed.
func (s *jobService) emitJobEvents(job *model.Job, generated *model.Task) {
	if job == nil {
		return
	}
	if job.Status == workflow.StatusCancelled || job.Status == workflow.StatusHold {
		s.notify.Dispatch(context.Background(), notifier.Event{
			Type:    notifier.EventJobStatus,
			Title:   "Job status alert",
			Message: fmt.Sprintf("Job %s (%s) is now %q", job.DocNo, job.ItemCode, job.Status),
			JobID:   job.ID.String(),
		})
	}
	if generated != nil && len(generated.Assignees) > 0 {
		assignee := generated.Assignees[0]
		s.notify.Dispatch(context.Background(), notifier.Event{
			Type:    notifier.EventTaskAssigned,
			Title:   "New task assigned",
			Message: fmt.Sprintf("%s (job %s)", generated.Title, job.DocNo),
			UserID:  assignee.ID.String(),
			Email:   assignee.Email,
			TaskID:  generated.ID.String(),
			JobID:   job.ID.String(),
		})
	}
}

func validateJobRequest(req CreateJobRequest) error {
	if strings.TrimSpace(req.DocNo) == "" {
		return apperror.Validationf("doc_no is required")
	}
	if strings.TrimSpace(req.ItemCode) == "" {
		return apperror.Validationf("item_code is required")
	}
	if strings.TrimSpace(req.CustomerName) == "" {
		return apperror.Validationf("customer_name is required")
	}
	if req.Qty <= 0 {
		return apperror.Validationf("qty must be positive, got %d", req.Qty)
	}
	return nil
}
