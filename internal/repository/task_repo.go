package repository

import (
	"context"
	"time"

	"jobtrack/internal/model"
	"jobtrack/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaskFilter narrows task listings.
type TaskFilter struct {
	Status     string
	Type       string
	AssigneeID *uuid.UUID
	JobID      *uuid.UUID
	Overdue    bool
	Paging     pagination.Params
}

// overdueAt matches tasks whose due date has passed while they still occupy
// their pipeline slot. Shared by the list filter and the reminder digest so
// "overdue" means the same thing everywhere.
func overdueAt(asOf time.Time) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("due_date IS NOT NULL AND due_date < ? AND status IN ?",
			asOf, []string{model.TaskStatusPending, model.TaskStatusPendingApproval})
	}
}

// TaskRepository defines data access for Task entities and their
// per-assignee completion records.
type TaskRepository interface {
	Create(ctx context.Context, task *model.Task) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Task, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Task, error)
	Update(ctx context.Context, task *model.Task) error
	Delete(ctx context.Context, task *model.Task) error
	List(ctx context.Context, filter TaskFilter) ([]model.Task, int64, error)
	ListOverdue(ctx context.Context, asOf time.Time) ([]model.Task, error)

	CountActiveAuto(ctx context.Context, jobID uuid.UUID, currentStage, nextStage string) (int64, error)

	AddCompletion(ctx context.Context, completion *model.TaskCompletion) error
	HasCompletion(ctx context.Context, taskID, userID uuid.UUID) (bool, error)
	CountCompletions(ctx context.Context, taskID uuid.UUID) (int64, error)
	ListCompletions(ctx context.Context, taskID uuid.UUID) ([]model.TaskCompletion, error)
	DeleteCompletions(ctx context.Context, taskID uuid.UUID) error
}

type taskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) Create(ctx context.Context, task *model.Task) error {
	return GetDB(ctx, r.db).Create(task).Error
}

func (r *taskRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	var task model.Task
	if err := GetDB(ctx, r.db).
		Preload("Assignees").
		Preload("Completions").
		Preload("Assigner").
		First(&task, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// FindByIDForUpdate locks the task row for the rest of the transaction, then
// loads relations. Serializes concurrent completions on the same task.
func (r *taskRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	var task model.Task
	if err := withLock(GetDB(ctx, r.db)).First(&task, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if err := GetDB(ctx, r.db).Model(&task).Association("Assignees").Find(&task.Assignees); err != nil {
		return nil, err
	}
	if err := GetDB(ctx, r.db).Where("task_id = ?", id).Order("completed_at ASC").Find(&task.Completions).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) Update(ctx context.Context, task *model.Task) error {
	return GetDB(ctx, r.db).Omit("Assignees", "Completions").Save(task).Error
}

func (r *taskRepository) Delete(ctx context.Context, task *model.Task) error {
	db := GetDB(ctx, r.db)
	if err := db.Model(task).Association("Assignees").Clear(); err != nil {
		return err
	}
	if err := db.Where("task_id = ?", task.ID).Delete(&model.TaskCompletion{}).Error; err != nil {
		return err
	}
	return db.Delete(task).Error
}

func (r *taskRepository) List(ctx context.Context, filter TaskFilter) ([]model.Task, int64, error) {
	var tasks []model.Task
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.Task{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.JobID != nil {
		query = query.Where("job_id = ?", *filter.JobID)
	}
	if filter.AssigneeID != nil {
		query = query.Joins("JOIN task_assignees ta ON ta.task_id = tasks.id").
			Where("ta.user_id = ?", *filter.AssigneeID)
	}
	if filter.Overdue {
		query = query.Scopes(overdueAt(time.Now()))
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	p := pagination.Clamp(filter.Paging.Page, filter.Paging.Limit)
	if err := query.
		Preload("Assignees").
		Preload("Completions").
		Order("created_at DESC").
		Offset(p.Offset()).Limit(p.Limit).
		Find(&tasks).Error; err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

func (r *taskRepository) ListOverdue(ctx context.Context, asOf time.Time) ([]model.Task, error) {
	var tasks []model.Task
	err := GetDB(ctx, r.db).
		Preload("Assignees").
		Scopes(overdueAt(asOf)).
		Order("due_date ASC").
		Find(&tasks).Error
	return tasks, err
}

// CountActiveAuto counts job-auto tasks still occupying the given pipeline
// transition. Used as the duplicate-propagation guard.
func (r *taskRepository) CountActiveAuto(ctx context.Context, jobID uuid.UUID, currentStage, nextStage string) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Task{}).
		Where("type = ? AND job_id = ? AND job_current_stage = ? AND job_next_stage = ? AND status IN ?",
			model.TaskTypeJobAuto, jobID, currentStage, nextStage,
			[]string{model.TaskStatusPending, model.TaskStatusPendingApproval}).
		Count(&count).Error
	return count, err
}

func (r *taskRepository) AddCompletion(ctx context.Context, completion *model.TaskCompletion) error {
	return GetDB(ctx, r.db).Create(completion).Error
}

func (r *taskRepository) HasCompletion(ctx context.Context, taskID, userID uuid.UUID) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.TaskCompletion{}).
		Where("task_id = ? AND user_id = ?", taskID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *taskRepository) CountCompletions(ctx context.Context, taskID uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.TaskCompletion{}).
		Where("task_id = ?", taskID).
		Count(&count).Error
	return count, err
}

func (r *taskRepository) ListCompletions(ctx context.Context, taskID uuid.UUID) ([]model.TaskCompletion, error) {
	var completions []model.TaskCompletion
	err := GetDB(ctx, r.db).
		Where("task_id = ?", taskID).
		Order("completed_at ASC").
		Find(&completions).Error
	return completions, err
}

func (r *taskRepository) DeleteCompletions(ctx context.Context, taskID uuid.UUID) error {
	return GetDB(ctx, r.db).Where("task_id = ?", taskID).Delete(&model.TaskCompletion{}).Error
}
