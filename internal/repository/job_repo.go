package repository

import (
	"context"

	"jobtrack/internal/model"
	"jobtrack/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobFilter narrows job listings.
type JobFilter struct {
	Status string
	Month  string
	Week   string
	Paging pagination.Params
}

// JobRepository defines data access for Job entities
type JobRepository interface {
	Create(ctx context.Context, job *model.Job) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Job, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Job, error)
	FindByDocItem(ctx context.Context, docNo, itemCode string) (*model.Job, error)
	List(ctx context.Context, filter JobFilter) ([]model.Job, int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

type jobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) Create(ctx context.Context, job *model.Job) error {
	return GetDB(ctx, r.db).Create(job).Error
}

func (r *jobRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	var job model.Job
	if err := GetDB(ctx, r.db).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	var job model.Job
	if err := withLock(GetDB(ctx, r.db)).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) FindByDocItem(ctx context.Context, docNo, itemCode string) (*model.Job, error) {
	var job model.Job
	if err := GetDB(ctx, r.db).First(&job, "doc_no = ? AND item_code = ?", docNo, itemCode).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) List(ctx context.Context, filter JobFilter) ([]model.Job, int64, error) {
	var jobs []model.Job
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.Job{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Month != "" {
		query = query.Where("month = ?", filter.Month)
	}
	if filter.Week != "" {
		query = query.Where("week = ?", filter.Week)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	p := pagination.Clamp(filter.Paging.Page, filter.Paging.Limit)
	if err := query.Preload("Creator").Order("created_at DESC").Offset(p.Offset()).Limit(p.Limit).Find(&jobs).Error; err != nil {
		return nil, 0, err
	}

	return jobs, total, nil
}

func (r *jobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return GetDB(ctx, r.db).Model(&model.Job{}).Where("id = ?", id).Update("status", status).Error
}
