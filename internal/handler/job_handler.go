package handler

import (
	"net/http"

	"jobtrack/internal/middleware"
	"jobtrack/internal/model"
	"jobtrack/internal/repository"
	"jobtrack/internal/service"
	"jobtrack/pkg/pagination"
	"jobtrack/pkg/response"

	"github.com/gin-gonic/gin"
)

type JobHandler struct {
	jobService service.JobService
}

func NewJobHandler(jobService service.JobService) *JobHandler {
	return &JobHandler{jobService: jobService}
}

func (h *JobHandler) RegisterRoutes(router *gin.RouterGroup) {
	jobs := router.Group("/api/jobs")
	{
		anyRole := middleware.RequireRole(model.RoleUser, model.RoleAdmin, model.RoleSuperAdmin)
		adminOnly := middleware.RequireRole(model.RoleAdmin, model.RoleSuperAdmin)

		jobs.GET("", anyRole, h.ListJobs)
		jobs.GET("/:id", anyRole, h.GetJob)
		jobs.POST("", adminOnly, h.CreateJob)
		jobs.POST("/bulk", adminOnly, h.BulkCreateJobs)
		jobs.PUT("/:id/status", adminOnly, h.UpdateJobStatus)
	}
}

// CreateJob creates a job and triggers auto-task generation for its
// initial status.
// @Summary  Create a job
// @Tags     jobs
// @Accept   json
// @Produce  json
// @Param    job body service.CreateJobRequest true "Job payload"
// @Success  201 {object} response.Response
// @Security BearerAuth
// @Router   /api/jobs [post]
func (h *JobHandler) CreateJob(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req service.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	result, err := h.jobService.CreateJob(c.Request.Context(), req, actor)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// BulkCreateJobs imports multiple jobs in one call, reporting per-row
// outcomes.
// @Summary  Bulk create jobs
// @Tags     jobs
// @Accept   json
// @Produce  json
// @Success  200 {object} response.Response
// @Security BearerAuth
// @Router   /api/jobs/bulk [post]
func (h *JobHandler) BulkCreateJobs(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var reqs []service.CreateJobRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	result, err := h.jobService.BulkCreateJobs(c.Request.Context(), reqs, actor)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateJobStatus moves a job to a new pipeline status and triggers
// auto-task generation for it.
// @Summary  Update job status
// @Tags     jobs
// @Accept   json
// @Produce  json
// @Param    id path string true "Job id"
// @Success  200 {object} response.Response
// @Security BearerAuth
// @Router   /api/jobs/{id}/status [put]
func (h *JobHandler) UpdateJobStatus(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	result, err := h.jobService.UpdateJobStatus(c.Request.Context(), c.Param("id"), req.Status, actor)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// GetJob returns one job by id.
// @Summary  Get job
// @Tags     jobs
// @Produce  json
// @Param    id path string true "Job id"
// @Success  200 {object} response.Response
// @Security BearerAuth
// @Router   /api/jobs/{id} [get]
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.jobService.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, job))
}

// ListJobs returns jobs filtered by status/month/week.
// @Summary  List jobs
// @Tags     jobs
// @Produce  json
// @Success  200 {object} response.Paged
// @Security BearerAuth
// @Router   /api/jobs [get]
func (h *JobHandler) ListJobs(c *gin.Context) {
	params := pagination.Parse(c)
	filter := repository.JobFilter{
		Status: c.Query("status"),
		Month:  c.Query("month"),
		Week:   c.Query("week"),
		Paging: params,
	}
	jobs, total, err := h.jobService.ListJobs(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessPaged(http.StatusOK, jobs, total, params.Page, params.Limit))
}
