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
	"github.com/google/uuid"
)

type TaskHandler struct {
	taskService service.TaskService
}

func NewTaskHandler(taskService service.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

func (h *TaskHandler) RegisterRoutes(router *gin.RouterGroup) {
	tasks := router.Group("/api/tasks")
	{
		anyRole := middleware.RequireRole(model.RoleUser, model.RoleAdmin, model.RoleSuperAdmin)
		adminOnly := middleware.RequireRole(model.RoleAdmin, model.RoleSuperAdmin)

		tasks.GET("", anyRole, h.ListTasks)
		tasks.GET("/:id", anyRole, h.GetTask)
		tasks.POST("", adminOnly, h.CreateTask)
		tasks.POST("/peer", anyRole, h.AssignPeerTask)
		tasks.PUT("/:id/complete", anyRole, h.CompleteTask)
		tasks.PUT("/:id/approve", anyRole, h.ApproveTask)
		tasks.PUT("/:id/reject", anyRole, h.RejectTask)
		tasks.DELETE("/:id", anyRole, h.DeleteTask)
	}
}

// CreateTask creates a manual/admin task.
// @Summary  Create a task
// @Tags     tasks
// @Accept   json
// @Produce  json
// @Success  201 {object} response.Response
// @Security BearerAuth
// @Router   /api/tasks [post]
func (h *TaskHandler) CreateTask(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req service.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	task, err := h.taskService.CreateManualTask(c.Request.Context(), req, actor)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, task))
}

// AssignPeerTask lets any user assign a task to colleagues.
// @Summary  Assign a peer task
// @Tags     tasks
// @Accept   json
// @Produce  json
// @Success  201 {object} response.Response
// @Security BearerAuth
// @Router   /api/tasks/peer [post]
func (h *TaskHandler) AssignPeerTask(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req service.PeerTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	task, err := h.taskService.AssignPeerTask(c.Request.Context(), req, actor)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, task))
}

type completeTaskRequest struct {
	Remarks     string   `json:"remarks"`
	Attachments []string `json:"attachments"`
}

// CompleteTask records a completion; for job-auto tasks this also chains
// the next pipeline task.
// @Summary  Complete a task
// @Tags     tasks
// @Accept   json
// @Produce  json
// @Param    id path string true "Task id"
// @Success  200 {object} response.Response
// @Security BearerAuth
// @Router   /api/tasks/{id}/complete [put]
func (h *TaskHandler) CompleteTask(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req completeTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Empty body is fine — remarks and attachments are optional
		req = completeTaskRequest{}
	}
	result, err := h.taskService.CompleteTask(c.Request.Context(), c.Param("id"), actor, req.Remarks, req.Attachments)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// ApproveTask approves a completed task.
// @Summary  Approve a task
// @Tags     tasks
// @Produce  json
// @Param    id path string true "Task id"
// @Success  200 {object} response.Response
// @Security BearerAuth
// @Router   /api/tasks/{id}/approve [put]
func (h *TaskHandler) ApproveTask(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	task, err := h.taskService.ApproveTask(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, task))
}

type rejectTaskRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// RejectTask sends a completed task back to pending.
// @Summary  Reject a task
// @Tags     tasks
// @Accept   json
// @Produce  json
// @Param    id path string true "Task id"
// @Success  200 {object} response.Response
// @Security BearerAuth
// @Router   /api/tasks/{id}/reject [put]
func (h *TaskHandler) RejectTask(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req rejectTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "rejection reason is required"))
		return
	}
	task, err := h.taskService.RejectTask(c.Request.Context(), c.Param("id"), actor, req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, task))
}

// DeleteTask removes a task (manual cleanup).
// @Summary  Delete a task
// @Tags     tasks
// @Param    id path string true "Task id"
// @Success  200 {object} response.Response
// @Security BearerAuth
// @Router   /api/tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	if err := h.taskService.DeleteTask(c.Request.Context(), c.Param("id"), actor); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"deleted": true}))
}

// GetTask returns one task by id.
// @Summary  Get task
// @Tags     tasks
// @Produce  json
// @Param    id path string true "Task id"
// @Success  200 {object} response.Response
// @Security BearerAuth
// @Router   /api/tasks/{id} [get]
func (h *TaskHandler) GetTask(c *gin.Context) {
	task, err := h.taskService.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, task))
}

// ListTasks returns tasks. scope=mine narrows to the caller's tasks,
// scope=approvals to tasks waiting for approval, scope=overdue to overdue
// active tasks.
// @Summary  List tasks
// @Tags     tasks
// @Produce  json
// @Success  200 {object} response.Paged
// @Security BearerAuth
// @Router   /api/tasks [get]
func (h *TaskHandler) ListTasks(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	params := pagination.Parse(c)
	filter := repository.TaskFilter{
		Status: c.Query("status"),
		Type:   c.Query("type"),
		Paging: params,
	}
	switch c.Query("scope") {
	case "mine":
		id := actor.ID
		filter.AssigneeID = &id
	case "approvals":
		filter.Status = model.TaskStatusPendingApproval
	case "overdue":
		filter.Overdue = true
	}
	if jobID := c.Query("job_id"); jobID != "" {
		if id, err := uuid.Parse(jobID); err == nil {
			filter.JobID = &id
		}
	}
	tasks, total, err := h.taskService.ListTasks(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessPaged(http.StatusOK, tasks, total, params.Page, params.Limit))
}
