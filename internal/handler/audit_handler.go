package handler

import (
	"net/http"

	"jobtrack/internal/middleware"
	"jobtrack/internal/model"
	"jobtrack/internal/service"
	"jobtrack/pkg/pagination"
	"jobtrack/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/api/audit-logs",
		middleware.RequireRole(model.RoleAdmin, model.RoleSuperAdmin),
		h.ListAuditLogs)
}

// ListAuditLogs returns audit records, optionally filtered by action.
// @Summary  List audit logs
// @Tags     audit
// @Produce  json
// @Success  200 {object} response.Paged
// @Security BearerAuth
// @Router   /api/audit-logs [get]
func (h *AuditHandler) ListAuditLogs(c *gin.Context) {
	params := pagination.Parse(c)
	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), c.Query("action"), params.Page, params.Limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessPaged(http.StatusOK, logs, total, params.Page, params.Limit))
}
