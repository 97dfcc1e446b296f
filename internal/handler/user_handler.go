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

type UserHandler struct {
	userService service.UserService
}

func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/api/auth/login", h.Login)
	router.POST("/api/auth/logout", h.Logout)

	users := router.Group("/api/users")
	{
		anyRole := middleware.RequireRole(model.RoleUser, model.RoleAdmin, model.RoleSuperAdmin)
		adminOnly := middleware.RequireRole(model.RoleAdmin, model.RoleSuperAdmin)

		users.GET("/me", anyRole, h.Me)
		users.GET("", adminOnly, h.ListUsers)
		users.GET("/:id", adminOnly, h.GetUser)
		users.POST("", adminOnly, h.CreateUser)
		users.PUT("/:id", adminOnly, h.UpdateUser)
		users.DELETE("/:id", middleware.RequireRole(model.RoleSuperAdmin), h.DeleteUser)
	}
}

// Login authenticates a user and returns a JWT (also set as a cookie).
// @Summary  Login
// @Tags     auth
// @Accept   json
// @Produce  json
// @Success  200 {object} response.Response
// @Router   /api/auth/login [post]
func (h *UserHandler) Login(c *gin.Context) {
	var req service.LoginUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	token, err := h.userService.Login(c.Request.Context(), req)
	if err != nil {
		code := statusOf(err)
		if code == http.StatusForbidden {
			code = http.StatusUnauthorized // failed login is 401, not 403
		}
		c.JSON(code, response.Error(code, err.Error()))
		return
	}
	middleware.SetTokenCookie(c, token.Token)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, token))
}

// Logout clears the session cookie.
// @Summary  Logout
// @Tags     auth
// @Success  200 {object} response.Response
// @Router   /api/auth/logout [post]
func (h *UserHandler) Logout(c *gin.Context) {
	middleware.ClearTokenCookie(c)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"logged_out": true}))
}

// Me returns the authenticated user.
// @Summary  Current user
// @Tags     users
// @Produce  json
// @Success  200 {object} response.Response
// @Security BearerAuth
// @Router   /api/users/me [get]
func (h *UserHandler) Me(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	user, err := h.userService.GetUserByID(c.Request.Context(), actor.ID.String())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// CreateUser registers a staff account.
// @Summary  Create user
// @Tags     users
// @Accept   json
// @Produce  json
// @Success  201 {object} response.Response
// @Security BearerAuth
// @Router   /api/users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req service.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	user, err := h.userService.CreateUser(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, user))
}

// ListUsers returns all users, paginated.
// @Summary  List users
// @Tags     users
// @Produce  json
// @Success  200 {object} response.Paged
// @Security BearerAuth
// @Router   /api/users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	params := pagination.Parse(c)
	users, total, err := h.userService.ListUsers(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessPaged(http.StatusOK, users, total, params.Page, params.Limit))
}

// GetUser returns one user by id.
// @Summary  Get user
// @Tags     users
// @Produce  json
// @Param    id path string true "User id"
// @Success  200 {object} response.Response
// @Security BearerAuth
// @Router   /api/users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.userService.GetUserByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// UpdateUser updates profile fields, role, department, or active flag.
// @Summary  Update user
// @Tags     users
// @Accept   json
// @Produce  json
// @Param    id path string true "User id"
// @Success  200 {object} response.Response
// @Security BearerAuth
// @Router   /api/users/{id} [put]
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req service.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	user, err := h.userService.UpdateUser(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// DeleteUser soft-deletes a user account.
// @Summary  Delete user
// @Tags     users
// @Param    id path string true "User id"
// @Success  200 {object} response.Response
// @Security BearerAuth
// @Router   /api/users/{id} [delete]
func (h *UserHandler) DeleteUser(c *gin.Context) {
	if err := h.userService.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"deleted": true}))
}
