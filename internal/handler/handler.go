// Package handler translates HTTP requests into engine operations and
// engine errors back into transport status codes. All workflow semantics
// live in internal/service; this layer only parses, authenticates shape,
// and serializes.
package handler

import (
	"net/http"

	"jobtrack/internal/service"
	"jobtrack/pkg/apperror"
	"jobtrack/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// statusOf maps engine error kinds to HTTP status codes.
func statusOf(err error) int {
	switch apperror.KindOf(err) {
	case apperror.Validation:
		return http.StatusBadRequest
	case apperror.NotFound:
		return http.StatusNotFound
	case apperror.Unauthorized:
		return http.StatusForbidden
	case apperror.Conflict:
		return http.StatusConflict
	case apperror.InvalidState:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	code := statusOf(err)
	c.JSON(code, response.Error(code, err.Error()))
}

// actorFrom builds the engine Actor from the context values the auth
// middleware stored.
func actorFrom(c *gin.Context) (service.Actor, bool) {
	rawID, _ := c.Get("userID")
	rawRole, _ := c.Get("userRole")
	idStr, _ := rawID.(string)
	role, _ := rawRole.(string)
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "invalid session identity"))
		return service.Actor{}, false
	}
	return service.Actor{ID: id, Role: role}, true
}
