// Package pagination is the single source of page/limit normalization for
// listing queries. Handlers parse request parameters into Params; the
// repositories apply them, so clamping rules never drift between layers.
package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params is a clamped page/limit pair.
type Params struct {
	Page  int
	Limit int
}

// Offset returns the row offset for the current page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Clamp normalizes raw page/limit values into query-safe bounds. Zero values
// (an unset filter) fall back to the defaults, so repositories can apply it
// unconditionally.
func Clamp(page, limit int) Params {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Params{Page: page, Limit: limit}
}

// Parse extracts page/limit from the request query.
func Parse(c *gin.Context) Params {
	page, _ := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(DefaultPage)))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultLimit)))
	return Clamp(page, limit)
}
