package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		name        string
		page, limit int
		want        Params
	}{
		{"zero values fall back to defaults", 0, 0, Params{Page: 1, Limit: 20}},
		{"negative values fall back to defaults", -3, -1, Params{Page: 1, Limit: 20}},
		{"in-range values pass through", 4, 50, Params{Page: 4, Limit: 50}},
		{"limit capped at max", 1, 5000, Params{Page: 1, Limit: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clamp(tt.page, tt.limit))
		})
	}
}

func TestOffset(t *testing.T) {
	assert.Equal(t, 0, Params{Page: 1, Limit: 20}.Offset())
	assert.Equal(t, 40, Params{Page: 3, Limit: 20}.Offset())
}

func TestParse(t *testing.T) {
	gin.SetMode(gin.TestMode)

	parse := func(query string) Params {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/?"+query, nil)
		return Parse(c)
	}

	assert.Equal(t, Params{Page: 1, Limit: 20}, parse(""))
	assert.Equal(t, Params{Page: 2, Limit: 5}, parse("page=2&limit=5"))
	assert.Equal(t, Params{Page: 1, Limit: 100}, parse("page=garbage&limit=999"))
}
