package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiterBurstThenDeny(t *testing.T) {
	limiter := NewRateLimiter(1, 3)
	now := time.Now()
	limiter.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("client-a"), "request %d should pass within burst", i)
	}
	assert.False(t, limiter.Allow("client-a"), "burst exhausted")

	// Other clients have their own bucket.
	assert.True(t, limiter.Allow("client-b"))
}

func TestRateLimiterRefills(t *testing.T) {
	limiter := NewRateLimiter(2, 2)
	now := time.Now()
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("k"))
	assert.True(t, limiter.Allow("k"))
	assert.False(t, limiter.Allow("k"))

	// Half a second at 2 tokens/sec buys one more request.
	now = now.Add(500 * time.Millisecond)
	assert.True(t, limiter.Allow("k"))
	assert.False(t, limiter.Allow("k"))
}

func TestRateLimiterCapsAtBurst(t *testing.T) {
	limiter := NewRateLimiter(100, 2)
	now := time.Now()
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("k"))

	// A long idle period must not bank more than burst tokens.
	now = now.Add(time.Hour)
	assert.True(t, limiter.Allow("k"))
	assert.True(t, limiter.Allow("k"))
	assert.False(t, limiter.Allow("k"))
}

func TestRateLimitMiddlewareKeysByUser(t *testing.T) {
	gin.SetMode(gin.TestMode)

	limiter := NewRateLimiter(1, 1)
	now := time.Now()
	limiter.now = func() time.Time { return now }

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("userID", c.GetHeader("X-Test-User"))
	})
	router.Use(limiter.Middleware())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(user string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-Test-User", user)
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do("u1"))
	assert.Equal(t, http.StatusTooManyRequests, do("u1"))
	// A different user is not affected by u1's bucket.
	assert.Equal(t, http.StatusOK, do("u2"))
}
