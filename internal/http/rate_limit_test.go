package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newLimitedRouter(rps float64, burst int) *gin.Engine {
	router := gin.New()
	router.Use(IPRateLimitMiddleware(rps, burst, discardLogger()))
	router.POST("/v1/consents", func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"status": "pending"})
	})
	return router
}

func sendFrom(router *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/consents", nil)
	req.RemoteAddr = remoteAddr
	router.ServeHTTP(w, req)
	return w
}

func TestIPRateLimitMiddleware(t *testing.T) {
	t.Run("AllowsWithinBurst", func(t *testing.T) {
		router := newLimitedRouter(1, 3)

		for i := 0; i < 3; i++ {
			assert.Equal(t, http.StatusCreated, sendFrom(router, "10.0.0.1:1234").Code)
		}
	})

	t.Run("BlocksAboveBurst", func(t *testing.T) {
		router := newLimitedRouter(0.5, 2)

		assert.Equal(t, http.StatusCreated, sendFrom(router, "10.0.0.1:1234").Code)
		assert.Equal(t, http.StatusCreated, sendFrom(router, "10.0.0.1:1234").Code)

		w := sendFrom(router, "10.0.0.1:1234")
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.NotEmpty(t, w.Header().Get("Retry-After"))
		assert.Contains(t, w.Body.String(), "rate_limit_exceeded")
	})

	t.Run("IndependentPerIP", func(t *testing.T) {
		router := newLimitedRouter(0.1, 1)

		assert.Equal(t, http.StatusCreated, sendFrom(router, "10.0.0.1:1234").Code)
		assert.Equal(t, http.StatusTooManyRequests, sendFrom(router, "10.0.0.1:1234").Code)
		assert.Equal(t, http.StatusCreated, sendFrom(router, "10.0.0.2:1234").Code)
	})
}

func TestIPRateLimiterStore_EvictIdle(t *testing.T) {
	store := &ipRateLimiterStore{rps: 1, burst: 1}
	store.getLimiter("10.0.0.1")
	store.getLimiter("10.0.0.2")

	val, ok := store.limiters.Load("10.0.0.1")
	assert.True(t, ok)
	entry := val.(*ipRateLimiterEntry)
	entry.mu.Lock()
	entry.lastAccess = time.Now().Add(-2 * time.Hour)
	entry.mu.Unlock()

	store.evictIdle(time.Now().Add(-time.Hour))

	_, ok = store.limiters.Load("10.0.0.1")
	assert.False(t, ok)
	_, ok = store.limiters.Load("10.0.0.2")
	assert.True(t, ok)
}
