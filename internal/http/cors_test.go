package http

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCORSMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name    string
		enabled bool
		origins string
		wantNil bool
	}{
		{name: "disabled", enabled: false, origins: "https://parents.example.com", wantNil: true},
		{name: "enabled without origins", enabled: true, origins: "", wantNil: true},
		{name: "only separators", enabled: true, origins: " , ,", wantNil: true},
		{name: "single origin", enabled: true, origins: "https://parents.example.com", wantNil: false},
		{
			name:    "comma separated",
			enabled: true,
			origins: " https://parents.example.com , https://admin.example.com ",
			wantNil: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			middleware := createCORSMiddleware(tt.enabled, tt.origins, logger)
			assert.Equal(t, tt.wantNil, middleware == nil)
		})
	}
}

func TestParseOrigins(t *testing.T) {
	assert.Nil(t, parseOrigins(""))
	assert.Equal(t,
		[]string{"https://parents.example.com", "https://admin.example.com"},
		parseOrigins(" https://parents.example.com,,https://admin.example.com "),
	)
}

func newCORSRouter(t *testing.T, enabled bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	middleware := createCORSMiddleware(enabled, "https://parents.example.com", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if middleware != nil {
		router.Use(middleware)
	}
	router.POST("/v1/consents", func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"status": "pending"})
	})
	return router
}

func TestCORSIntegration(t *testing.T) {
	t.Run("HeadersAddedWhenEnabled", func(t *testing.T) {
		router := newCORSRouter(t, true)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/consents", nil)
		req.Header.Set("Origin", "https://parents.example.com")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "https://parents.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("NoHeadersWhenDisabled", func(t *testing.T) {
		router := newCORSRouter(t, false)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/consents", nil)
		req.Header.Set("Origin", "https://parents.example.com")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("PreflightAllowsUserHeader", func(t *testing.T) {
		router := newCORSRouter(t, true)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodOptions, "/v1/consents", nil)
		req.Header.Set("Origin", "https://parents.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "X-User-Id")
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusNoContent, w.Code)
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-User-Id")
	})
}
