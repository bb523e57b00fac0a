package log

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPLogMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var traceID string
	var logger *Logger
	router := gin.New()
	router.Use(HTTPLogMiddleware("test-http"))
	router.GET("/ping", func(c *gin.Context) {
		traceID = RequestTraceID(c)
		logger = RequestLogger(c)
		c.String(http.StatusOK, "pong")
	})

	t.Run("generates tracing headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
		assert.NotEmpty(t, w.Header().Get(HeaderTraceID))
		assert.Equal(t, w.Header().Get(HeaderTraceID), traceID)
		require.NotNil(t, logger)
		assert.Equal(t, traceID, logger.GetTraceID())
	})

	t.Run("honors incoming trace ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(HeaderTraceID, "incoming-trace")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "incoming-trace", traceID)
	})
}
