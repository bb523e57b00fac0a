package ratelimiter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(l *Limiter) *gin.Engine {
	router := gin.New()
	router.Use(Middleware(l))
	router.GET("/api/events", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return router
}

func performRequest(router *gin.Engine, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.RemoteAddr = "10.0.0.1:12345"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestClientIdentity_Precedence(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		expected string
	}{
		{
			name:     "cf-connecting-ip wins",
			headers:  map[string]string{HeaderCFConnectingIP: "1.1.1.1", HeaderXRealIP: "2.2.2.2", HeaderXForwardedFor: "3.3.3.3"},
			expected: "1.1.1.1",
		},
		{
			name:     "x-real-ip next",
			headers:  map[string]string{HeaderXRealIP: "2.2.2.2", HeaderXForwardedFor: "3.3.3.3"},
			expected: "2.2.2.2",
		},
		{
			name:     "first hop of x-forwarded-for",
			headers:  map[string]string{HeaderXForwardedFor: "3.3.3.3, 4.4.4.4, 5.5.5.5"},
			expected: "3.3.3.3",
		},
		{
			name:     "falls back to remote address",
			headers:  nil,
			expected: "10.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			router := gin.New()
			router.GET("/", func(c *gin.Context) {
				got = ClientIdentity(c)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "10.0.0.1:12345"
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			router.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestMiddleware_Denies(t *testing.T) {
	l, _ := newTestLimiter(t, smallConfig())
	router := newTestRouter(l)

	for i := 0; i < 5; i++ {
		w := performRequest(router, nil)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
	}

	w := performRequest(router, nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "120", w.Header().Get(HeaderRetryAfter))

	var body struct {
		Error      string `json:"error"`
		RetryAfter int    `json:"retryAfter"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, deniedMessage, body.Error)
	assert.Equal(t, 120, body.RetryAfter)
}

func TestMiddleware_SeparatesIdentities(t *testing.T) {
	l, _ := newTestLimiter(t, smallConfig())
	router := newTestRouter(l)

	for i := 0; i < 6; i++ {
		performRequest(router, map[string]string{HeaderCFConnectingIP: "1.1.1.1"})
	}
	w := performRequest(router, map[string]string{HeaderCFConnectingIP: "1.1.1.1"})
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	w = performRequest(router, map[string]string{HeaderCFConnectingIP: "2.2.2.2"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFloodGuard(t *testing.T) {
	guard := NewFloodGuard(1, 2)

	// burst of 2 admitted, third rejected
	assert.True(t, guard.Allow("1.1.1.1"))
	assert.True(t, guard.Allow("1.1.1.1"))
	assert.False(t, guard.Allow("1.1.1.1"))

	// other clients have their own bucket
	assert.True(t, guard.Allow("2.2.2.2"))
}

func TestFloodGuard_Sweep(t *testing.T) {
	guard := NewFloodGuard(1, 1)
	guard.Allow("1.1.1.1")

	guard.expiry = 0
	guard.Sweep()

	guard.mu.Lock()
	defer guard.mu.Unlock()
	assert.Empty(t, guard.limiters)
}

func TestFloodGuardMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(FloodGuardMiddleware(1, 1))
	router.GET("/api/events", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	w := performRequest(router, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = performRequest(router, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get(HeaderRetryAfter))
}
