package ratelimiter

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// floodEntry pairs a token bucket with its last use
type floodEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// FloodGuard is a per-client token bucket smoothing short bursts before
// requests reach the windowed limiter; it has no memory of offenders and
// no blocking, only instantaneous admission
type FloodGuard struct {
	mu       sync.Mutex
	limiters map[string]*floodEntry
	rate     rate.Limit
	burst    int
	expiry   time.Duration
}

// NewFloodGuard creates a flood guard admitting r events per second with
// the given burst size
func NewFloodGuard(r rate.Limit, burst int) *FloodGuard {
	return &FloodGuard{
		limiters: make(map[string]*floodEntry),
		rate:     r,
		burst:    burst,
		expiry:   time.Hour,
	}
}

// Allow checks if the key can perform an action now
func (f *FloodGuard) Allow(key string) bool {
	f.mu.Lock()
	e, exists := f.limiters[key]
	if !exists {
		e = &floodEntry{limiter: rate.NewLimiter(f.rate, f.burst)}
		f.limiters[key] = e
	}
	e.lastSeen = time.Now()
	f.mu.Unlock()

	return e.limiter.Allow()
}

// Sweep removes buckets not seen within the expiry period
func (f *FloodGuard) Sweep() {
	now := time.Now()
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, e := range f.limiters {
		if now.Sub(e.lastSeen) > f.expiry {
			delete(f.limiters, key)
		}
	}
}

// FloodGuardMiddleware creates a Gin middleware applying a per-client
// token bucket ahead of the windowed limiter
func FloodGuardMiddleware(r rate.Limit, burst int) gin.HandlerFunc {
	guard := NewFloodGuard(r, burst)

	return func(c *gin.Context) {
		if !guard.Allow(ClientIdentity(c)) {
			c.Header(HeaderRetryAfter, "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      deniedMessage,
				"retryAfter": 1,
			})
			return
		}
		c.Next()
	}
}
