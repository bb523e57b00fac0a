package ratelimiter

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	// headers consulted for the client identity, most trusted first
	HeaderCFConnectingIP = "CF-Connecting-IP"
	HeaderXRealIP        = "X-Real-IP"
	HeaderXForwardedFor  = "X-Forwarded-For"

	HeaderRetryAfter = "Retry-After"

	// deniedMessage is safe for display; no internal detail
	deniedMessage = "Too many requests. Please wait before trying again."
)

// ClientIdentity derives the rate-limit identity for a request: trusted
// proxy headers first, then the first hop of X-Forwarded-For, then the
// connection address
func ClientIdentity(c *gin.Context) string {
	if ip := c.GetHeader(HeaderCFConnectingIP); ip != "" {
		return strings.TrimSpace(ip)
	}
	if ip := c.GetHeader(HeaderXRealIP); ip != "" {
		return strings.TrimSpace(ip)
	}
	if ips := c.GetHeader(HeaderXForwardedFor); ips != "" {
		return strings.TrimSpace(strings.Split(ips, ",")[0])
	}

	ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return ip
}

// Middleware returns a Gin middleware enforcing the limiter's decisions
// Denied requests get a 429 with a Retry-After header and a JSON body;
// allowed-with-delay requests wait before proceeding, honoring request
// cancellation
func Middleware(l *Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := l.Check(ClientIdentity(c), c.Request.URL.Path)

		if !decision.Allowed {
			c.Header(HeaderRetryAfter, strconv.Itoa(decision.RetryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      deniedMessage,
				"retryAfter": decision.RetryAfter,
			})
			return
		}

		if decision.Delay > 0 {
			timer := time.NewTimer(decision.Delay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-c.Request.Context().Done():
				c.Abort()
				return
			}
		}

		c.Next()
	}
}
