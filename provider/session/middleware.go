package session

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ContextSessionKey is the gin context key the middleware stores the
// validated session under
const ContextSessionKey = "rampart_session"

// Middleware validates the session cookie on every request and stores the
// session in the gin context; requests without a valid session proceed with
// no session set, authorization is the handler's decision
func Middleware(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(m.config.CookieName)
		if err == nil && id != "" {
			meta := Metadata{
				IPAddress: c.ClientIP(),
				UserAgent: c.Request.UserAgent(),
			}
			if s := m.Validate(id, meta); s != nil {
				c.Set(ContextSessionKey, s)
			} else {
				// stale or revoked cookie, clear it
				ClearSessionCookie(c, m.config)
			}
		}
		c.Next()
	}
}

// Required aborts requests that did not present a valid session
func Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		if Get(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
			})
			return
		}
		c.Next()
	}
}

// Get returns the validated session for the current request, or nil
func Get(c *gin.Context) *Session {
	if v, exists := c.Get(ContextSessionKey); exists {
		if s, ok := v.(*Session); ok {
			return s
		}
	}
	return nil
}

// SetSessionCookie writes the session cookie for a newly created session
func SetSessionCookie(c *gin.Context, cfg *Config, s *Session) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    s.ID,
		MaxAge:   cfg.MaxAgeSeconds,
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		Secure:   cfg.Secure,
		HttpOnly: cfg.HttpOnly,
		SameSite: http.SameSite(cfg.SameSite),
	})
}

// ClearSessionCookie expires the session cookie on the client
func ClearSessionCookie(c *gin.Context, cfg *Config) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    "",
		MaxAge:   -1,
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		Secure:   cfg.Secure,
		HttpOnly: cfg.HttpOnly,
		SameSite: http.SameSite(cfg.SameSite),
	})
}
