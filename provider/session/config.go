package session

import (
	"net/http"
	"slices"

	"github.com/rampart-go/rampart/utils"
)

const (
	// DefaultCookieName is the default cookie name for the session ID
	DefaultCookieName = "rampart_session"

	// DefaultMaxAge is the absolute session lifetime in seconds (24 hours)
	DefaultMaxAge = 86400

	// DefaultInactivityTimeout is the idle timeout in seconds (30 minutes)
	DefaultInactivityTimeout = 1800

	// DefaultRenewalThreshold is the fraction of the lifetime after which a
	// validated session is renewed
	DefaultRenewalThreshold = 0.75

	// DefaultMaxConcurrentSessions bounds active sessions per user
	DefaultMaxConcurrentSessions = 3

	// DefaultCleanupInterval sets how often the session sweep runs, in seconds
	DefaultCleanupInterval = 900

	// DefaultSecure sets the Secure flag on session cookies
	DefaultSecure = true

	// DefaultHttpOnly sets the HttpOnly flag on session cookies
	DefaultHttpOnly = true

	// DefaultSameSite sets the SameSite policy for session cookies
	DefaultSameSite = int(http.SameSiteStrictMode)

	ErrInvalidMaxAge                = utils.Error("session max age seconds must be a positive integer")
	ErrInvalidInactivityTimeout     = utils.Error("session inactivity timeout seconds must be a positive integer")
	ErrInvalidRenewalThreshold      = utils.Error("session renewal threshold must be in (0, 1]")
	ErrInvalidMaxConcurrentSessions = utils.Error("max concurrent sessions must be a positive integer")
	ErrInvalidCleanupInterval       = utils.Error("session cleanup interval seconds must be a positive integer")
	ErrInvalidSameSite              = utils.Error("invalid sameSite value")
	ErrInvalidEncryptionKey         = utils.Error("session encryption key must be 32 bytes")
)

// Config holds configuration for the session manager
type Config struct {
	CookieName               string  `json:"cookieName"`               // name of the cookie carrying the session ID
	MaxAgeSeconds            int     `json:"maxAgeSeconds"`            // absolute session lifetime
	InactivityTimeoutSeconds int     `json:"inactivityTimeoutSeconds"` // maximum time a session can be idle
	RenewalThreshold         float64 `json:"renewalThreshold"`         // lifetime fraction after which validation renews expiry
	MaxConcurrentSessions    int     `json:"maxConcurrentSessions"`    // active sessions allowed per user
	PreventConcurrentLogins  bool    `json:"preventConcurrentLogins"`  // single-session-per-user mode
	BindClientIP             bool    `json:"bindClientIp"`             // revoke when the client IP changes
	BindUserAgent            bool    `json:"bindUserAgent"`            // revoke when the user agent changes
	Secure                   bool    `json:"secure"`                   // Secure flag on cookies (should be true in production)
	HttpOnly                 bool    `json:"httpOnly"`                 // HttpOnly flag on cookies (should be true)
	SameSite                 int     `json:"sameSite"`                 // SameSite policy for cookies
	Domain                   string  `json:"domain"`                   // cookie domain
	Path                     string  `json:"path"`                     // cookie path
	CleanupIntervalSeconds   int     `json:"cleanupIntervalSeconds"`   // how often the background sweep runs
	EncryptionKey            string  `json:"encryptionKey"`            // optional 32-byte key; when set, persisted sessions are encrypted
}

// NewConfig returns a default session configuration
func NewConfig() *Config {
	return &Config{
		CookieName:               DefaultCookieName,
		MaxAgeSeconds:            DefaultMaxAge,
		InactivityTimeoutSeconds: DefaultInactivityTimeout,
		RenewalThreshold:         DefaultRenewalThreshold,
		MaxConcurrentSessions:    DefaultMaxConcurrentSessions,
		PreventConcurrentLogins:  false,
		BindClientIP:             true,
		BindUserAgent:            true,
		Secure:                   DefaultSecure,
		HttpOnly:                 DefaultHttpOnly,
		SameSite:                 DefaultSameSite,
		Path:                     "/",
		Domain:                   "",
		CleanupIntervalSeconds:   DefaultCleanupInterval,
	}
}

// Validate checks if config values are valid
func (c *Config) Validate() error {
	if c.MaxAgeSeconds <= 0 {
		return ErrInvalidMaxAge
	}
	if c.InactivityTimeoutSeconds <= 0 {
		return ErrInvalidInactivityTimeout
	}
	if c.RenewalThreshold <= 0 || c.RenewalThreshold > 1 {
		return ErrInvalidRenewalThreshold
	}
	if c.MaxConcurrentSessions <= 0 {
		return ErrInvalidMaxConcurrentSessions
	}
	if c.CleanupIntervalSeconds <= 0 {
		return ErrInvalidCleanupInterval
	}
	if slices.Index([]int{
		int(http.SameSiteDefaultMode),
		int(http.SameSiteLaxMode),
		int(http.SameSiteStrictMode),
		int(http.SameSiteNoneMode)}, c.SameSite) < 0 {
		return ErrInvalidSameSite
	}
	if len(c.EncryptionKey) != 0 && len(c.EncryptionKey) != 32 {
		return ErrInvalidEncryptionKey
	}
	return nil
}
