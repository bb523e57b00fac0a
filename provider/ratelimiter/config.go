package ratelimiter

import (
	"strings"

	"github.com/rampart-go/rampart/utils"
)

const (
	// DefaultWindow is the counting window in milliseconds (15 minutes)
	DefaultWindow = 900000

	// DefaultMaxRequests is the number of requests allowed per window
	DefaultMaxRequests = 100

	// DefaultBlockDuration is how long an offender is blocked, in milliseconds (1 hour)
	DefaultBlockDuration = 3600000

	// DefaultProgressiveDelay is the progressive delay base in milliseconds
	DefaultProgressiveDelay = 1000

	// SuspicionDuration is how long an identity stays flagged, in milliseconds (24 hours)
	SuspicionDuration = 24 * 3600 * 1000

	// suspiciousRateFactor reduces the effective max for flagged identities
	suspiciousRateFactor = 0.3

	// progressiveThresholdRatio is the window usage ratio above which
	// progressive delays kick in
	progressiveThresholdRatio = 0.8

	// progressiveDelayCap bounds a single progressive delay, in milliseconds
	progressiveDelayCap = 30000

	// cleanupProbability is the fraction of checks that sweep stale entries
	cleanupProbability = 0.01

	ErrInvalidWindow           = utils.Error("window must be positive")
	ErrInvalidMaxRequests      = utils.Error("max requests must be positive")
	ErrInvalidBlockDuration    = utils.Error("block duration must be positive")
	ErrInvalidProgressiveDelay = utils.Error("progressive delay must be positive")
	ErrInvalidRouteOverride    = utils.Error("route override values cannot be negative")
)

// RouteConfig overrides the global limits for one route
// Zero values inherit the corresponding global setting
type RouteConfig struct {
	WindowMs           int `json:"windowMs"`
	MaxRequests        int `json:"maxRequests"`
	BlockDurationMs    int `json:"blockDurationMs"`
	ProgressiveDelayMs int `json:"progressiveDelayMs"`
}

// Config holds global rate limit settings plus per-route overrides
// Route overrides match by exact path first, then by longest prefix
type Config struct {
	WindowMs           int                    `json:"windowMs"`
	MaxRequests        int                    `json:"maxRequests"`
	BlockDurationMs    int                    `json:"blockDurationMs"`
	ProgressiveDelayMs int                    `json:"progressiveDelayMs"`
	Routes             map[string]RouteConfig `json:"routes"`
}

// NewConfig returns a default rate limit configuration
func NewConfig() *Config {
	return &Config{
		WindowMs:           DefaultWindow,
		MaxRequests:        DefaultMaxRequests,
		BlockDurationMs:    DefaultBlockDuration,
		ProgressiveDelayMs: DefaultProgressiveDelay,
		Routes:             make(map[string]RouteConfig),
	}
}

// Validate checks if config values are valid
func (c *Config) Validate() error {
	if c.WindowMs <= 0 {
		return ErrInvalidWindow
	}
	if c.MaxRequests <= 0 {
		return ErrInvalidMaxRequests
	}
	if c.BlockDurationMs <= 0 {
		return ErrInvalidBlockDuration
	}
	if c.ProgressiveDelayMs <= 0 {
		return ErrInvalidProgressiveDelay
	}
	for _, rc := range c.Routes {
		if rc.WindowMs < 0 || rc.MaxRequests < 0 || rc.BlockDurationMs < 0 || rc.ProgressiveDelayMs < 0 {
			return ErrInvalidRouteOverride
		}
	}
	return nil
}

// resolve merges the route override for the given path over the global
// defaults: exact match wins, then the longest matching prefix
func (c *Config) resolve(route string) RouteConfig {
	result := RouteConfig{
		WindowMs:           c.WindowMs,
		MaxRequests:        c.MaxRequests,
		BlockDurationMs:    c.BlockDurationMs,
		ProgressiveDelayMs: c.ProgressiveDelayMs,
	}

	override, exists := c.Routes[route]
	if !exists {
		longest := -1
		for prefix, rc := range c.Routes {
			if strings.HasPrefix(route, prefix) && len(prefix) > longest {
				longest = len(prefix)
				override = rc
				exists = true
			}
		}
	}
	if !exists {
		return result
	}

	if override.WindowMs > 0 {
		result.WindowMs = override.WindowMs
	}
	if override.MaxRequests > 0 {
		result.MaxRequests = override.MaxRequests
	}
	if override.BlockDurationMs > 0 {
		result.BlockDurationMs = override.BlockDurationMs
	}
	if override.ProgressiveDelayMs > 0 {
		result.ProgressiveDelayMs = override.ProgressiveDelayMs
	}
	return result
}
