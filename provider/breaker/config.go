package breaker

import (
	"github.com/rampart-go/rampart/utils"
)

const (
	// DefaultFailureThreshold is the number of consecutive failures that opens a circuit
	DefaultFailureThreshold = 5

	// DefaultOpenTimeout is how long an open circuit waits before probing, in seconds
	DefaultOpenTimeout = 30

	ErrInvalidFailureThreshold = utils.Error("failure threshold must be positive")
	ErrInvalidOpenTimeout      = utils.Error("open timeout must be positive")
)

// Config holds configuration for a circuit breaker registry
type Config struct {
	FailureThreshold   int `json:"failureThreshold"`   // consecutive failures before the circuit opens
	OpenTimeoutSeconds int `json:"openTimeoutSeconds"` // seconds an open circuit waits before allowing a probe
}

// NewConfig returns a default breaker configuration
func NewConfig() *Config {
	return &Config{
		FailureThreshold:   DefaultFailureThreshold,
		OpenTimeoutSeconds: DefaultOpenTimeout,
	}
}

// Validate checks if config values are valid
func (c *Config) Validate() error {
	if c.FailureThreshold <= 0 {
		return ErrInvalidFailureThreshold
	}
	if c.OpenTimeoutSeconds <= 0 {
		return ErrInvalidOpenTimeout
	}
	return nil
}
