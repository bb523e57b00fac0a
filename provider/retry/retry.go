package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/rampart-go/rampart/log"
	"github.com/rampart-go/rampart/utils"
)

const (
	// DefaultMaxRetries is the number of additional attempts beyond the first
	DefaultMaxRetries = 3

	// DefaultBaseDelay is the backoff base delay in milliseconds
	DefaultBaseDelay = 1000

	// DefaultMaxDelay caps a single backoff delay, in milliseconds
	DefaultMaxDelay = 10000

	ErrInvalidMaxRetries = utils.Error("max retries cannot be negative")
	ErrInvalidBaseDelay  = utils.Error("base delay must be positive")
	ErrInvalidMaxDelay   = utils.Error("max delay must be >= base delay")
)

// Config holds configuration for a retry policy
type Config struct {
	MaxRetries  int `json:"maxRetries"`  // additional attempts beyond the first
	BaseDelayMs int `json:"baseDelayMs"` // exponential backoff base
	MaxDelayMs  int `json:"maxDelayMs"`  // upper bound for a single delay
}

// NewConfig returns a default retry configuration
func NewConfig() *Config {
	return &Config{
		MaxRetries:  DefaultMaxRetries,
		BaseDelayMs: DefaultBaseDelay,
		MaxDelayMs:  DefaultMaxDelay,
	}
}

// Validate checks if config values are valid
func (c *Config) Validate() error {
	if c.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	if c.BaseDelayMs <= 0 {
		return ErrInvalidBaseDelay
	}
	if c.MaxDelayMs < c.BaseDelayMs {
		return ErrInvalidMaxDelay
	}
	return nil
}

// Backoff computes the delay before attempt n (n >= 1) as
// min(base * 2^n + jitter, max), with jitter uniform in up to 10% of the
// exponential term so synchronized clients do not retry in lockstep
func Backoff(base, max time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	exp := float64(base) * math.Pow(2, float64(attempt))
	jitter := rand.Float64() * 0.1 * exp
	delay := time.Duration(exp + jitter)
	if delay > max {
		return max
	}
	return delay
}

// Policy executes operations with bounded automatic retries
type Policy struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	logger     *log.Logger
}

// NewPolicy creates a retry policy
func NewPolicy(cfg *Config, logger *log.Logger) (*Policy, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New("retry")
	}

	return &Policy{
		maxRetries: cfg.MaxRetries,
		baseDelay:  time.Duration(cfg.BaseDelayMs) * time.Millisecond,
		maxDelay:   time.Duration(cfg.MaxDelayMs) * time.Millisecond,
		logger:     logger,
	}, nil
}

// MaxRetries returns the configured retry budget
func (p *Policy) MaxRetries() int {
	return p.maxRetries
}

// Delay returns the backoff delay before the given attempt (1-based)
func (p *Policy) Delay(attempt int) time.Duration {
	return Backoff(p.baseDelay, p.maxDelay, attempt)
}

// Do runs op, retrying failures for which retryable returns true, up to
// MaxRetries additional attempts. Non-retryable failures propagate on first
// occurrence; when the budget is exhausted the last failure is returned
// unchanged. A nil retryable treats every failure as final.
func (p *Policy) Do(ctx context.Context, op func(context.Context) error, retryable func(error) bool) error {
	var err error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			delay := p.Delay(attempt)
			p.logger.Debug("retrying operation", map[string]interface{}{
				"attempt": attempt,
				"delay":   delay.String(),
			})
			if werr := sleep(ctx, delay); werr != nil {
				return werr
			}
		}

		err = op(ctx)
		if err == nil {
			return nil
		}
		if retryable == nil || !retryable(err) {
			return err
		}
	}
	return err
}

// sleep waits for the given duration unless the context is cancelled first
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
