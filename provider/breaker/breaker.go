package breaker

import (
	"sync"
	"time"

	"github.com/rampart-go/rampart/log"
)

// State represents the circuit state for a single target key
type State int

const (
	StateClosed   State = iota // normal operation, calls pass through
	StateOpen                  // failing, calls are rejected immediately
	StateHalfOpen              // probing, a single trial call is allowed
)

// String returns a human-readable state name
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// circuit tracks failures for one target key
// each circuit has its own lock so unrelated targets never serialize
type circuit struct {
	mu           sync.Mutex
	state        State
	failureCount int
	lastFailure  time.Time
	probing      bool
}

// Registry tracks circuit state per target key
// Circuits are created lazily on first reference and kept for the process lifetime
type Registry struct {
	mu          sync.RWMutex
	circuits    map[string]*circuit
	threshold   int
	openTimeout time.Duration
	logger      *log.Logger
	now         func() time.Time
}

// NewRegistry creates a circuit breaker registry
func NewRegistry(cfg *Config, logger *log.Logger) (*Registry, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New("breaker")
	}

	return &Registry{
		circuits:    make(map[string]*circuit),
		threshold:   cfg.FailureThreshold,
		openTimeout: time.Duration(cfg.OpenTimeoutSeconds) * time.Second,
		logger:      logger,
		now:         time.Now,
	}, nil
}

func (r *Registry) getCircuit(key string) *circuit {
	r.mu.RLock()
	c, exists := r.circuits[key]
	r.mu.RUnlock()
	if exists {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// double check after obtaining write lock
	if c, exists = r.circuits[key]; !exists {
		c = &circuit{state: StateClosed}
		r.circuits[key] = c
	}
	return c
}

// CanProceed reports whether a call to the target may be attempted
// When the open timeout has elapsed, the call performs the OPEN to HALF_OPEN
// transition and admits exactly one trial call; further checks are rejected
// until the trial outcome is recorded
func (r *Registry) CanProceed(key string) bool {
	c := r.getCircuit(key)
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateClosed:
		return true
	case StateOpen:
		if r.now().Sub(c.lastFailure) > r.openTimeout {
			c.state = StateHalfOpen
			c.probing = true
			r.logger.Info("circuit half-open, probing", map[string]interface{}{
				"target": key,
			})
			return true
		}
		return false
	case StateHalfOpen:
		// a probe is already in flight
		return !c.probing
	default:
		return false
	}
}

// RecordSuccess resets the failure count and closes the circuit
func (r *Registry) RecordSuccess(key string) {
	c := r.getCircuit(key)
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateClosed {
		r.logger.Info("circuit closed", map[string]interface{}{
			"target": key,
		})
	}
	c.state = StateClosed
	c.failureCount = 0
	c.probing = false
}

// RecordFailure counts a failure, opening the circuit when the threshold
// is reached or when a half-open trial call fails
func (r *Registry) RecordFailure(key string) {
	c := r.getCircuit(key)
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failureCount++
	c.lastFailure = r.now()

	if c.state == StateHalfOpen {
		// failed probe re-arms the open timeout
		c.state = StateOpen
		c.probing = false
		r.logger.Warn("circuit re-opened after failed probe", map[string]interface{}{
			"target": key,
		})
		return
	}

	if c.state == StateClosed && c.failureCount >= r.threshold {
		c.state = StateOpen
		r.logger.Warn("circuit opened", map[string]interface{}{
			"target":   key,
			"failures": c.failureCount,
		})
	}
}

// State returns the current state for a target key
func (r *Registry) State(key string) State {
	c := r.getCircuit(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reset forces a target back to closed state
func (r *Registry) Reset(key string) {
	c := r.getCircuit(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateClosed
	c.failureCount = 0
	c.probing = false
}

// Snapshot returns the current state of every known target
func (r *Registry) Snapshot() map[string]State {
	r.mu.RLock()
	keys := make([]string, 0, len(r.circuits))
	for k := range r.circuits {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	result := make(map[string]State, len(keys))
	for _, k := range keys {
		result[k] = r.State(k)
	}
	return result
}
