package ratelimiter

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rampart-go/rampart/log"
	"github.com/rampart-go/rampart/provider/retry"
)

// Decision is the outcome of an admission check
// The limiter never blocks; any Delay is applied by the caller
type Decision struct {
	Allowed    bool
	Delay      time.Duration // wait before proceeding, when allowed near the limit
	RetryAfter int           // seconds until a denied caller may try again
}

// entry tracks request counts for one (identity, route) pair
type entry struct {
	mu          sync.Mutex
	count       int
	windowReset time.Time
	lastAttempt time.Time
	blocked     bool
	blockUntil  time.Time
}

// Limiter bounds request volume per (identity, route) pair with escalating
// consequences: progressive delays near the limit, temporary blocks past it,
// and a reduced cap for identities flagged as suspicious
type Limiter struct {
	mu      sync.RWMutex
	entries map[string]*entry

	suspiciousMu sync.Mutex
	suspicious   map[string]time.Time // identity -> flag expiry

	config *Config
	logger *log.Logger

	now       func() time.Time
	randFloat func() float64

	stopCleanup chan struct{}
	done        chan struct{}
	started     atomic.Bool
	startOnce   sync.Once
	stopOnce    sync.Once
}

// NewLimiter creates a rate limiter
func NewLimiter(cfg *Config, logger *log.Logger) (*Limiter, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New("ratelimiter")
	}

	return &Limiter{
		entries:     make(map[string]*entry),
		suspicious:  make(map[string]time.Time),
		config:      cfg,
		logger:      logger,
		now:         time.Now,
		randFloat:   rand.Float64,
		stopCleanup: make(chan struct{}),
		done:        make(chan struct{}),
	}, nil
}

func (l *Limiter) getEntry(key string) *entry {
	l.mu.RLock()
	e, exists := l.entries[key]
	l.mu.RUnlock()
	if exists {
		return e
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// double check after obtaining write lock
	if e, exists = l.entries[key]; !exists {
		e = &entry{}
		l.entries[key] = e
	}
	return e
}

func (l *Limiter) isSuspicious(identity string, now time.Time) bool {
	l.suspiciousMu.Lock()
	defer l.suspiciousMu.Unlock()
	expiry, flagged := l.suspicious[identity]
	if !flagged {
		return false
	}
	if now.After(expiry) {
		delete(l.suspicious, identity)
		return false
	}
	return true
}

// markSuspicious flags an identity; a fresh violation renews the expiry
func (l *Limiter) markSuspicious(identity string, now time.Time) {
	l.suspiciousMu.Lock()
	l.suspicious[identity] = now.Add(SuspicionDuration * time.Millisecond)
	l.suspiciousMu.Unlock()

	l.logger.Warn("identity flagged as suspicious", map[string]interface{}{
		"identity": identity,
	})
}

// effectiveMax applies the suspicious reduction to a route's max
func effectiveMax(max int, suspicious bool) int {
	if !suspicious {
		return max
	}
	reduced := int(math.Floor(float64(max) * suspiciousRateFactor))
	if reduced < 1 {
		reduced = 1
	}
	return reduced
}

// Check performs an admission check for one request; every call counts
// against the window, so it is not a pure query
func (l *Limiter) Check(identity, route string) Decision {
	if l.randFloat() < cleanupProbability {
		l.cleanup()
	}

	cfg := l.config.resolve(route)
	now := l.now()
	e := l.getEntry(identity + "|" + route)

	max := effectiveMax(cfg.MaxRequests, l.isSuspicious(identity, now))

	e.mu.Lock()
	defer e.mu.Unlock()

	// an expired block lifts on next access; attempts made while blocked
	// still count, so hammering a block escalates to a suspicion flag
	if e.blocked && now.Before(e.blockUntil) {
		e.count++
		e.lastAttempt = now
		if e.count > 2*max {
			l.markSuspicious(identity, now)
		}
		return Decision{
			Allowed:    false,
			RetryAfter: retryAfterSec(e.blockUntil.Sub(now)),
		}
	}

	if now.After(e.windowReset) {
		e.count = 0
		e.windowReset = now.Add(time.Duration(cfg.WindowMs) * time.Millisecond)
		e.blocked = false
	}

	e.count++
	e.lastAttempt = now

	if e.count > max {
		blockDuration := time.Duration(cfg.BlockDurationMs) * time.Millisecond
		e.blocked = true
		e.blockUntil = now.Add(blockDuration)

		if e.count > 2*max {
			l.markSuspicious(identity, now)
		}

		l.logger.Warn("rate limit exceeded", map[string]interface{}{
			"identity": identity,
			"route":    route,
			"count":    e.count,
			"max":      max,
		})
		return Decision{
			Allowed:    false,
			RetryAfter: retryAfterSec(blockDuration),
		}
	}

	// approaching the limit: slow the caller down progressively
	threshold := int(math.Floor(float64(max) * progressiveThresholdRatio))
	if e.count > threshold {
		delay := retry.Backoff(
			time.Duration(cfg.ProgressiveDelayMs)*time.Millisecond,
			progressiveDelayCap*time.Millisecond,
			e.count-threshold,
		)
		return Decision{Allowed: true, Delay: delay}
	}

	return Decision{Allowed: true}
}

func retryAfterSec(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}

// cleanup sweeps entries that are both expired and unblocked, and drops
// expired suspicious flags
func (l *Limiter) cleanup() {
	now := l.now()

	l.mu.RLock()
	keys := make([]string, 0, len(l.entries))
	for k := range l.entries {
		keys = append(keys, k)
	}
	l.mu.RUnlock()

	stale := make([]string, 0)
	for _, k := range keys {
		l.mu.RLock()
		e := l.entries[k]
		l.mu.RUnlock()
		if e == nil {
			continue
		}
		e.mu.Lock()
		expired := now.After(e.windowReset) && (!e.blocked || now.After(e.blockUntil))
		e.mu.Unlock()
		if expired {
			stale = append(stale, k)
		}
	}

	if len(stale) > 0 {
		l.mu.Lock()
		for _, k := range stale {
			delete(l.entries, k)
		}
		l.mu.Unlock()
	}

	l.suspiciousMu.Lock()
	for identity, expiry := range l.suspicious {
		if now.After(expiry) {
			delete(l.suspicious, identity)
		}
	}
	l.suspiciousMu.Unlock()
}

// Start begins the periodic cleanup goroutine (safe to call multiple times)
// The limiter works without it; cleanup then happens opportunistically on
// a small fraction of checks
func (l *Limiter) Start(interval time.Duration) {
	l.startOnce.Do(func() {
		l.started.Store(true)
		go l.cleanupLoop(interval)
	})
}

func (l *Limiter) cleanupLoop(interval time.Duration) {
	defer close(l.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCleanup:
			return
		}
	}
}

// Shutdown stops the background cleanup goroutine (safe to call multiple times)
func (l *Limiter) Shutdown() {
	l.stopOnce.Do(func() {
		close(l.stopCleanup)
	})
}

// ShutdownWithContext stops the cleanup goroutine and waits for it to exit
func (l *Limiter) ShutdownWithContext(ctx context.Context) error {
	l.stopOnce.Do(func() {
		close(l.stopCleanup)
	})
	if !l.started.Load() {
		return nil
	}

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
