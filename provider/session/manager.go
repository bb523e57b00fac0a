package session

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rampart-go/rampart/crypt/secure"
	"github.com/rampart-go/rampart/log"
	"github.com/rampart-go/rampart/provider/kv"
)

const (
	sessionKeyPrefix = "s:"
	userKeyPrefix    = "u:"
)

// Manager creates, validates and revokes sessions, enforcing absolute
// expiry, inactivity timeout, sliding renewal and per-user concurrency caps
//
// Sessions are persisted through the kv.KV backend, which is the durability
// boundary; the in-memory cache is an optimization and is rebuilt from the
// backend on demand
type Manager struct {
	backend kv.KV
	config  *Config
	logger  *log.Logger
	crypt   secure.AES256GCM

	mu    sync.Mutex
	cache map[string]*Session
	users map[string][]string // userID -> session ids

	now func() time.Time

	stopCleanup chan struct{}
	done        chan struct{}
	started     atomic.Bool
	startOnce   sync.Once
	stopOnce    sync.Once
}

// NewManager creates a session manager
// A nil backend uses an in-memory KV store
func NewManager(cfg *Config, backend kv.KV, logger *log.Logger) (*Manager, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if backend == nil {
		backend = kv.NewMemoryKV()
	}
	if logger == nil {
		logger = log.New("session")
	}

	var crypt secure.AES256GCM
	if cfg.EncryptionKey != "" {
		var err error
		crypt, err = secure.NewAES256GCM([]byte(cfg.EncryptionKey))
		if err != nil {
			return nil, err
		}
	}

	return &Manager{
		backend:     backend,
		config:      cfg,
		logger:      logger,
		crypt:       crypt,
		cache:       make(map[string]*Session),
		users:       make(map[string][]string),
		now:         time.Now,
		stopCleanup: make(chan struct{}),
		done:        make(chan struct{}),
	}, nil
}

func (m *Manager) maxAge() time.Duration {
	return time.Duration(m.config.MaxAgeSeconds) * time.Second
}

func (m *Manager) inactivityTimeout() time.Duration {
	return time.Duration(m.config.InactivityTimeoutSeconds) * time.Second
}

// Create starts a new session for a user, enforcing the concurrency policy
// first: in single-session mode all existing sessions are revoked, otherwise
// the least-recently-active sessions are evicted until under the cap
func (m *Manager) Create(userID string, meta Metadata) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config.PreventConcurrentLogins {
		m.invalidateUserLocked(userID, "concurrent login")
	} else {
		active := m.userSessionsLocked(userID)
		sort.Slice(active, func(i, j int) bool {
			return active[i].LastActivity.Before(active[j].LastActivity)
		})
		for len(active) >= m.config.MaxConcurrentSessions {
			m.revokeLocked(active[0], "session cap eviction")
			active = active[1:]
		}
	}

	now := m.now()
	s := &Session{
		ID:                generateSessionID(),
		UserID:            userID,
		CreatedAt:         now,
		LastActivity:      now,
		ExpiresAt:         now.Add(m.maxAge()),
		IPAddress:         meta.IPAddress,
		UserAgent:         meta.UserAgent,
		DeviceFingerprint: meta.DeviceFingerprint,
		IsActive:          true,
	}

	m.cache[s.ID] = s
	m.users[userID] = append(m.users[userID], s.ID)
	if err := m.persistLocked(s); err != nil {
		delete(m.cache, s.ID)
		m.users[userID] = removeID(m.users[userID], s.ID)
		return nil, err
	}
	if err := m.persistIndexLocked(userID); err != nil {
		return nil, err
	}

	m.logger.Info("session created", map[string]interface{}{
		"user_id": userID,
	})
	return s, nil
}

// Validate checks a session and records activity on it
// Every failure mode degrades uniformly to a nil session, so callers cannot
// distinguish expired from tampered from never-existed
func (m *Manager) Validate(id string, meta Metadata) *Session {
	return m.validate(id, meta, true)
}

// Inspect checks a session without recording activity or renewing it,
// for read-only checks
func (m *Manager) Inspect(id string) *Session {
	return m.validate(id, Metadata{}, false)
}

func (m *Manager) validate(id string, meta Metadata, touch bool) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.loadLocked(id)
	if s == nil || !s.IsActive {
		return nil
	}

	now := m.now()
	if now.After(s.ExpiresAt) {
		m.revokeLocked(s, "expired")
		return nil
	}
	if now.Sub(s.LastActivity) > m.inactivityTimeout() {
		m.revokeLocked(s, "inactivity timeout")
		return nil
	}

	if touch {
		// a bound session presenting different client attributes is
		// treated as hijacked
		if m.config.BindClientIP && s.IPAddress != "" && meta.IPAddress != "" && s.IPAddress != meta.IPAddress {
			m.revokeLocked(s, "client ip mismatch")
			return nil
		}
		if m.config.BindUserAgent && s.UserAgent != "" && meta.UserAgent != "" && s.UserAgent != meta.UserAgent {
			m.revokeLocked(s, "user agent mismatch")
			return nil
		}

		s.LastActivity = now

		// sliding renewal near expiry only, to limit write amplification
		renewAfter := time.Duration(float64(m.maxAge()) * m.config.RenewalThreshold)
		if now.After(s.CreatedAt.Add(renewAfter)) {
			s.ExpiresAt = now.Add(m.maxAge())
		}

		if err := m.persistLocked(s); err != nil {
			// keep serving the session; the backend write is retried on
			// the next validation
			m.logger.Error(err, "failed to persist session activity")
		}
	}

	return s
}

// Invalidate revokes a single session
func (m *Manager) Invalidate(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.loadLocked(id); s != nil {
		m.revokeLocked(s, "logout")
	}
}

// InvalidateUser revokes every session belonging to a user
func (m *Manager) InvalidateUser(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidateUserLocked(userID, "user invalidation")
}

// Sweep revokes every cached session past expiry or marked inactive, and
// prunes the backend; it bounds memory even without validation traffic
func (m *Manager) Sweep() {
	m.mu.Lock()
	now := m.now()
	for _, s := range m.cache {
		if !s.IsActive || now.After(s.ExpiresAt) || now.Sub(s.LastActivity) > m.inactivityTimeout() {
			m.revokeLocked(s, "sweep")
		}
	}
	m.mu.Unlock()

	if err := m.backend.Prune(); err != nil {
		m.logger.Error(err, "failed to prune session backend")
	}
}

// Start begins the periodic sweep goroutine (safe to call multiple times)
func (m *Manager) Start() {
	m.startOnce.Do(func() {
		m.started.Store(true)
		go m.cleanupLoop()
	})
}

func (m *Manager) cleanupLoop() {
	defer close(m.done)
	ticker := time.NewTicker(time.Duration(m.config.CleanupIntervalSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-m.stopCleanup:
			return
		}
	}
}

// Shutdown stops the background sweep goroutine (safe to call multiple times)
func (m *Manager) Shutdown() {
	m.stopOnce.Do(func() {
		close(m.stopCleanup)
	})
}

// ShutdownWithContext stops the sweep goroutine and waits for it to exit
func (m *Manager) ShutdownWithContext(ctx context.Context) error {
	m.stopOnce.Do(func() {
		close(m.stopCleanup)
	})
	if !m.started.Load() {
		return nil
	}

	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// loadLocked fetches a session from the cache, falling back to the backend
func (m *Manager) loadLocked(id string) *Session {
	if s, ok := m.cache[id]; ok {
		return s
	}

	data, err := m.backend.Get(sessionKeyPrefix + id)
	if err != nil {
		m.logger.Error(err, "failed to load session from backend")
		return nil
	}
	if data == nil {
		return nil
	}

	if m.crypt != nil {
		if data, err = m.crypt.Decrypt(data); err != nil {
			m.logger.Warn("discarding undecryptable session record")
			return nil
		}
	}

	s, err := unmarshalSession(data)
	if err != nil {
		m.logger.Error(err, "failed to decode session record")
		return nil
	}

	m.cache[s.ID] = s
	if !contains(m.users[s.UserID], s.ID) {
		m.users[s.UserID] = append(m.users[s.UserID], s.ID)
	}
	return s
}

// userSessionsLocked returns the active sessions for a user, consulting the
// persisted index so the cap holds across process restarts
func (m *Manager) userSessionsLocked(userID string) []*Session {
	ids := m.users[userID]
	if ids == nil {
		if data, err := m.backend.Get(userKeyPrefix + userID); err == nil && data != nil {
			if stored, derr := unmarshalIndex(data); derr == nil {
				ids = stored
				m.users[userID] = stored
			}
		}
	}

	result := make([]*Session, 0, len(ids))
	for _, id := range ids {
		if s := m.loadLocked(id); s != nil && s.IsActive {
			result = append(result, s)
		}
	}
	return result
}

func (m *Manager) invalidateUserLocked(userID, reason string) {
	for _, s := range m.userSessionsLocked(userID) {
		m.revokeLocked(s, reason)
	}
}

// revokeLocked terminates a session; revocation is terminal
func (m *Manager) revokeLocked(s *Session, reason string) {
	s.IsActive = false
	delete(m.cache, s.ID)
	m.users[s.UserID] = removeID(m.users[s.UserID], s.ID)

	if err := m.backend.Delete(sessionKeyPrefix + s.ID); err != nil {
		m.logger.Error(err, "failed to delete session from backend")
	}
	if err := m.persistIndexLocked(s.UserID); err != nil {
		m.logger.Error(err, "failed to update session index")
	}

	m.logger.Info("session revoked", map[string]interface{}{
		"user_id": s.UserID,
		"reason":  reason,
	})
}

func (m *Manager) persistLocked(s *Session) error {
	data, err := marshalSession(s)
	if err != nil {
		return err
	}
	if m.crypt != nil {
		if data, err = m.crypt.Encrypt(data); err != nil {
			return err
		}
	}

	// expire backend records at the sooner of absolute expiry and idle timeout
	ttl := s.ExpiresAt.Sub(m.now())
	if idle := m.inactivityTimeout(); idle < ttl {
		ttl = idle
	}
	return m.backend.SetTTL(sessionKeyPrefix+s.ID, data, ttl)
}

func (m *Manager) persistIndexLocked(userID string) error {
	ids := m.users[userID]
	if len(ids) == 0 {
		delete(m.users, userID)
		return m.backend.Delete(userKeyPrefix + userID)
	}
	data, err := marshalIndex(ids)
	if err != nil {
		return err
	}
	return m.backend.Set(userKeyPrefix+userID, data)
}

func removeID(ids []string, id string) []string {
	result := ids[:0]
	for _, v := range ids {
		if v != id {
			result = append(result, v)
		}
	}
	return result
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
