package kv

import (
	"sync"
	"time"
)

// KV is a minimal key-value storage abstraction with optional expiration
// A nil value returned by Get means the key does not exist
type KV interface {
	SetTTL(k string, v []byte, ttl time.Duration) error
	Set(k string, v []byte) error
	Get(k string) ([]byte, error)
	Delete(k string) error
	Prune() error
}

type record struct {
	data    []byte
	created time.Time
	ttl     time.Duration
}

func (r *record) expired(now time.Time) bool {
	return r.ttl > 0 && now.Sub(r.created) > r.ttl
}

type memkv struct {
	data map[string]*record
	m    sync.RWMutex
}

// NewMemoryKV creates an in-memory KV store
func NewMemoryKV() KV {
	return &memkv{
		data: make(map[string]*record),
	}
}

// Set sets a key value without expiration
func (mkv *memkv) Set(k string, v []byte) error {
	return mkv.SetTTL(k, v, 0)
}

// SetTTL sets a key value with ttl; ttl <= 0 means no expiration
func (mkv *memkv) SetTTL(k string, v []byte, ttl time.Duration) error {
	mkv.m.Lock()
	defer mkv.m.Unlock()
	mkv.data[k] = &record{
		data:    v,
		created: time.Now(),
		ttl:     ttl,
	}
	return nil
}

// Get fetches a value; expired records are treated as missing
func (mkv *memkv) Get(k string) ([]byte, error) {
	mkv.m.RLock()
	defer mkv.m.RUnlock()
	v, ok := mkv.data[k]
	if !ok || v.expired(time.Now()) {
		return nil, nil // not found
	}
	return v.data, nil
}

// Delete removes a value
func (mkv *memkv) Delete(k string) error {
	mkv.m.Lock()
	defer mkv.m.Unlock()
	delete(mkv.data, k)
	return nil
}

// Prune removes expired records
func (mkv *memkv) Prune() error {
	now := time.Now()
	mkv.m.Lock()
	defer mkv.m.Unlock()
	for k, v := range mkv.data {
		if v.expired(now) {
			delete(mkv.data, k)
		}
	}
	return nil
}
