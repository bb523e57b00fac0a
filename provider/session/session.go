package session

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/gob"
	"time"
)

// Metadata carries the client attributes a session may be bound to
type Metadata struct {
	IPAddress         string
	UserAgent         string
	DeviceFingerprint string
}

// Session is a single authenticated session record
// The manager is the sole writer; callers treat it as read-only
type Session struct {
	ID                string
	UserID            string
	CreatedAt         time.Time
	LastActivity      time.Time
	ExpiresAt         time.Time
	IPAddress         string
	UserAgent         string
	DeviceFingerprint string
	IsActive          bool
}

// generateSessionID creates a cryptographically random session ID
func generateSessionID() string {
	buf := make([]byte, 128)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return base64.URLEncoding.EncodeToString(buf)
}

// marshalSession uses gob to serialize a session
func marshalSession(s *Session) ([]byte, error) {
	var b bytes.Buffer
	enc := gob.NewEncoder(&b)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// unmarshalSession uses gob to deserialize a session
func unmarshalSession(data []byte) (*Session, error) {
	var s Session
	dec := gob.NewDecoder(bytes.NewBuffer(data))
	if err := dec.Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// marshalIndex serializes the per-user session id list
func marshalIndex(ids []string) ([]byte, error) {
	var b bytes.Buffer
	enc := gob.NewEncoder(&b)
	if err := enc.Encode(ids); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// unmarshalIndex deserializes the per-user session id list
func unmarshalIndex(data []byte) ([]string, error) {
	var ids []string
	dec := gob.NewDecoder(bytes.NewBuffer(data))
	if err := dec.Decode(&ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func init() {
	// register type to be used with session storage
	gob.Register(&Session{})
}
