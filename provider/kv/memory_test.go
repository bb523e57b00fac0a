package kv

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKV_SetGet(t *testing.T) {
	store := NewMemoryKV()

	require.NoError(t, store.Set("key", []byte("value")))

	v, err := store.Get("key")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), v)

	// missing key returns nil, nil
	v, err = store.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestMemoryKV_Delete(t *testing.T) {
	store := NewMemoryKV()

	require.NoError(t, store.Set("key", []byte("value")))
	require.NoError(t, store.Delete("key"))

	v, err := store.Get("key")
	require.NoError(t, err)
	assert.Nil(t, v)

	// deleting a missing key is not an error
	assert.NoError(t, store.Delete("missing"))
}

func TestMemoryKV_TTL(t *testing.T) {
	store := NewMemoryKV()

	require.NoError(t, store.SetTTL("short", []byte("value"), 10*time.Millisecond))
	require.NoError(t, store.SetTTL("long", []byte("value"), time.Hour))
	require.NoError(t, store.Set("forever", []byte("value")))

	time.Sleep(20 * time.Millisecond)

	v, err := store.Get("short")
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = store.Get("long")
	require.NoError(t, err)
	assert.NotNil(t, v)

	// zero ttl means no expiration
	v, err = store.Get("forever")
	require.NoError(t, err)
	assert.NotNil(t, v)
}

func TestMemoryKV_Prune(t *testing.T) {
	store := NewMemoryKV()

	require.NoError(t, store.SetTTL("expired", []byte("value"), time.Millisecond))
	require.NoError(t, store.Set("kept", []byte("value")))

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, store.Prune())

	mem := store.(*memkv)
	mem.m.RLock()
	defer mem.m.RUnlock()
	assert.NotContains(t, mem.data, "expired")
	assert.Contains(t, mem.data, "kept")
}

func TestRedisConfig_Validate(t *testing.T) {
	cfg := NewRedisConfig()
	assert.NoError(t, cfg.Validate())

	cfg.Address = ""
	assert.Equal(t, ErrMissingAddress, cfg.Validate())

	_, err := NewRedisKV(cfg)
	assert.Equal(t, ErrMissingAddress, err)
}
