package kv

import (
	"context"
	"errors"
	"time"

	"github.com/rampart-go/rampart/utils"
	"github.com/redis/go-redis/v9"
)

const (
	ErrMissingAddress = utils.Error("Missing address")
)

// RedisConfig contains Redis connection settings for the KV backend
type RedisConfig struct {
	Address        string `json:"address"`        // Address of the Redis server
	Password       string `json:"password"`       // Optional password
	DB             int    `json:"db"`             // DB is the Redis database to use
	KeyPrefix      string `json:"keyPrefix"`      // KeyPrefix is prepended to all keys
	TimeoutSeconds int    `json:"timeoutSeconds"` // TimeoutSeconds to wait for an operation
}

// NewRedisConfig returns a default Redis configuration
func NewRedisConfig() *RedisConfig {
	return &RedisConfig{
		Address:        "localhost:6379",
		DB:             0,
		KeyPrefix:      "",
		TimeoutSeconds: 10,
	}
}

// Validate checks if config values are valid
func (c *RedisConfig) Validate() error {
	if len(c.Address) == 0 {
		return ErrMissingAddress
	}
	return nil
}

type redisKV struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

// NewRedisKV creates a Redis-backed KV store
// Expiration is delegated to Redis TTLs, so Prune is a no-op
func NewRedisKV(config *RedisConfig) (KV, error) {
	if config == nil {
		config = NewRedisConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
	})

	return &redisKV{
		client:  client,
		prefix:  config.KeyPrefix,
		timeout: time.Duration(config.TimeoutSeconds) * time.Second,
	}, nil
}

func (r *redisKV) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.timeout)
}

// Set sets a key value without expiration
func (r *redisKV) Set(k string, v []byte) error {
	return r.SetTTL(k, v, 0)
}

// SetTTL sets a key value with ttl; ttl <= 0 means no expiration
func (r *redisKV) SetTTL(k string, v []byte, ttl time.Duration) error {
	ctx, cancel := r.ctx()
	defer cancel()
	if ttl < 0 {
		ttl = 0
	}
	return r.client.Set(ctx, r.prefix+k, v, ttl).Err()
}

// Get fetches a value
func (r *redisKV) Get(k string) ([]byte, error) {
	ctx, cancel := r.ctx()
	defer cancel()
	data, err := r.client.Get(ctx, r.prefix+k).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // not found
		}
		return nil, err
	}
	return data, nil
}

// Delete removes a value
func (r *redisKV) Delete(k string) error {
	ctx, cancel := r.ctx()
	defer cancel()
	return r.client.Del(ctx, r.prefix+k).Err()
}

// Prune is a no-op; Redis expires keys server-side
func (r *redisKV) Prune() error {
	return nil
}
