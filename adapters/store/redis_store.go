package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"

	"github.com/layer-3/zksponsor/core"
	"github.com/layer-3/zksponsor/internal/clock"
	"github.com/layer-3/zksponsor/ports"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// Expiry checks need sub-second precision.
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("store: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("store: CBOR decoder initialization failed: " + err.Error())
	}
}

// envelope is the structure stored in Redis
type envelope[V any] struct {
	Value     V         `cbor:"v"`
	ExpiresAt time.Time `cbor:"e"`
}

// RedisStore is a Redis implementation of the Store interface
type RedisStore[V any] struct {
	client *redis.Client
	prefix string
	clock  clock.Clock
}

// NewRedisStore creates a new Redis store. Every key is namespaced by prefix.
func NewRedisStore[V any](client *redis.Client, prefix string, clk clock.Clock) *RedisStore[V] {
	if clk == nil {
		clk = clock.Real()
	}
	return &RedisStore[V]{
		client: client,
		prefix: prefix,
		clock:  clk,
	}
}

func (s *RedisStore[V]) key(key string) string {
	return s.prefix + key
}

// Put stores value under key with a native Redis TTL
func (s *RedisStore[V]) Put(ctx context.Context, key string, value V, ttl time.Duration) error {
	if ttl <= 0 {
		return s.Delete(ctx, key)
	}

	data, err := encMode.Marshal(envelope[V]{Value: value, ExpiresAt: s.clock.Now().Add(ttl)})
	if err != nil {
		return fmt.Errorf("failed to encode value: %w", err)
	}

	if err := s.client.Set(ctx, s.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Get retrieves a live value by key
func (s *RedisStore[V]) Get(ctx context.Context, key string) (V, error) {
	var zero V

	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, core.ErrNotFound
		}
		return zero, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	env, err := s.decode(data)
	if err != nil {
		return zero, err
	}

	if s.clock.Now().After(env.ExpiresAt) {
		s.client.Del(ctx, s.key(key))
		return zero, core.ErrNotFound
	}
	return env.Value, nil
}

// Take reads and deletes key with GETDEL
func (s *RedisStore[V]) Take(ctx context.Context, key string) (V, error) {
	var zero V

	data, err := s.client.GetDel(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, core.ErrNotFound
		}
		return zero, fmt.Errorf("failed to take key %s: %w", key, err)
	}

	env, err := s.decode(data)
	if err != nil {
		return zero, err
	}
	if s.clock.Now().After(env.ExpiresAt) {
		return zero, core.ErrNotFound
	}
	return env.Value, nil
}

// Delete removes key
func (s *RedisStore[V]) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore[V]) decode(data []byte) (envelope[V], error) {
	var env envelope[V]
	if err := decMode.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("failed to decode stored value: %w", err)
	}
	return env, nil
}

var _ ports.Store[string] = (*RedisStore[string])(nil)
