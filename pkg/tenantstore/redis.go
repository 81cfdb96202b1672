package tenantstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	redisconn "github.com/dmitrymomot/filekit/pkg/redis"
)

// reserveScript atomically checks and increments tenant usage. Returns 1 on
// success, 0 when the reservation would exceed the limit.
var reserveScript = redis.NewScript(`
local usage = tonumber(redis.call('GET', KEYS[1]) or '0')
local bytes = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
if usage + bytes > limit then
  return 0
end
redis.call('INCRBY', KEYS[1], bytes)
return 1
`)

// releaseScript decrements usage, clamping at zero.
var releaseScript = redis.NewScript(`
local usage = tonumber(redis.call('GET', KEYS[1]) or '0')
local bytes = tonumber(ARGV[1])
if bytes >= usage then
  redis.call('SET', KEYS[1], '0')
else
  redis.call('DECRBY', KEYS[1], bytes)
end
return 1
`)

// RedisQuotaStore keeps usage counters in Redis so reservations stay atomic
// across processes.
type RedisQuotaStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisQuotaStore creates a store backed by the given client.
func NewRedisQuotaStore(client redis.UniversalClient) *RedisQuotaStore {
	return &RedisQuotaStore{
		client:    client,
		keyPrefix: "tenantstore:usage:",
	}
}

// NewRedisQuotaStoreFromConfig dials Redis with retry and wraps the client in
// a quota store. Intended for service bootstrap.
func NewRedisQuotaStoreFromConfig(ctx context.Context, cfg redisconn.Config) (*RedisQuotaStore, error) {
	client, err := redisconn.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewRedisQuotaStore(client), nil
}

func (s *RedisQuotaStore) key(tenantID string) string {
	return s.keyPrefix + tenantID
}

func (s *RedisQuotaStore) Reserve(ctx context.Context, tenantID string, bytes, limit int64) error {
	ok, err := reserveScript.Run(ctx, s.client, []string{s.key(tenantID)}, bytes, limit).Int()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrQuotaUnavailable, err)
	}
	if ok == 0 {
		return ErrQuotaExceeded
	}
	return nil
}

func (s *RedisQuotaStore) Release(ctx context.Context, tenantID string, bytes int64) error {
	if _, err := releaseScript.Run(ctx, s.client, []string{s.key(tenantID)}, bytes).Int(); err != nil {
		return fmt.Errorf("%w: %v", ErrQuotaUnavailable, err)
	}
	return nil
}

func (s *RedisQuotaStore) Usage(ctx context.Context, tenantID string) (int64, error) {
	n, err := s.client.Get(ctx, s.key(tenantID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrQuotaUnavailable, err)
	}
	return n, nil
}
