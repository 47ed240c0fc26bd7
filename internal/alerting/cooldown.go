package alerting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/patrickmn/go-cache"
)

// CooldownStore deduplicates alert deliveries across events.
type CooldownStore interface {
	// Acquire claims key for ttl. It returns false when the key is already
	// held.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// dedupKey is the once-per-day key of a rule firing for an employee.
func dedupKey(ruleID string, event *TriggerEvent) string {
	return strings.Join([]string{ruleID, event.EmployeeID, event.dayKey()}, "|")
}

// MemoryCooldownStore keeps keys in process memory. Keys are lost on
// restart.
type MemoryCooldownStore struct {
	cache *cache.Cache
}

// NewMemoryCooldownStore creates an in-memory store. Expired keys are
// reclaimed by Purge.
func NewMemoryCooldownStore() *MemoryCooldownStore {
	return &MemoryCooldownStore{cache: cache.New(cache.NoExpiration, 0)}
}

func (s *MemoryCooldownStore) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if err := s.cache.Add(key, struct{}{}, ttl); err != nil {
		return false, nil
	}
	return true, nil
}

// Purge removes expired keys.
func (s *MemoryCooldownStore) Purge() {
	s.cache.DeleteExpired()
}

// Len returns the number of stored keys, expired ones included.
func (s *MemoryCooldownStore) Len() int {
	return s.cache.ItemCount()
}

// redisSetter is the part of the redis client used by RedisCooldownStore.
type redisSetter interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

// RedisCooldownStore shares keys between replicas through Redis SETNX.
type RedisCooldownStore struct {
	client redisSetter
	prefix string
}

const redisKeyPrefix = "fichai:alert:dedup:"

// NewRedisCooldownStore creates a store backed by client.
func NewRedisCooldownStore(client redisSetter) *RedisCooldownStore {
	return &RedisCooldownStore{client: client, prefix: redisKeyPrefix}
}

func (s *RedisCooldownStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis dedup for %s failed: %w", key, err)
	}
	return ok, nil
}
