package alerting

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/edupresencia/fichai/internal/errors"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupKey(t *testing.T) {
	t.Parallel()

	ev := lateEvent("emp-7", 20)
	assert.Equal(t, "rule-1|emp-7|2026-03-09", dedupKey("rule-1", ev))

	next := *ev
	next.OccurredAt = ev.OccurredAt.Add(24 * time.Hour)
	assert.NotEqual(t, dedupKey("rule-1", ev), dedupKey("rule-1", &next))
}

func TestMemoryCooldownStore(t *testing.T) {
	t.Parallel()

	s := NewMemoryCooldownStore()
	ctx := t.Context()

	ok, err := s.Acquire(ctx, "a", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Acquire(ctx, "a", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire of a held key")

	ok, err = s.Acquire(ctx, "short", 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)
	time.Sleep(25 * time.Millisecond)

	ok, err = s.Acquire(ctx, "short", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "expired key can be acquired again")

	assert.Equal(t, 2, s.Len())
	s.Purge()
	assert.Equal(t, 2, s.Len(), "nothing expired yet")
}

type fakeRedis struct {
	mu   sync.Mutex
	keys map[string]time.Duration
	err  error
}

func (f *fakeRedis) SetNX(_ context.Context, key string, _ any, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, ok := f.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func TestRedisCooldownStore(t *testing.T) {
	t.Parallel()

	fake := &fakeRedis{keys: map[string]time.Duration{}}
	s := NewRedisCooldownStore(fake)

	ok, err := s.Acquire(t.Context(), "rule-1|emp-7|2026-03-09", 48*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 48*time.Hour, fake.keys["fichai:alert:dedup:rule-1|emp-7|2026-03-09"])

	ok, err = s.Acquire(t.Context(), "rule-1|emp-7|2026-03-09", 48*time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	fake.err = errors.NewStd("connection refused")
	_, err = s.Acquire(t.Context(), "other", time.Hour)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
