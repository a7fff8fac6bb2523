package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisRevoker(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r := NewRedisRevoker(rdb)
	ctx := context.Background()

	revoked, err := r.Revoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, r.Revoke(ctx, "jti-1", time.Now().Add(time.Minute)))
	revoked, err = r.Revoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	mr.FastForward(2 * time.Minute)
	revoked, err = r.Revoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRedisRevokerSkipsExpiredTokens(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r := NewRedisRevoker(rdb)
	require.NoError(t, r.Revoke(context.Background(), "old", time.Now().Add(-time.Minute)))
	assert.False(t, mr.Exists(revokedKeyPrefix+"old"))
}

func TestMemoryRevoker(t *testing.T) {
	r := NewMemoryRevoker()
	now := time.Now()
	r.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, r.Revoke(ctx, "a", now.Add(time.Minute)))
	revoked, _ := r.Revoked(ctx, "a")
	assert.True(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, _ = r.Revoked(ctx, "a")
	assert.False(t, revoked)

	require.NoError(t, r.Revoke(ctx, "b", now.Add(time.Minute)))
	assert.Len(t, r.revoked, 1, "expired ids are pruned")
}
