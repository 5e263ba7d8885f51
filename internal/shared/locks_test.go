package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newGuard(t *testing.T, ttl time.Duration) (*TriggerGuard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewTriggerGuard(client, ttl), mr
}

func TestTriggerGuardCollapsesRepeatedTriggers(t *testing.T) {
	guard, _ := newGuard(t, 30*time.Second)
	ctx := context.Background()

	ok, err := guard.Acquire(ctx, SyncTriggerKey())
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = guard.Acquire(ctx, SyncTriggerKey())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTriggerGuardReleaseFreesSlot(t *testing.T) {
	guard, _ := newGuard(t, 30*time.Second)
	ctx := context.Background()

	ok, err := guard.Acquire(ctx, SyncTriggerKey())
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, guard.Release(ctx, SyncTriggerKey()))

	ok, err = guard.Acquire(ctx, SyncTriggerKey())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestTriggerGuardExpires(t *testing.T) {
	guard, mr := newGuard(t, 5*time.Second)
	ctx := context.Background()

	ok, err := guard.Acquire(ctx, SyncTriggerKey())
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(6 * time.Second)

	ok, err = guard.Acquire(ctx, SyncTriggerKey())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestTriggerGuardNilClientAlwaysAcquires(t *testing.T) {
	var guard *TriggerGuard
	ok, err := guard.Acquire(context.Background(), SyncTriggerKey())
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, guard.Release(context.Background(), SyncTriggerKey()))
}
