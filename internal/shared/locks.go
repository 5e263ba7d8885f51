package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SyncTriggerKey builds the redis key guarding manual registry sync triggers.
func SyncTriggerKey() string {
	return "ksef:sync:trigger:lock"
}

// TriggerGuard collapses repeated manual triggers within a short window.
// The storage-level unique constraint on external numbers keeps concurrent
// runs safe regardless; the guard only spares the registry from operator
// double-clicks.
type TriggerGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTriggerGuard constructs a guard with the given hold window.
func NewTriggerGuard(client *redis.Client, ttl time.Duration) *TriggerGuard {
	return &TriggerGuard{client: client, ttl: ttl}
}

// Acquire attempts to take the trigger slot. It returns false when another
// trigger already holds it.
func (g *TriggerGuard) Acquire(ctx context.Context, key string) (bool, error) {
	if g == nil || g.client == nil {
		return true, nil
	}
	ok, err := g.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("shared: acquire trigger guard: %w", err)
	}
	return ok, nil
}

// Release frees the slot early, typically after the run has been enqueued.
func (g *TriggerGuard) Release(ctx context.Context, key string) error {
	if g == nil || g.client == nil {
		return nil
	}
	return g.client.Del(ctx, key).Err()
}
