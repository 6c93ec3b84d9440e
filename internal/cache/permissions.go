// Package cache keeps short-lived copies of actor permission sets in Redis so
// the per-request actor load does not hit Postgres on every call.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"forms-api/internal/domain"

	"github.com/redis/go-redis/v9"
)

// ActorSnapshot is the cached shape of an actor.
type ActorSnapshot struct {
	GroupID string                  `json:"groupId"`
	Codes   []domain.PermissionCode `json:"codes"`
}

// PermissionCache stores ActorSnapshots keyed by user id.
type PermissionCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewPermissionCache returns a cache with the given TTL. A zero TTL disables it.
func NewPermissionCache(client redis.Cmdable, ttl time.Duration) *PermissionCache {
	return &PermissionCache{client: client, ttl: ttl}
}

func actorKey(userID string) string {
	return "perm:actor:" + userID
}

// Enabled reports whether reads and writes reach Redis.
func (c *PermissionCache) Enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

// Get returns the snapshot for userID. ok is false on a miss.
func (c *PermissionCache) Get(ctx context.Context, userID string) (*ActorSnapshot, bool, error) {
	if !c.Enabled() {
		return nil, false, nil
	}

	raw, err := c.client.Get(ctx, actorKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read permission cache: %w", err)
	}

	var snap ActorSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		// corrupt entry counts as a miss and is overwritten on the next Set
		return nil, false, nil
	}
	return &snap, true, nil
}

// Set stores snap for userID with the configured TTL.
func (c *PermissionCache) Set(ctx context.Context, userID string, snap ActorSnapshot) error {
	if !c.Enabled() {
		return nil
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal actor snapshot: %w", err)
	}
	if err := c.client.Set(ctx, actorKey(userID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write permission cache: %w", err)
	}
	return nil
}

// Invalidate drops the entry for userID.
func (c *PermissionCache) Invalidate(ctx context.Context, userID string) error {
	if !c.Enabled() {
		return nil
	}
	if err := c.client.Del(ctx, actorKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate permission cache: %w", err)
	}
	return nil
}
