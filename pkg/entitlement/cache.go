package entitlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrymomot/vowbill/pkg/cache"
	"github.com/dmitrymomot/vowbill/pkg/redis"
)

// Cache stores resolved snapshots per workspace.
// Get returns ErrCacheMiss when nothing live is stored.
// Clear drops every snapshot the cache owns.
type Cache interface {
	Get(ctx context.Context, workspaceID string) (Snapshot, error)
	Set(ctx context.Context, workspaceID string, snap Snapshot, ttl time.Duration) error
	Delete(ctx context.Context, workspaceID string) error
	Clear(ctx context.Context) error
}

// MemoryCache keeps snapshots in a bounded in-process TTL LRU.
type MemoryCache struct {
	lru *cache.LRUCache[string, Snapshot]
}

// NewMemoryCache creates a MemoryCache holding at most capacity workspaces.
// Snapshots stored without a TTL expire after DefaultTTL.
func NewMemoryCache(capacity int) *MemoryCache {
	return &MemoryCache{lru: cache.NewTTLCache[string, Snapshot](capacity, DefaultTTL)}
}

// OnEvict registers fn for every snapshot that leaves the cache, whether it
// was evicted at capacity, expired, deleted or cleared. fn runs under the
// cache lock and must not call back into the cache.
func (c *MemoryCache) OnEvict(fn func(workspaceID string)) {
	if fn == nil {
		c.lru.SetEvictCallback(nil)
		return
	}
	c.lru.SetEvictCallback(func(workspaceID string, _ Snapshot) {
		fn(workspaceID)
	})
}

// SetClock replaces the time source used for expiry.
func (c *MemoryCache) SetClock(now func() time.Time) {
	c.lru.SetClock(now)
}

func (c *MemoryCache) Get(_ context.Context, workspaceID string) (Snapshot, error) {
	snap, ok := c.lru.Get(workspaceID)
	if !ok {
		return Snapshot{}, ErrCacheMiss
	}
	return snap, nil
}

func (c *MemoryCache) Set(_ context.Context, workspaceID string, snap Snapshot, ttl time.Duration) error {
	if ttl <= 0 {
		c.lru.Put(workspaceID, snap)
		return nil
	}
	c.lru.PutWithTTL(workspaceID, snap, ttl)
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, workspaceID string) error {
	c.lru.Remove(workspaceID)
	return nil
}

func (c *MemoryCache) Clear(context.Context) error {
	c.lru.Clear()
	return nil
}

// RedisCache shares snapshots between service instances through Redis.
// Values are JSON encoded under the workspace id and expire with the resolver
// TTL. The storage prefix must be dedicated to snapshots since Clear resets
// all of it.
type RedisCache struct {
	storage *redis.Storage
}

// NewRedisCache creates a RedisCache on top of a redis.Storage.
func NewRedisCache(storage *redis.Storage) *RedisCache {
	if storage == nil {
		panic("entitlement: redis storage is required")
	}
	return &RedisCache{storage: storage}
}

func (c *RedisCache) Get(ctx context.Context, workspaceID string) (Snapshot, error) {
	data, err := c.storage.Get(ctx, workspaceID)
	if errors.Is(err, redis.ErrKeyNotFound) {
		return Snapshot{}, ErrCacheMiss
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("read cached snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode cached snapshot: %w", err)
	}
	return snap, nil
}

func (c *RedisCache) Set(ctx context.Context, workspaceID string, snap Snapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return c.storage.Set(ctx, workspaceID, data, ttl)
}

func (c *RedisCache) Delete(ctx context.Context, workspaceID string) error {
	return c.storage.Delete(ctx, workspaceID)
}

func (c *RedisCache) Clear(ctx context.Context) error {
	if err := c.storage.Reset(ctx); err != nil {
		return fmt.Errorf("reset snapshot cache: %w", err)
	}
	return nil
}

// NoOpCache disables caching; every Resolve reads the store.
type NoOpCache struct{}

func (NoOpCache) Get(context.Context, string) (Snapshot, error) { return Snapshot{}, ErrCacheMiss }

func (NoOpCache) Set(context.Context, string, Snapshot, time.Duration) error { return nil }

func (NoOpCache) Delete(context.Context, string) error { return nil }

func (NoOpCache) Clear(context.Context) error { return nil }
