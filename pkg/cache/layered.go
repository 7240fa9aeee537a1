package cache

import (
	"context"
	"time"
)

// Remote is the shared layer behind a LayeredCache. RedisCache is the production one.
type Remote interface {
	Service
	TTL(ctx context.Context, key string) (time.Duration, error)
	Close() error
}

// LayeredCache reads through a bounded in-process cache to a shared remote one.
// Writes go to the remote first. Locks live only in the remote layer so every
// replica sees them.
type LayeredCache struct {
	local  *MemoryCache
	remote Remote
	maxTTL time.Duration
}

func NewLayeredCache(remote Remote, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{MemoryMaxSize: 1000, MemoryTTL: 5 * time.Minute}
	for _, opt := range opts {
		opt(cfg)
	}
	return &LayeredCache{
		local:  NewMemoryCache(WithMemoryMaxSize(cfg.MemoryMaxSize)),
		remote: remote,
		maxTTL: cfg.MemoryTTL,
	}
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := lc.remote.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	_ = lc.local.Set(ctx, key, value, lc.localTTL(expiration))
	return nil
}

// Get promotes remote hits into the local layer for the remote's remaining TTL,
// capped at MemoryTTL.
func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.local.Get(ctx, key, dest); err == nil {
		return nil
	}
	if err := lc.remote.Get(ctx, key, dest); err != nil {
		return err
	}
	ttl, err := lc.remote.TTL(ctx, key)
	if err != nil {
		return nil
	}
	_ = lc.local.Set(ctx, key, dest, lc.localTTL(ttl))
	return nil
}

func (lc *LayeredCache) localTTL(remaining time.Duration) time.Duration {
	if remaining <= 0 || remaining > lc.maxTTL {
		return lc.maxTTL
	}
	return remaining
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.local.Delete(ctx, keys...)
	return lc.remote.Delete(ctx, keys...)
}

func (lc *LayeredCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	if ok, _ := lc.local.Exists(ctx, keys...); ok {
		return true, nil
	}
	return lc.remote.Exists(ctx, keys...)
}

func (lc *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return lc.remote.TryLock(ctx, key, ttl)
}

func (lc *LayeredCache) Unlock(ctx context.Context, key string) error {
	return lc.remote.Unlock(ctx, key)
}

func (lc *LayeredCache) Close() error {
	_ = lc.local.Close()
	return lc.remote.Close()
}

var _ Service = (*LayeredCache)(nil)
