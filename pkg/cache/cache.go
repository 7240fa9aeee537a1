package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
)

// Service defines cache operations interface.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, keys ...string) (bool, error)
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// Remember returns the cached value under key, or computes and stores it.
// Cache errors other than a miss are ignored so the cache never blocks the caller.
func Remember[T any](ctx context.Context, c Service, key string, ttl time.Duration, fn func() (T, error)) (T, bool, error) {
	var v T
	if err := c.Get(ctx, key, &v); err == nil {
		return v, true, nil
	}
	v, err := fn()
	if err != nil {
		return v, false, err
	}
	_ = c.Set(ctx, key, v, ttl)
	return v, false, nil
}
