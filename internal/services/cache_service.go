package services

import (
	"context"
	"time"
)

// CacheService is the slice of the cache the engine needs. A nil
// CacheService is valid everywhere; callers degrade to the store.
type CacheService interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
}
