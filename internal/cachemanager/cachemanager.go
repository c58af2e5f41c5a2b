// Package cachemanager provides a typed, expiring in-memory cache.
package cachemanager

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	// DefaultExpiration is the expiration used when none is given.
	DefaultExpiration = 10 * time.Minute
	// DefaultCleanupInterval is how often expired items are purged.
	DefaultCleanupInterval = 30 * time.Minute
)

// CacheManager is a typed key/value cache.
type CacheManager[K comparable, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
	GetWithRefresh(ctx context.Context, key K, ttl time.Duration) (V, bool)
	Set(ctx context.Context, key K, value V, ttl time.Duration)
}

// InMemoryCacheManager implements CacheManager on top of go-cache. It is safe
// for concurrent use.
type InMemoryCacheManager[K comparable, V any] struct {
	cache *gocache.Cache
}

// NewInMemoryCacheManager creates a cache with the given default expiration and
// cleanup interval.
func NewInMemoryCacheManager[K comparable, V any](expiration, cleanupInterval time.Duration) *InMemoryCacheManager[K, V] {
	return &InMemoryCacheManager[K, V]{
		cache: gocache.New(expiration, cleanupInterval),
	}
}

// Get returns the value for key. Values of an unexpected type are treated as misses.
func (m *InMemoryCacheManager[K, V]) Get(_ context.Context, key K) (V, bool) {
	var zero V
	raw, found := m.cache.Get(cacheKey(key))
	if !found {
		return zero, false
	}
	v, ok := raw.(V)
	if !ok {
		return zero, false
	}
	return v, true
}

// GetWithRefresh returns the value for key and resets its expiration to ttl.
func (m *InMemoryCacheManager[K, V]) GetWithRefresh(ctx context.Context, key K, ttl time.Duration) (V, bool) {
	v, ok := m.Get(ctx, key)
	if ok {
		m.cache.Set(cacheKey(key), v, ttl)
	}
	return v, ok
}

// Set stores value under key for ttl.
func (m *InMemoryCacheManager[K, V]) Set(_ context.Context, key K, value V, ttl time.Duration) {
	m.cache.Set(cacheKey(key), value, ttl)
}

func cacheKey[K comparable](key K) string {
	return fmt.Sprint(key)
}
