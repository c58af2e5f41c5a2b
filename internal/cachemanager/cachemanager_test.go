package cachemanager

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewInMemoryCacheManager(t *testing.T) {
	require.NotPanics(t, func() {
		NewInMemoryCacheManager[string, string](DefaultExpiration, DefaultCleanupInterval)
	})
}

func TestInMemoryCacheManager_GetExistingValue(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string](DefaultExpiration, DefaultCleanupInterval)
	cache.Set(context.Background(), "suite", "MathTest.Add", DefaultExpiration)

	got, ok := cache.Get(context.Background(), "suite")
	require.True(t, ok)
	require.Equal(t, "MathTest.Add", got)
}

func TestInMemoryCacheManager_GetMissing(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string](DefaultExpiration, DefaultCleanupInterval)

	got, ok := cache.Get(context.Background(), "suite")
	require.False(t, ok)
	require.Empty(t, got)
}

func TestInMemoryCacheManager_GetWithExistingInvalidValueType(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string](DefaultExpiration, DefaultCleanupInterval)

	cache.cache.Set("suite", 123, DefaultExpiration)

	got, ok := cache.Get(context.Background(), "suite")
	require.False(t, ok)
	require.Empty(t, got)
}

func TestInMemoryCacheManager_NonStringKeys(t *testing.T) {
	cache := NewInMemoryCacheManager[int, string](DefaultExpiration, DefaultCleanupInterval)
	cache.Set(context.Background(), 42, "answer", DefaultExpiration)

	got, ok := cache.Get(context.Background(), 42)
	require.True(t, ok)
	require.Equal(t, "answer", got)
}

func TestInMemoryCacheManager_RegexpValues(t *testing.T) {
	cache := NewInMemoryCacheManager[string, *regexp.Regexp](DefaultExpiration, DefaultCleanupInterval)
	re := regexp.MustCompile(`FAILED a\.py::test_x`)
	cache.Set(context.Background(), "a.py::test_x", re, time.Hour)

	got, ok := cache.Get(context.Background(), "a.py::test_x")
	require.True(t, ok)
	require.Same(t, re, got)
}

func TestInMemoryCacheManager_GetWithRefresh(t *testing.T) {
	ctx := context.Background()
	cache := NewInMemoryCacheManager[string, string](DefaultExpiration, DefaultCleanupInterval)

	got, ok := cache.GetWithRefresh(ctx, "k", time.Hour)
	require.False(t, ok)
	require.Equal(t, "", got)

	cache.Set(ctx, "k", "v", 50*time.Millisecond)
	got, ok = cache.GetWithRefresh(ctx, "k", time.Hour)
	require.True(t, ok)
	require.Equal(t, "v", got)

	_, expiry, found := cache.cache.GetWithExpiration("k")
	require.True(t, found)
	require.True(t, expiry.After(time.Now().Add(30*time.Minute)))

	time.Sleep(100 * time.Millisecond)
	got, ok = cache.Get(ctx, "k")
	require.True(t, ok, "refreshed item must outlive its original ttl")
	require.Equal(t, "v", got)
}

func TestInMemoryCacheManager_Expiry(t *testing.T) {
	ctx := context.Background()
	cache := NewInMemoryCacheManager[string, string](DefaultExpiration, DefaultCleanupInterval)
	cache.Set(ctx, "k", "v", time.Millisecond)

	require.Eventually(t, func() bool {
		_, ok := cache.Get(ctx, "k")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestInMemoryCacheManager_ConcurrentAccess(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string](DefaultExpiration, DefaultCleanupInterval)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		cache.Set(ctx, fmt.Sprintf("key-%d", i), fmt.Sprintf("value-%d", i), DefaultExpiration)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("key-%d", (id*10+j)%100)
				_, _ = cache.Get(ctx, key)
				cache.Set(ctx, key, fmt.Sprintf("updated-%d-%d", id, j), DefaultExpiration)
			}
		}(i)
	}
	wg.Wait()
}
