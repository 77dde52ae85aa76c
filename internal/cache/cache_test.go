package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingCache is an L2 whose every call fails
type failingCache struct{}

func (failingCache) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, &CacheError{Operation: "get", Key: key, Err: assert.AnError}
}

func (failingCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	return &CacheError{Operation: "set", Key: key, Err: assert.AnError}
}

func (failingCache) Delete(ctx context.Context, key string) error {
	return &CacheError{Operation: "delete", Key: key, Err: assert.AnError}
}

func (failingCache) Exists(ctx context.Context, key string) (bool, error) {
	return false, &CacheError{Operation: "exists", Key: key, Err: assert.AnError}
}

func (failingCache) Close() error { return nil }
func (failingCache) Health(ctx context.Context) error { return assert.AnError }

// fakeClock lets tests move a MemoryCache through time
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestMemoryCache(maxItems int) (*MemoryCache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewMemoryCache(maxItems)
	c.now = clock.now
	return c, clock
}

func TestMemoryCache_Basic(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestMemoryCache(10)
	defer cache.Close()

	// Test Set and Get
	err := cache.Set(ctx, "key1", []byte("value1"), time.Hour)
	require.NoError(t, err)

	value, err := cache.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, []byte("value1"), value)

	exists, err := cache.Exists(ctx, "key1")
	require.NoError(t, err)
	assert.True(t, exists)

	// Missing keys are a miss, not an error
	value, err = cache.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestMemoryCache_Overwrite(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestMemoryCache(10)

	require.NoError(t, cache.Set(ctx, "key1", []byte("value1"), time.Hour))
	require.NoError(t, cache.Set(ctx, "key1", []byte("value2"), time.Hour))

	value, err := cache.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, []byte("value2"), value)
	assert.Equal(t, 1, cache.Len())
}

func TestMemoryCache_Delete(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestMemoryCache(10)

	require.NoError(t, cache.Set(ctx, "key1", []byte("value1"), time.Hour))
	require.NoError(t, cache.Delete(ctx, "key1"))
	require.NoError(t, cache.Delete(ctx, "never-set"))

	exists, err := cache.Exists(ctx, "key1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryCache_Expiration(t *testing.T) {
	ctx := context.Background()
	cache, clock := newTestMemoryCache(10)

	require.NoError(t, cache.Set(ctx, "short", []byte("a"), time.Minute))
	require.NoError(t, cache.Set(ctx, "forever", []byte("b"), 0))

	clock.advance(59 * time.Second)
	value, _ := cache.Get(ctx, "short")
	assert.Equal(t, []byte("a"), value)

	clock.advance(time.Second)
	value, _ = cache.Get(ctx, "short")
	assert.Nil(t, value)
	exists, _ := cache.Exists(ctx, "short")
	assert.False(t, exists)

	clock.advance(24 * time.Hour)
	value, _ = cache.Get(ctx, "forever")
	assert.Equal(t, []byte("b"), value)
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestMemoryCache(2)

	require.NoError(t, cache.Set(ctx, "a", []byte("1"), time.Hour))
	require.NoError(t, cache.Set(ctx, "b", []byte("2"), time.Hour))

	// Touch a so b becomes the eviction candidate
	_, _ = cache.Get(ctx, "a")
	require.NoError(t, cache.Set(ctx, "c", []byte("3"), time.Hour))

	assert.Equal(t, 2, cache.Len())
	a, _ := cache.Get(ctx, "a")
	b, _ := cache.Get(ctx, "b")
	c, _ := cache.Get(ctx, "c")
	assert.Equal(t, []byte("1"), a)
	assert.Nil(t, b)
	assert.Equal(t, []byte("3"), c)
}

func TestMemoryCache_BinaryAndEmptyValues(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestMemoryCache(10)

	binaryData := []byte{0x00, 0x01, 0xFF, 0xFE, 0x80}
	require.NoError(t, cache.Set(ctx, "binary", binaryData, time.Hour))
	require.NoError(t, cache.Set(ctx, "empty", []byte{}, time.Hour))

	value, err := cache.Get(ctx, "binary")
	require.NoError(t, err)
	assert.Equal(t, binaryData, value)

	value, err = cache.Get(ctx, "empty")
	require.NoError(t, err)
	assert.Equal(t, []byte{}, value)
}

func TestMultiLevelCache_PopulatesL1FromL2(t *testing.T) {
	ctx := context.Background()
	l2, _ := newTestMemoryCache(10)
	cache := NewMultiLevelCache(l2, 10, time.Minute)

	require.NoError(t, l2.Set(ctx, "key1", []byte("from-l2"), time.Hour))

	value, err := cache.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, []byte("from-l2"), value)

	// Served from L1 even after L2 loses the key
	require.NoError(t, l2.Delete(ctx, "key1"))
	value, err = cache.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, []byte("from-l2"), value)
}

func TestMultiLevelCache_SetAndDeleteBothLevels(t *testing.T) {
	ctx := context.Background()
	l2, _ := newTestMemoryCache(10)
	cache := NewMultiLevelCache(l2, 10, time.Minute)

	require.NoError(t, cache.Set(ctx, "key1", []byte("v"), time.Hour))
	value, _ := l2.Get(ctx, "key1")
	assert.Equal(t, []byte("v"), value)

	exists, err := cache.Exists(ctx, "key1")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, cache.Delete(ctx, "key1"))
	value, err = cache.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestMultiLevelCache_L2Failures(t *testing.T) {
	ctx := context.Background()
	cache := NewMultiLevelCache(failingCache{}, 10, time.Minute)

	_, err := cache.Get(ctx, "key1")
	var cacheErr *CacheError
	require.ErrorAs(t, err, &cacheErr)
	assert.Equal(t, "get", cacheErr.Operation)

	// A failed L2 write must not leave a value behind in L1
	assert.Error(t, cache.Set(ctx, "key1", []byte("v"), time.Hour))
	_, err = cache.Get(ctx, "key1")
	assert.Error(t, err)

	assert.Error(t, cache.Health(ctx))
}

func TestParseValkeyURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		addr     string
		username string
		password string
		db       int
		tls      bool
		wantErr  bool
	}{
		{name: "plain", url: "valkey://localhost:6379", addr: "localhost:6379"},
		{name: "redis scheme with password", url: "redis://:secret@cache:6379", addr: "cache:6379", password: "secret"},
		{name: "user and db", url: "valkey://app:pw@cache:6380/2", addr: "cache:6380", username: "app", password: "pw", db: 2},
		{name: "tls", url: "rediss://cache.example.com:6380", addr: "cache.example.com:6380", tls: true},
		{name: "bad scheme", url: "http://localhost:6379", wantErr: true},
		{name: "missing host", url: "valkey://", wantErr: true},
		{name: "bad db", url: "valkey://localhost:6379/abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opt, err := ParseValkeyURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{tt.addr}, opt.InitAddress)
			assert.Equal(t, tt.username, opt.Username)
			assert.Equal(t, tt.password, opt.Password)
			assert.Equal(t, tt.db, opt.SelectDB)
			assert.Equal(t, tt.tls, opt.TLSConfig != nil)
		})
	}
}

func TestCacheError_Error(t *testing.T) {
	err := &CacheError{
		Operation: "get",
		Key:       "test-key",
		Err:       assert.AnError,
	}

	expectedMessage := "cache get failed for key 'test-key': assert.AnError general error for testing"
	assert.Equal(t, expectedMessage, err.Error())
	assert.Equal(t, assert.AnError, err.Unwrap())
}

func BenchmarkMemoryCache_Set(b *testing.B) {
	ctx := context.Background()
	cache := NewMemoryCache(1000)
	data := []byte("benchmark test data")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := "key" + string(rune(i%2000))
		cache.Set(ctx, key, data, time.Hour)
	}
}

func BenchmarkMemoryCache_Get(b *testing.B) {
	ctx := context.Background()
	cache := NewMemoryCache(1000)
	data := []byte("benchmark test data")

	// Pre-populate cache
	for i := 0; i < 1000; i++ {
		cache.Set(ctx, "key"+string(rune(i)), data, time.Hour)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.Get(ctx, "key"+string(rune(i%1000)))
	}
}
