package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(limit int) *Config {
	return &Config{
		Enabled:       true,
		DefaultLimit:  limit,
		DefaultWindow: time.Minute,
		Whitelist:     map[string]bool{},
		Blacklist:     map[string]bool{},
	}
}

func TestMemoryLimiter_AllowUpToLimit(t *testing.T) {
	limiter := NewMemoryLimiter(testConfig(10))
	defer limiter.Stop()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		allowed, info := limiter.Allow(ctx, "127.0.0.1", "/applications", "GET")
		require.True(t, allowed, "request %d", i+1)
		assert.Equal(t, 10, info.Limit)
		assert.Equal(t, 9-i, info.Remaining)
	}

	allowed, info := limiter.Allow(ctx, "127.0.0.1", "/applications", "GET")
	assert.False(t, allowed)
	assert.Equal(t, 0, info.Remaining)
	assert.Greater(t, info.RetryAfter, time.Duration(0))
	assert.True(t, info.ResetTime.After(time.Now()))

	// Another client has its own bucket.
	allowed, _ = limiter.Allow(ctx, "10.0.0.2", "/applications", "GET")
	assert.True(t, allowed)
}

func TestMemoryLimiter_Refill(t *testing.T) {
	cfg := testConfig(0)
	cfg.EndpointConfigs = []EndpointConfig{{Path: "/fast", Method: "GET", Limit: 20, Window: time.Second, Burst: 1}}
	limiter := NewMemoryLimiter(cfg)
	defer limiter.Stop()
	ctx := context.Background()

	allowed, _ := limiter.Allow(ctx, "c", "/fast", "GET")
	require.True(t, allowed)
	allowed, _ = limiter.Allow(ctx, "c", "/fast", "GET")
	require.False(t, allowed)

	time.Sleep(100 * time.Millisecond)
	allowed, _ = limiter.Allow(ctx, "c", "/fast", "GET")
	assert.True(t, allowed, "one token should refill after 50ms")
}

func TestMemoryLimiter_Lists(t *testing.T) {
	cfg := testConfig(1)
	cfg.Whitelist["trusted"] = true
	cfg.Blacklist["banned"] = true
	limiter := NewMemoryLimiter(cfg)
	defer limiter.Stop()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		allowed, _ := limiter.Allow(ctx, "trusted", "/applications", "GET")
		assert.True(t, allowed)
	}
	allowed, _ := limiter.Allow(ctx, "banned", "/applications", "GET")
	assert.False(t, allowed)
	assert.Equal(t, 0, limiter.size(), "listed clients never get buckets")
}

func TestMemoryLimiter_Disabled(t *testing.T) {
	limiter := NewMemoryLimiter(&Config{Enabled: false})
	defer limiter.Stop()

	for i := 0; i < 100; i++ {
		allowed, _ := limiter.Allow(context.Background(), "c", "/applications", "POST")
		require.True(t, allowed)
	}
}

func TestMemoryLimiter_EndpointSpecific(t *testing.T) {
	cfg := testConfig(100)
	cfg.EndpointConfigs = DefaultEndpointConfigs()
	limiter := NewMemoryLimiter(cfg)
	defer limiter.Stop()
	ctx := context.Background()

	// POST /applications has burst 5.
	for i := 0; i < 5; i++ {
		allowed, _ := limiter.Allow(ctx, "c", "/applications", "POST")
		require.True(t, allowed)
	}
	allowed, info := limiter.Allow(ctx, "c", "/applications", "POST")
	assert.False(t, allowed)
	assert.Equal(t, 30, info.Limit)

	// Reads on the same path are on the default budget.
	allowed, info = limiter.Allow(ctx, "c", "/applications", "GET")
	assert.True(t, allowed)
	assert.Equal(t, 100, info.Limit)
}

func TestMemoryLimiter_PrefixRoutesShareBudget(t *testing.T) {
	cfg := testConfig(100)
	cfg.EndpointConfigs = []EndpointConfig{{Path: "/applications/", Method: "PATCH", Limit: 2, Window: time.Hour, Burst: 2}}
	limiter := NewMemoryLimiter(cfg)
	defer limiter.Stop()
	ctx := context.Background()

	a, _ := limiter.Allow(ctx, "c", "/applications/1", "PATCH")
	b, _ := limiter.Allow(ctx, "c", "/applications/2", "PATCH")
	c, _ := limiter.Allow(ctx, "c", "/applications/3", "PATCH")
	assert.True(t, a)
	assert.True(t, b)
	assert.False(t, c)
}

func TestMemoryLimiter_DefaultBudgetIsPerClient(t *testing.T) {
	limiter := NewMemoryLimiter(testConfig(2))
	defer limiter.Stop()
	ctx := context.Background()

	a, _ := limiter.Allow(ctx, "c", "/applications/5b0f6c1e-0000-4000-8000-000000000001", "GET")
	b, _ := limiter.Allow(ctx, "c", "/applications/5b0f6c1e-0000-4000-8000-000000000002", "GET")
	c, _ := limiter.Allow(ctx, "c", "/applications/5b0f6c1e-0000-4000-8000-000000000003", "GET")
	assert.True(t, a)
	assert.True(t, b)
	assert.False(t, c, "distinct record ids share the client's default budget")
	assert.Equal(t, 1, limiter.size())

	// Methods are still counted separately.
	allowed, _ := limiter.Allow(ctx, "c", "/profile", "GET")
	assert.False(t, allowed)
	allowed, _ = limiter.Allow(ctx, "c", "/applications/x/documents/cv", "PUT")
	assert.True(t, allowed)
}

func TestRedisLimiter_DefaultBudgetIsPerClient(t *testing.T) {
	counter := newFakeCounter()
	limiter := newRedisLimiter(counter, testConfig(10))
	ctx := context.Background()

	limiter.Allow(ctx, "c", "/applications/1", "GET")
	limiter.Allow(ctx, "c", "/applications/2", "GET")
	assert.Len(t, counter.counts, 1)
}

func TestMemoryLimiter_ExemptRoutes(t *testing.T) {
	limiter := NewMemoryLimiter(testConfig(1))
	defer limiter.Stop()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		allowed, _ := limiter.Allow(ctx, "c", "/health", "GET")
		require.True(t, allowed)
		allowed, _ = limiter.Allow(ctx, "engine", "/webhooks/generation", "POST")
		require.True(t, allowed)
	}
}

func TestMemoryLimiter_Concurrent(t *testing.T) {
	limiter := NewMemoryLimiter(testConfig(50))
	defer limiter.Stop()

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := limiter.Allow(context.Background(), "c", "/applications", "GET"); ok {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	// Refill during the test may grant a token or two beyond the burst.
	assert.GreaterOrEqual(t, allowed.Load(), int64(50))
	assert.LessOrEqual(t, allowed.Load(), int64(52))
}

func TestMemoryLimiter_Cleanup(t *testing.T) {
	limiter := NewMemoryLimiter(testConfig(10))
	defer limiter.Stop()

	for i := 0; i < 3; i++ {
		limiter.Allow(context.Background(), fmt.Sprintf("client-%d", i), "/applications", "GET")
	}
	require.Equal(t, 3, limiter.size())

	limiter.cleanupBuckets(time.Now().Add(-time.Minute))
	assert.Equal(t, 3, limiter.size(), "recent buckets survive")

	limiter.cleanupBuckets(time.Now().Add(time.Minute))
	assert.Equal(t, 0, limiter.size())
}

func TestMemoryLimiter_StopTwice(t *testing.T) {
	limiter := NewMemoryLimiter(&Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Minute, CleanupInterval: time.Millisecond})
	limiter.Stop()
	assert.NotPanics(t, limiter.Stop)
}

func TestNew_SelectsBackend(t *testing.T) {
	memory, err := New(nil)
	require.NoError(t, err)
	defer memory.Stop()
	assert.IsType(t, &MemoryLimiter{}, memory)

	cfg := testConfig(10)
	cfg.RedisURL = "redis://localhost:6379/0"
	shared, err := New(cfg)
	require.NoError(t, err)
	defer shared.Stop()
	assert.IsType(t, &RedisLimiter{}, shared)

	cfg.RedisURL = "://bad"
	_, err = New(cfg)
	assert.Error(t, err)
}

type fakeCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	ttls   map[string]time.Duration
	err    error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: map[string]int64{}, ttls: map[string]time.Duration{}}
}

func (f *fakeCounter) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.counts[key]++
	f.ttls[key] = ttl
	return f.counts[key], nil
}

func TestRedisLimiter_FixedWindow(t *testing.T) {
	counter := newFakeCounter()
	limiter := newRedisLimiter(counter, testConfig(3))
	now := time.Date(2026, 3, 10, 12, 0, 15, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, info := limiter.Allow(ctx, "c", "/applications", "GET")
		require.True(t, allowed)
		assert.Equal(t, 2-i, info.Remaining)
	}

	allowed, info := limiter.Allow(ctx, "c", "/applications", "GET")
	assert.False(t, allowed)
	assert.Equal(t, time.Date(2026, 3, 10, 12, 1, 0, 0, time.UTC), info.ResetTime)
	assert.Equal(t, 45*time.Second, info.RetryAfter)

	for key, ttl := range counter.ttls {
		assert.Contains(t, key, DefaultRedisPrefix+":c:GET:*:")
		assert.Equal(t, time.Minute, ttl)
	}

	// The next window starts a fresh counter.
	now = now.Add(time.Minute)
	allowed, _ = limiter.Allow(ctx, "c", "/applications", "GET")
	assert.True(t, allowed)
	assert.Len(t, counter.counts, 2)
}

func TestRedisLimiter_FailsOpen(t *testing.T) {
	counter := newFakeCounter()
	counter.err = errors.New("connection refused")
	limiter := newRedisLimiter(counter, testConfig(1))

	for i := 0; i < 3; i++ {
		allowed, _ := limiter.Allow(context.Background(), "c", "/applications", "GET")
		assert.True(t, allowed)
	}
}

func TestRedisLimiter_Lists(t *testing.T) {
	counter := newFakeCounter()
	cfg := testConfig(1)
	cfg.Blacklist["banned"] = true
	limiter := newRedisLimiter(counter, cfg)

	allowed, _ := limiter.Allow(context.Background(), "banned", "/applications", "GET")
	assert.False(t, allowed)
	allowed, _ = limiter.Allow(context.Background(), "c", "/health", "GET")
	assert.True(t, allowed)
	assert.Empty(t, counter.counts)
}

func TestRedisLimiter_Integration(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)

	cfg := testConfig(2)
	cfg.RedisPrefix = fmt.Sprintf("applyai:test:%d", time.Now().UnixNano())
	limiter := NewRedisLimiter(redis.NewClient(opts), cfg)
	defer limiter.Stop()
	ctx := context.Background()

	a, _ := limiter.Allow(ctx, "it", "/applications", "GET")
	b, _ := limiter.Allow(ctx, "it", "/applications", "GET")
	c, _ := limiter.Allow(ctx, "it", "/applications", "GET")
	assert.True(t, a)
	assert.True(t, b)
	// A window boundary between calls can reset the count.
	if c {
		t.Log("window rolled over during test")
	}
}

func TestMatchEndpoint(t *testing.T) {
	configs := DefaultEndpointConfigs()

	match := MatchEndpoint("/applications", "POST", configs)
	require.NotNil(t, match)
	assert.Equal(t, 30, match.Limit)

	match = MatchEndpoint("/profile/onboarding/3", "PUT", configs)
	require.NotNil(t, match)
	assert.Equal(t, "/profile/", match.Path)

	assert.Nil(t, MatchEndpoint("/applications", "GET", configs))

	match = MatchEndpoint("/health", "GET", configs)
	require.NotNil(t, match)
	assert.Equal(t, 0, match.Limit)

	match = MatchEndpoint("/webhooks/documents-ready", "POST", configs)
	require.NotNil(t, match)
	assert.Equal(t, 0, match.Limit)
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("RATE_LIMIT_DEFAULT_LIMIT", "42")
	t.Setenv("RATE_LIMIT_DEFAULT_WINDOW", "30s")
	t.Setenv("RATE_LIMIT_WHITELIST", "1.1.1.1, 2.2.2.2")
	t.Setenv("RATE_LIMIT_BLACKLIST", "")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("RATE_LIMIT_REDIS_PREFIX", "")

	cfg := LoadConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 42, cfg.DefaultLimit)
	assert.Equal(t, 30*time.Second, cfg.DefaultWindow)
	assert.Equal(t, map[string]bool{"1.1.1.1": true, "2.2.2.2": true}, cfg.Whitelist)
	assert.Empty(t, cfg.Blacklist)
	assert.Equal(t, "redis://cache:6379/1", cfg.RedisURL)
	assert.Equal(t, DefaultRedisPrefix, cfg.RedisPrefix)
	assert.NotEmpty(t, cfg.EndpointConfigs)

	t.Setenv("RATE_LIMIT_ENABLED", "false")
	assert.False(t, LoadConfig().Enabled)
}
