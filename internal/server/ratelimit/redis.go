package ratelimit

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// windowCounter increments the counter for key, creating it with ttl.
type windowCounter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type redisCounter struct {
	rdb *redis.Client
}

func (c *redisCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := c.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// RedisLimiter counts requests in fixed windows shared by every server
// instance. When Redis is unreachable requests are let through and the
// failure is logged.
type RedisLimiter struct {
	config  *Config
	counter windowCounter
	client  *redis.Client
	prefix  string
	now     func() time.Time
}

// NewRedisLimiterFromURL connects to cfg.RedisURL.
func NewRedisLimiterFromURL(cfg *Config) (*RedisLimiter, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	return NewRedisLimiter(redis.NewClient(opts), cfg), nil
}

// NewRedisLimiter creates a limiter over an existing client.
func NewRedisLimiter(client *redis.Client, cfg *Config) *RedisLimiter {
	l := newRedisLimiter(&redisCounter{rdb: client}, cfg)
	l.client = client
	return l
}

func newRedisLimiter(counter windowCounter, cfg *Config) *RedisLimiter {
	if cfg == nil {
		cfg = defaultConfig()
	}
	prefix := strings.Trim(cfg.RedisPrefix, ":")
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisLimiter{config: cfg, counter: counter, prefix: prefix, now: time.Now}
}

// Allow implements Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, clientID, path, method string) (bool, Info) {
	d := precheck(l.config, clientID, path, method)
	if d.done {
		return d.allowed, Info{Allowed: d.allowed}
	}

	window := d.endpoint.Window
	if window <= 0 {
		window = time.Minute
	}
	now := l.now()
	start := now.Truncate(window)
	reset := start.Add(window)

	key := l.prefix + ":" + bucketKey(clientID, method, d.endpoint) + ":" + strconv.FormatInt(start.Unix(), 10)
	count, err := l.counter.Incr(ctx, key, window)
	if err != nil {
		log.Printf("[rate-limit] redis unavailable, allowing request: %v", err)
		return true, Info{Allowed: true}
	}

	limit := d.endpoint.Limit
	allowed := count <= int64(limit)
	info := Info{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: max(0, limit-int(count)),
		ResetTime: reset,
	}
	if !allowed {
		info.RetryAfter = reset.Sub(now)
	}
	return allowed, info
}

// Stop closes the Redis client when the limiter owns one.
func (l *RedisLimiter) Stop() {
	if l.client != nil {
		if err := l.client.Close(); err != nil {
			log.Printf("[rate-limit] failed to close redis client: %v", err)
		}
	}
}
