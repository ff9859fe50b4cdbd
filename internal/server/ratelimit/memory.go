package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleTTL is how long an unused bucket survives cleanup.
const idleTTL = time.Hour

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps one token bucket per client and endpoint in process.
// Limits are not shared between server instances.
type MemoryLimiter struct {
	config *Config

	mu      sync.Mutex
	buckets map[string]*bucket

	cleanupTicker *time.Ticker
	cleanupStop   chan struct{}
	stopOnce      sync.Once
}

// NewMemoryLimiter creates an in-process limiter and starts its cleanup loop.
func NewMemoryLimiter(config *Config) *MemoryLimiter {
	if config == nil {
		config = defaultConfig()
	}

	l := &MemoryLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
	}

	if config.Enabled && config.CleanupInterval > 0 {
		l.cleanupTicker = time.NewTicker(config.CleanupInterval)
		l.cleanupStop = make(chan struct{})
		go l.cleanup()
	}
	return l
}

// Allow implements Limiter.
func (l *MemoryLimiter) Allow(_ context.Context, clientID, path, method string) (bool, Info) {
	d := precheck(l.config, clientID, path, method)
	if d.done {
		return d.allowed, Info{Allowed: d.allowed}
	}

	now := time.Now()
	b := l.getBucket(bucketKey(clientID, method, d.endpoint), d.endpoint, now)

	allowed := b.lim.AllowN(now, 1)
	tokens := b.lim.TokensAt(now)

	info := Info{
		Allowed:   allowed,
		Limit:     d.endpoint.Limit,
		Remaining: max(0, int(tokens)),
		ResetTime: now.Add(untilTokens(b.lim, tokens, float64(b.lim.Burst()))),
	}
	if !allowed {
		info.RetryAfter = untilTokens(b.lim, tokens, 1)
	}
	return allowed, info
}

// untilTokens is how long the bucket needs to refill from have to want tokens.
func untilTokens(lim *rate.Limiter, have, want float64) time.Duration {
	if have >= want || lim.Limit() <= 0 {
		return 0
	}
	return time.Duration((want - have) / float64(lim.Limit()) * float64(time.Second))
}

func (l *MemoryLimiter) getBucket(key string, endpoint *EndpointConfig, now time.Time) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[key]; ok {
		b.lastSeen = now
		return b
	}

	burst := endpoint.Burst
	if burst <= 0 {
		burst = endpoint.Limit
	}
	every := rate.Limit(float64(endpoint.Limit) / endpoint.Window.Seconds())

	b := &bucket{lim: rate.NewLimiter(every, burst), lastSeen: now}
	l.buckets[key] = b
	return b
}

func (l *MemoryLimiter) cleanup() {
	for {
		select {
		case <-l.cleanupTicker.C:
			l.cleanupBuckets(time.Now().Add(-idleTTL))
		case <-l.cleanupStop:
			return
		}
	}
}

// cleanupBuckets drops buckets not touched since cutoff.
func (l *MemoryLimiter) cleanupBuckets(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

func (l *MemoryLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (l *MemoryLimiter) Stop() {
	l.stopOnce.Do(func() {
		if l.cleanupTicker != nil {
			l.cleanupTicker.Stop()
		}
		if l.cleanupStop != nil {
			close(l.cleanupStop)
		}
	})
}
