// Package ratelimit provides per-client request limiting backed by
// in-process token buckets or a Redis fixed window.
package ratelimit

import (
	"context"
	"time"
)

// DefaultRedisPrefix namespaces window counters in Redis.
const DefaultRedisPrefix = "applyai:ratelimit"

// Info contains information about rate limit status.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Limiter decides whether a client's request may proceed.
type Limiter interface {
	Allow(ctx context.Context, clientID, path, method string) (bool, Info)
	Stop()
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	RedisURL        string
	RedisPrefix     string
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

func defaultConfig() *Config {
	return &Config{
		Enabled:         true,
		DefaultLimit:    1000,
		DefaultWindow:   time.Minute,
		CleanupInterval: 5 * time.Minute,
		RedisPrefix:     DefaultRedisPrefix,
		Whitelist:       make(map[string]bool),
		Blacklist:       make(map[string]bool),
	}
}

// New builds the backend selected by cfg: Redis when RedisURL is set,
// in-memory buckets otherwise.
func New(cfg *Config) (Limiter, error) {
	if cfg == nil {
		cfg = defaultConfig()
	}
	if cfg.Enabled && cfg.RedisURL != "" {
		return NewRedisLimiterFromURL(cfg)
	}
	return NewMemoryLimiter(cfg), nil
}

// decision is the pre-check shared by every backend.
type decision struct {
	done     bool
	allowed  bool
	endpoint *EndpointConfig
}

// precheck applies the enabled flag, the allow and deny lists, and endpoint
// matching. When done is false the backend must count the request against
// endpoint.
func precheck(cfg *Config, clientID, path, method string) decision {
	if !cfg.Enabled || cfg.Whitelist[clientID] {
		return decision{done: true, allowed: true}
	}
	if cfg.Blacklist[clientID] {
		return decision{done: true, allowed: false}
	}

	endpoint := MatchEndpoint(path, method, cfg.EndpointConfigs)
	if endpoint == nil {
		endpoint = &EndpointConfig{
			Limit:  cfg.DefaultLimit,
			Window: cfg.DefaultWindow,
			Burst:  cfg.DefaultLimit,
		}
	}
	if endpoint.Limit <= 0 {
		return decision{done: true, allowed: true}
	}
	return decision{endpoint: endpoint}
}

// bucketKey identifies one client's budget for one configured endpoint. Prefix
// routes share a budget across the ids they match, and every route on the
// default limit shares one budget per client and method.
func bucketKey(clientID, method string, endpoint *EndpointConfig) string {
	path := endpoint.Path
	if path == "" {
		path = "*"
	}
	return clientID + ":" + method + ":" + path
}
