// Package config loads ApplyAI configuration from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultWebhookTimeout = 10 * time.Second
	DefaultFreeTierLimit  = 5
	DefaultAppURL         = "https://applyai.app"
)

// Config holds the service settings that are not tied to auth.
type Config struct {
	DatabaseURL string

	// Generation engine. WebhookURL may be empty, in which case applications
	// stay pending until an external actor reports on them.
	WebhookURL     string
	WebhookSecret  string
	WebhookTimeout time.Duration

	FreeTierLimit int
	AppURL        string
	RedisURL      string

	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		WebhookURL:         strings.TrimSpace(os.Getenv("GENERATION_WEBHOOK_URL")),
		WebhookSecret:      os.Getenv("GENERATION_WEBHOOK_SECRET"),
		AppURL:             strings.TrimSpace(os.Getenv("APP_URL")),
		RedisURL:           strings.TrimSpace(os.Getenv("REDIS_URL")),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}

	if v := os.Getenv("GENERATION_WEBHOOK_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("GENERATION_WEBHOOK_TIMEOUT must be a duration: %w", err)
		}
		cfg.WebhookTimeout = d
	}

	if v := os.Getenv("FREE_TIER_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("FREE_TIER_LIMIT must be an integer: %w", err)
		}
		cfg.FreeTierLimit = n
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}

	if c.WebhookTimeout == 0 {
		c.WebhookTimeout = DefaultWebhookTimeout
	}
	if c.WebhookTimeout < 0 {
		return fmt.Errorf("GENERATION_WEBHOOK_TIMEOUT must be positive")
	}

	if c.FreeTierLimit == 0 {
		c.FreeTierLimit = DefaultFreeTierLimit
	}
	if c.FreeTierLimit < 0 {
		return fmt.Errorf("FREE_TIER_LIMIT must be positive")
	}

	if c.WebhookURL != "" {
		if err := checkURL("GENERATION_WEBHOOK_URL", c.WebhookURL); err != nil {
			return err
		}
		if c.WebhookSecret == "" {
			return fmt.Errorf("GENERATION_WEBHOOK_SECRET is required when GENERATION_WEBHOOK_URL is set")
		}
	}

	if c.AppURL == "" {
		c.AppURL = DefaultAppURL
	}
	if err := checkURL("APP_URL", c.AppURL); err != nil {
		return err
	}
	c.AppURL = strings.TrimRight(c.AppURL, "/")

	return nil
}

// CallbacksEnabled reports whether the engine webhook endpoints can authenticate callers.
func (c *Config) CallbacksEnabled() bool {
	return c.WebhookSecret != ""
}

func checkURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", name, raw)
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
