// Package dispatch notifies the external generation engine that an application is ready to process.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout bounds a single outbound webhook call.
const DefaultTimeout = 10 * time.Second

// Dispatcher hands an application to the generation engine without waiting for the outcome.
type Dispatcher interface {
	Dispatch(applicationID, userID uuid.UUID)
}

// Payload is the body sent to the generation engine.
type Payload struct {
	ApplicationID uuid.UUID `json:"application_id"`
	UserID        uuid.UUID `json:"user_id"`
}

// Config configures the webhook dispatcher.
type Config struct {
	URL     string
	Secret  string
	Timeout time.Duration
}

// New returns a webhook dispatcher, or a no-op dispatcher when no URL is configured.
func New(cfg Config) (Dispatcher, error) {
	if cfg.URL == "" {
		log.Printf("[dispatch] No generation webhook configured; applications will stay pending")
		return Noop{}, nil
	}
	return NewWebhook(cfg)
}

// Noop drops every dispatch. Applications created with it stay pending.
type Noop struct{}

// Dispatch does nothing.
func (Noop) Dispatch(_, _ uuid.UUID) {}

// Webhook posts each dispatch to the engine on its own goroutine.
type Webhook struct {
	url     string
	secret  string
	timeout time.Duration
	client  *http.Client
	wg      sync.WaitGroup
}

// NewWebhook validates cfg and creates a webhook dispatcher.
func NewWebhook(cfg Config) (*Webhook, error) {
	parsed, err := url.Parse(cfg.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid generation webhook URL: %q", cfg.URL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Webhook{
		url:     cfg.URL,
		secret:  cfg.Secret,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Dispatch starts the outbound call and returns immediately.
// Failures are logged and never reach the caller.
func (w *Webhook) Dispatch(applicationID, userID uuid.UUID) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		// Detached from the triggering request so a client disconnect cannot cancel it.
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()

		if err := w.Send(ctx, Payload{ApplicationID: applicationID, UserID: userID}); err != nil {
			log.Printf("[dispatch] Generation webhook failed for application %s: %v", applicationID, err)
			return
		}
		log.Printf("[dispatch] Generation webhook accepted application %s", applicationID)
	}()
}

// Send performs one synchronous webhook call.
func (w *Webhook) Send(ctx context.Context, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.secret != "" {
		req.Header.Set("Authorization", "Bearer "+w.secret)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Wait blocks until all in-flight dispatches have finished.
func (w *Webhook) Wait() {
	w.wg.Wait()
}
