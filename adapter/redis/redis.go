// Package redis publishes run-completed events as JSON on a Redis pub/sub
// channel, so dashboards and bots can follow CI test runs live. The same
// event is stored under a per-target key, so the latest coverage of a
// script can be read without having been subscribed.
//
// Retries with exponential backoff on connection errors.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pithecene-io/covered/adapter"
)

// DefaultChannel is the default pub/sub channel name.
const DefaultChannel = "covered:run_completed"

// DefaultTimeout is the default per-publish timeout.
const DefaultTimeout = 5 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// DefaultLatestPrefix prefixes the per-target latest-run key.
const DefaultLatestPrefix = "covered:latest:"

// DefaultLatestTTL is how long the latest-run key is kept.
const DefaultLatestTTL = 7 * 24 * time.Hour

// Config configures the Redis pub/sub adapter.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Channel is the pub/sub channel name (default: covered:run_completed).
	Channel string
	// Timeout is the per-publish timeout (default 5s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure (default 3).
	Retries int
	// LatestPrefix prefixes the key holding the latest event per target
	// script (default covered:latest:).
	LatestPrefix string
	// LatestTTL is the expiry of that key (default 7 days).
	LatestTTL time.Duration
}

// Adapter publishes run completion events via Redis PUBLISH.
type Adapter struct {
	config Config
	client *goredis.Client
}

// New creates a Redis pub/sub adapter from the given config.
// Returns an error if the URL is empty or invalid.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}

	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.LatestPrefix == "" {
		cfg.LatestPrefix = DefaultLatestPrefix
	}
	if cfg.LatestTTL <= 0 {
		cfg.LatestTTL = DefaultLatestTTL
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}

	return &Adapter{
		config: cfg,
		client: goredis.NewClient(opts),
	}, nil
}

// LatestKey returns the key holding the latest event for targetScript.
func (a *Adapter) LatestKey(targetScript string) string {
	return a.config.LatestPrefix + targetScript
}

// Publish sends the event as a JSON PUBLISH to the configured channel and
// stores it under the target's latest key, in one MULTI/EXEC.
// Retries with exponential backoff on failures.
func (a *Adapter) Publish(ctx context.Context, event *adapter.RunCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}

	var lastErr error
	// attempts = 1 initial + retries
	attempts := 1 + a.config.Retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("redis: context canceled: %w", err)
		}

		// Exponential backoff before retries (not before first attempt)
		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return fmt.Errorf("redis: context canceled during backoff: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		publishCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
		_, lastErr = a.client.TxPipelined(publishCtx, func(pipe goredis.Pipeliner) error {
			pipe.Publish(publishCtx, a.config.Channel, body)
			pipe.Set(publishCtx, a.LatestKey(event.TargetScript), body, a.config.LatestTTL)
			return nil
		})
		cancel()

		if lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("redis: failed after %d attempts: %w", attempts, lastErr)
}

// Close releases adapter resources.
func (a *Adapter) Close() error {
	return a.client.Close()
}

// Verify Adapter implements the adapter interface.
var _ adapter.Adapter = (*Adapter)(nil)
