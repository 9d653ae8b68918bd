// Package dedup drops duplicate deliveries of the same interaction. The
// platform delivers at-least-once, so the same click can arrive twice; the
// first delivery claims the interaction ID in redis and later ones are
// rejected before they reach the workflow engine.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper tracks seen interaction IDs in redis
type Deduper struct {
	client *redis.Client
	ttl    time.Duration
}

// Config holds redis connection configuration
type Config struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// New creates a new deduper and verifies redis connectivity
func New(ctx context.Context, cfg Config) (*Deduper, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &Deduper{client: client, ttl: ttl}, nil
}

// FirstDelivery claims an interaction ID. It returns true for the first
// delivery and false for any repeat within the TTL window.
func (d *Deduper) FirstDelivery(ctx context.Context, interactionID string) (bool, error) {
	key := fmt.Sprintf("interaction:%s", interactionID)

	ok, err := d.client.SetNX(ctx, key, "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim interaction: %w", err)
	}

	return ok, nil
}

// Close closes the redis connection
func (d *Deduper) Close() error {
	return d.client.Close()
}
