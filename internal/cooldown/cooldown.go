// Package cooldown tracks retailers that recently served a hard block.
// After a CAPTCHA hit the retailer is marked blocked for a TTL and
// later requests short-circuit with RATE_LIMIT before a session is
// opened. Backed by redis so multiple instances share the state; a nil
// store disables the feature.
package cooldown

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "order-scraper:cooldown:"

type Store struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewStore(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Store {
	return &Store{
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "cooldown"),
	}
}

// Blocked reports whether the retailer is in a cooldown window. Redis
// errors fail open: a broken store never rejects traffic.
func (s *Store) Blocked(ctx context.Context, retailerID string) bool {
	if s == nil || s.client == nil {
		return false
	}
	n, err := s.client.Exists(ctx, keyPrefix+retailerID).Result()
	if err != nil {
		s.logger.Warn("cooldown lookup failed", "retailer", retailerID, "error", err)
		return false
	}
	return n > 0
}

// Block starts a cooldown window for the retailer.
func (s *Store) Block(ctx context.Context, retailerID, reason string) {
	if s == nil || s.client == nil {
		return
	}
	err := s.client.Set(ctx, keyPrefix+retailerID, reason, s.ttl).Err()
	if err != nil {
		s.logger.Warn("failed to set cooldown", "retailer", retailerID, "error", err)
		return
	}
	s.logger.Info("retailer placed on cooldown",
		"retailer", retailerID, "reason", reason, "ttl", s.ttl)
}

// Remaining returns the time left in the cooldown window, zero when
// none is active.
func (s *Store) Remaining(ctx context.Context, retailerID string) time.Duration {
	if s == nil || s.client == nil {
		return 0
	}
	d, err := s.client.TTL(ctx, keyPrefix+retailerID).Result()
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// Ping verifies connectivity at startup.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
