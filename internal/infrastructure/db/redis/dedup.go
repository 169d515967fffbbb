package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
	"github.com/homeservice/marketplace-agent/internal/core/ports"
)

const defaultDedupTTL = time.Hour

// DedupChecker remembers accepted push notification ids so a redelivered
// frame is not shown twice.
// Key format: marketplace:dedup:notification:<id>
type DedupChecker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDedupChecker creates a DedupChecker wrapping the given Redis client.
// A non-positive ttl falls back to one hour.
func NewDedupChecker(client *redis.Client, ttl time.Duration) *DedupChecker {
	if ttl <= 0 {
		ttl = defaultDedupTTL
	}
	return &DedupChecker{client: client, ttl: ttl}
}

var _ ports.PushDeduplicator = (*DedupChecker)(nil)

// IsDuplicate reports whether this notification has already been accepted.
func (d *DedupChecker) IsDuplicate(ctx context.Context, id domain.ID) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("dedup check: %w", err)
	}
	return n > 0, nil
}

// Mark records that this notification has been accepted (expires after ttl).
func (d *DedupChecker) Mark(ctx context.Context, id domain.ID) error {
	return d.client.Set(ctx, d.key(id), "1", d.ttl).Err()
}

func (d *DedupChecker) key(id domain.ID) string {
	return fmt.Sprintf("%sdedup:notification:%s", keyPrefix, id)
}
