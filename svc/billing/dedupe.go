package billing

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/propfin/pkg/cache"
)

// Deduplicator remembers processed webhook event ids for a limited window.
type Deduplicator interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

// RedisDeduplicator keeps processed event ids as expiring Redis keys.
type RedisDeduplicator struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

// NewRedisDeduplicator creates a Redis-backed dedupe window.
func NewRedisDeduplicator(client redis.UniversalClient, ttl time.Duration) *RedisDeduplicator {
	return &RedisDeduplicator{client: client, ttl: ttl, prefix: "billing:webhook:"}
}

func (d *RedisDeduplicator) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := d.client.Exists(ctx, d.prefix+eventID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *RedisDeduplicator) MarkProcessed(ctx context.Context, eventID string) error {
	return d.client.SetNX(ctx, d.prefix+eventID, time.Now().UTC().Format(time.RFC3339), d.ttl).Err()
}

// MemoryDeduplicator is a bounded in-process window. Entries leave either
// by TTL or by LRU eviction once capacity is reached.
type MemoryDeduplicator struct {
	seen *cache.LRUCache[string, struct{}]
	ttl  time.Duration
}

// NewMemoryDeduplicator creates an in-memory dedupe window.
func NewMemoryDeduplicator(capacity int, ttl time.Duration, clock Clock) *MemoryDeduplicator {
	if clock == nil {
		clock = SystemClock
	}
	return &MemoryDeduplicator{
		seen: cache.NewLRUCache[string, struct{}](capacity).WithClock(clock.Now),
		ttl:  ttl,
	}
}

func (d *MemoryDeduplicator) Seen(_ context.Context, eventID string) (bool, error) {
	_, ok := d.seen.Get(eventID)
	return ok, nil
}

func (d *MemoryDeduplicator) MarkProcessed(_ context.Context, eventID string) error {
	d.seen.PutWithTTL(eventID, struct{}{}, d.ttl)
	return nil
}
