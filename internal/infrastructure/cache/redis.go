package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meetnote-labs/meetnote/pkg/config"
)

// Deduper is the fast-path duplicate check in front of the durable ledger.
// It is advisory only: a miss falls through to the ledger, which stays
// authoritative.
type Deduper interface {
	// MarkSeen records the message ID and reports whether it was already
	// present.
	MarkSeen(ctx context.Context, sourceMessageID string) (bool, error)
	Forget(ctx context.Context, sourceMessageID string) error
	Close() error
}

// RedisDeduper implements Deduper on Redis SETNX with a TTL
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper connects to Redis and verifies the connection
func NewRedisDeduper(cfg *config.Config) (*RedisDeduper, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Println("✅ Redis connected successfully")

	return &RedisDeduper{
		client: client,
		ttl:    cfg.Redis.DedupTTL,
	}, nil
}

func dedupKey(sourceMessageID string) string {
	return "dedup:msg:" + sourceMessageID
}

// MarkSeen sets the dedup key and reports a hit when it already existed
func (d *RedisDeduper) MarkSeen(ctx context.Context, sourceMessageID string) (bool, error) {
	created, err := d.client.SetNX(ctx, dedupKey(sourceMessageID), 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	return !created, nil
}

// Forget drops the dedup key so the ledger decides on the next delivery
func (d *RedisDeduper) Forget(ctx context.Context, sourceMessageID string) error {
	return d.client.Del(ctx, dedupKey(sourceMessageID)).Err()
}

// Close releases the underlying connection pool
func (d *RedisDeduper) Close() error {
	return d.client.Close()
}

// NoopDeduper always misses, forcing every message through the ledger.
// Used when Redis is not configured.
type NoopDeduper struct{}

func (NoopDeduper) MarkSeen(ctx context.Context, sourceMessageID string) (bool, error) {
	return false, nil
}

func (NoopDeduper) Forget(ctx context.Context, sourceMessageID string) error { return nil }

func (NoopDeduper) Close() error { return nil }
