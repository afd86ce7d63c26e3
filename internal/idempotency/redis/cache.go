package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bazarghor/checkout/internal/idempotency"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "checkout:idempotency:"

// Cache stores terminal idempotency records in Redis so multiple instances
// share one replay cache. The durable store remains the source of truth.
type Cache struct {
	client    *redis.Client
	keyPrefix string
	nowFunc   func() time.Time
}

// NewCache wraps an existing Redis client. An empty prefix falls back to the
// default.
func NewCache(client *redis.Client, keyPrefix string) *Cache {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &Cache{client: client, keyPrefix: keyPrefix, nowFunc: time.Now}
}

type cachedRecord struct {
	Key        string             `json:"key"`
	Status     idempotency.Status `json:"status"`
	StatusCode int                `json:"status_code"`
	Result     json.RawMessage    `json:"result"`
	ExpiresAt  time.Time          `json:"expires_at"`
	CreatedAt  time.Time          `json:"created_at"`
}

// Get returns the cached record, or nil on a miss.
func (c *Cache) Get(ctx context.Context, key string) (*idempotency.Record, error) {
	raw, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var cached cachedRecord
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, fmt.Errorf("decode cached record: %w", err)
	}

	return &idempotency.Record{
		Key:        cached.Key,
		Status:     cached.Status,
		StatusCode: cached.StatusCode,
		Result:     cached.Result,
		ExpiresAt:  cached.ExpiresAt,
		CreatedAt:  cached.CreatedAt,
	}, nil
}

// Set stores a terminal record with a TTL matching the record's expiry, so
// Redis drops it at the same moment the durable row goes dead.
func (c *Cache) Set(ctx context.Context, key string, record idempotency.Record) error {
	if !record.Terminal() {
		return nil
	}

	ttl := record.ExpiresAt.Sub(c.nowFunc())
	if ttl <= 0 {
		return nil
	}

	raw, err := json.Marshal(cachedRecord{
		Key:        record.Key,
		Status:     record.Status,
		StatusCode: record.StatusCode,
		Result:     record.Result,
		ExpiresAt:  record.ExpiresAt,
		CreatedAt:  record.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode cached record: %w", err)
	}

	if err := c.client.Set(ctx, c.keyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete evicts a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
