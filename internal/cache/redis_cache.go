package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

type receiptValue struct {
	ProviderMessageID string    `json:"providerMessageId"`
	SentAt            time.Time `json:"sentAt"`
}

func (c *RedisCache) StoreReceipt(ctx context.Context, messageID uuid.UUID, providerMessageID string, sentAt time.Time) error {
	key := fmt.Sprintf("receipt:%s", messageID)
	val := receiptValue{
		ProviderMessageID: providerMessageID,
		SentAt:            sentAt.UTC(),
	}

	b, err := json.Marshal(val)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, key, b, c.ttl).Err()
}
