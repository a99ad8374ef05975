package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestRedisCache_StoreReceipt_Success(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewRedisCache(rdb, 10*time.Second)

	ctx := context.Background()
	messageID := uuid.New()
	sentAt := time.Date(2026, 2, 2, 18, 0, 0, 0, time.UTC)

	if err := cache.StoreReceipt(ctx, messageID, "prov-123", sentAt); err != nil {
		t.Fatalf("StoreReceipt() error: %v", err)
	}

	key := "receipt:" + messageID.String()
	if !mr.Exists(key) {
		t.Fatalf("expected key %q to exist", key)
	}
	if ttl := mr.TTL(key); ttl <= 0 {
		t.Fatalf("expected TTL to be set, got %v", ttl)
	}

	raw, err := mr.Get(key)
	if err != nil {
		t.Fatalf("failed to get key %q: %v", key, err)
	}

	var got receiptValue
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("failed to unmarshal value: %v", err)
	}
	if got.ProviderMessageID != "prov-123" {
		t.Fatalf("expected ProviderMessageID %q, got %q", "prov-123", got.ProviderMessageID)
	}
	if !got.SentAt.Equal(sentAt) {
		t.Fatalf("expected SentAt %v, got %v", sentAt, got.SentAt)
	}
}

func TestRedisCache_StoreReceipt_ContextCanceled(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewRedisCache(rdb, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := cache.StoreReceipt(ctx, uuid.New(), "prov-1", time.Now()); err == nil {
		t.Fatalf("expected error for canceled context")
	}
}
