package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ReceiptCache keeps a short-lived record of successful sends so the API
// can answer "did this go out, and under what provider id" without a store
// round trip. Optional; a nil-safe no-op is used when Redis is absent.
type ReceiptCache interface {
	StoreReceipt(ctx context.Context, messageID uuid.UUID, providerMessageID string, sentAt time.Time) error
}
