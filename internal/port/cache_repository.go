package port

import (
	"context"
	"time"

	"github.com/rl1809/inventory-sync/internal/core/domain"
)

// CacheRepository is a TTL key/value cache. Values are opaque bytes; callers
// own the encoding.
type CacheRepository interface {
	// Get returns the value if it has not expired. An expired entry is removed.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set overwrites any existing entry and restarts its expiry clock.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	// Clear removes every key containing pattern, or every key when pattern is empty.
	Clear(ctx context.Context, pattern string) error

	// ClearByProduct removes product-specific keys and every generic inventory key.
	ClearByProduct(ctx context.Context, productID int64) error
}

// PendingLedger tracks optimistic deltas awaiting backend confirmation.
type PendingLedger interface {
	Add(productID int64, delta int, correlationID string)
	Get(productID int64) []domain.PendingUpdate
	// Sum is the net delta still awaiting confirmation for productID.
	Sum(productID int64) int
	Clear(productID int64, correlationID string)
	ClearAll()
	Sweep(maxAge time.Duration) []domain.PendingUpdate
}

// StockApplier mutates locally cached product stock.
type StockApplier interface {
	ApplyLocalDelta(ctx context.Context, productID int64, delta int) error
	ClearProductCache(ctx context.Context, productID int64) error
}
