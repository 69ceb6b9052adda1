package storage

import (
	"sync"
	"time"

	"github.com/rl1809/inventory-sync/internal/core/domain"
)

// MemoryLedger holds in-flight optimistic deltas per product. Entries live
// until cleared by correlation id or swept.
type MemoryLedger struct {
	mu      sync.Mutex
	pending map[int64][]domain.PendingUpdate
	now     func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		pending: make(map[int64][]domain.PendingUpdate),
		now:     time.Now,
	}
}

func (l *MemoryLedger) WithClock(now func() time.Time) *MemoryLedger {
	l.now = now
	return l
}

func (l *MemoryLedger) Add(productID int64, delta int, correlationID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pending[productID] = append(l.pending[productID], domain.PendingUpdate{
		ProductID:     productID,
		QuantityDelta: delta,
		CorrelationID: correlationID,
		CreatedAt:     l.now(),
	})
}

func (l *MemoryLedger) Get(productID int64) []domain.PendingUpdate {
	l.mu.Lock()
	defer l.mu.Unlock()

	updates := l.pending[productID]
	out := make([]domain.PendingUpdate, len(updates))
	copy(out, updates)
	return out
}

// Sum returns the total pending delta for a product.
func (l *MemoryLedger) Sum(productID int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := 0
	for _, u := range l.pending[productID] {
		total += u.QuantityDelta
	}
	return total
}

func (l *MemoryLedger) Clear(productID int64, correlationID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	updates, ok := l.pending[productID]
	if !ok {
		return
	}

	kept := updates[:0]
	for _, u := range updates {
		if u.CorrelationID != correlationID {
			kept = append(kept, u)
		}
	}
	if len(kept) == 0 {
		delete(l.pending, productID)
		return
	}
	l.pending[productID] = kept
}

func (l *MemoryLedger) ClearAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = make(map[int64][]domain.PendingUpdate)
}

// Sweep removes and returns entries older than maxAge.
func (l *MemoryLedger) Sweep(maxAge time.Duration) []domain.PendingUpdate {
	cutoff := l.now().Add(-maxAge)

	l.mu.Lock()
	defer l.mu.Unlock()

	var orphaned []domain.PendingUpdate
	for productID, updates := range l.pending {
		kept := updates[:0]
		for _, u := range updates {
			if u.CreatedAt.Before(cutoff) {
				orphaned = append(orphaned, u)
				continue
			}
			kept = append(kept, u)
		}
		if len(kept) == 0 {
			delete(l.pending, productID)
		} else {
			l.pending[productID] = kept
		}
	}
	return orphaned
}

// products returns the ids that currently have pending updates.
func (l *MemoryLedger) products() []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := make([]int64, 0, len(l.pending))
	for id := range l.pending {
		ids = append(ids, id)
	}
	return ids
}
