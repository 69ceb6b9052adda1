package port

import (
	"context"

	"github.com/rl1809/inventory-sync/internal/core/domain"
)

// MovementStore is the backend's source of truth for stock and movements.
type MovementStore interface {
	// RecordMovement applies a movement to stock and journals it atomically
	RecordMovement(ctx context.Context, m domain.Movement) (*domain.MovementRecord, error)

	// AdjustStock sets an absolute quantity with version check for optimistic locking
	AdjustStock(ctx context.Context, input domain.AdjustmentInput) (*domain.AdjustmentResult, error)

	GetStock(ctx context.Context, productID int64) (*domain.StockLevel, error)

	ListStock(ctx context.Context) ([]domain.StockLevel, error)

	// LowStock lists products at or below their minimum, or below threshold when it is positive
	LowStock(ctx context.Context, threshold int) ([]domain.StockLevel, error)

	ListMovements(ctx context.Context, filter domain.MovementFilter) ([]domain.MovementRecord, error)
}

type MovementPublisher interface {
	PublishMovementRecorded(ctx context.Context, record domain.MovementRecord) error
	PublishStockAdjusted(ctx context.Context, result domain.AdjustmentResult) error
}
