package domain

import "time"

// PendingUpdate is a stock change applied locally but not yet confirmed by
// the backend.
type PendingUpdate struct {
	ProductID     int64     `json:"product_id"`
	QuantityDelta int       `json:"quantity_delta"`
	CorrelationID string    `json:"correlation_id"`
	CreatedAt     time.Time `json:"created_at"`
}
