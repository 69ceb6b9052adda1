package domain

import (
	"encoding/json"
	"time"
)

type StockLevel struct {
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	MinStock  int       `json:"min_stock"`
	Version   int       `json:"version"` // optimistic locking
	UpdatedAt time.Time `json:"updated_at"`
}

// AdjustmentInput sets an absolute stock level. It is not a delta.
type AdjustmentInput struct {
	ProductID   int64  `json:"product_id"`
	NewQuantity int    `json:"new_quantity"`
	Reason      string `json:"reason"`
}

type AdjustmentResult struct {
	ProductID        int64     `json:"product_id"`
	PreviousQuantity int       `json:"previous_quantity"`
	NewQuantity      int       `json:"new_quantity"`
	Difference       int       `json:"difference"`
	Reason           string    `json:"reason"`
	AdjustedAt       time.Time `json:"adjusted_at"`
}

type InventoryReport struct {
	TotalProducts   int          `json:"total_products"`
	TotalUnits      int          `json:"total_units"`
	LowStockCount   int          `json:"low_stock_count"`
	OutOfStockCount int          `json:"out_of_stock_count"`
	Items           []StockLevel `json:"items,omitempty"`
	GeneratedAt     time.Time    `json:"generated_at"`
}

// BuildReport aggregates stock levels into a report. A product is low on stock
// when its quantity is at or below its MinStock and above zero.
func BuildReport(levels []StockLevel, includeItems bool, now time.Time) InventoryReport {
	report := InventoryReport{GeneratedAt: now}
	for _, l := range levels {
		report.TotalProducts++
		report.TotalUnits += l.Quantity
		switch {
		case l.Quantity <= 0:
			report.OutOfStockCount++
		case l.Quantity <= l.MinStock:
			report.LowStockCount++
		}
	}
	if includeItems {
		report.Items = levels
	}
	return report
}

// Response is the envelope every backend endpoint answers with.
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}
