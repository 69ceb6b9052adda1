package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

type MovementType string

const (
	MovementIn         MovementType = "in"
	MovementOut        MovementType = "out"
	MovementAdjustment MovementType = "adjustment"
)

func (t MovementType) Valid() bool {
	switch t {
	case MovementIn, MovementOut, MovementAdjustment:
		return true
	}
	return false
}

const (
	MinReasonLength    = 3
	MaxLocationLength  = 100
	MaxReferenceLength = 50
	LargeQuantity      = 1_000_000
)

// Movement is a proposed stock change. It is immutable once submitted.
type Movement struct {
	ProductID    int64        `json:"product_id"`
	Quantity     int          `json:"quantity"`
	MovementType MovementType `json:"movement_type"`
	Reason       string       `json:"reason"`
	Location     string       `json:"location,omitempty"`
	Reference    string       `json:"reference,omitempty"`
}

// Delta is the signed stock change the movement implies for optimistic
// purposes. Adjustments set an absolute level, so they contribute nothing.
func (m Movement) Delta() int {
	switch m.MovementType {
	case MovementIn:
		return m.Quantity
	case MovementOut:
		return -m.Quantity
	}
	return 0
}

// MovementRecord is a movement accepted by the backend.
type MovementRecord struct {
	ID           int64        `json:"id"`
	ProductID    int64        `json:"product_id"`
	Quantity     int          `json:"quantity"`
	MovementType MovementType `json:"movement_type"`
	Reason       string       `json:"reason"`
	Location     string       `json:"location,omitempty"`
	Reference    string       `json:"reference,omitempty"`
	StockBefore  int          `json:"stock_before"`
	StockAfter   int          `json:"stock_after"`
	CreatedAt    time.Time    `json:"created_at"`
}

type ValidationResult struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (r ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// ValidationError carries the field complaints of a rejected movement.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Errors, ", ")
}

// ValidateMovement checks the structure of a movement before any side effect.
// Warnings never make a movement invalid.
func ValidateMovement(m Movement) ValidationResult {
	res := ValidationResult{Errors: []string{}, Warnings: []string{}}

	if m.ProductID <= 0 {
		res.Errors = append(res.Errors, "product_id is required and must be a positive integer")
	}

	if m.Quantity <= 0 {
		res.Errors = append(res.Errors, "quantity is required and must be greater than 0")
	} else if m.Quantity > LargeQuantity {
		res.Warnings = append(res.Warnings, fmt.Sprintf("quantity %d is unusually large", m.Quantity))
	}

	if m.MovementType == "" {
		res.Errors = append(res.Errors, "movement_type is required")
	} else if !m.MovementType.Valid() {
		res.Errors = append(res.Errors, fmt.Sprintf("movement_type %q must be one of in, out, adjustment", m.MovementType))
	}

	if utf8.RuneCountInString(strings.TrimSpace(m.Reason)) < MinReasonLength {
		res.Errors = append(res.Errors, fmt.Sprintf("reason is required and must be at least %d characters", MinReasonLength))
	}

	if utf8.RuneCountInString(m.Location) > MaxLocationLength {
		res.Warnings = append(res.Warnings, fmt.Sprintf("location exceeds %d characters", MaxLocationLength))
	}
	if utf8.RuneCountInString(m.Reference) > MaxReferenceLength {
		res.Warnings = append(res.Warnings, fmt.Sprintf("reference exceeds %d characters", MaxReferenceLength))
	}

	return res
}

// ValidateAdjustment checks an absolute stock adjustment.
func ValidateAdjustment(a AdjustmentInput) error {
	var errs []string
	if a.ProductID <= 0 {
		errs = append(errs, "product_id is required and must be a positive integer")
	}
	if a.NewQuantity < 0 {
		errs = append(errs, "new_quantity must be 0 or greater")
	}
	if utf8.RuneCountInString(strings.TrimSpace(a.Reason)) < MinReasonLength {
		errs = append(errs, fmt.Sprintf("reason is required and must be at least %d characters", MinReasonLength))
	}
	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}
