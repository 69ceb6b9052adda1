package domain

import "errors"

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrOptimisticLock    = errors.New("optimistic lock conflict")
	ErrProductNotFound   = errors.New("product not found")
	ErrStockNotCached    = errors.New("stock not cached locally")
)
