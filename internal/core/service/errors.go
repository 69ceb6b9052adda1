package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTransferReverted   = errors.New("transfer failed and was reverted")
	ErrCompensationFailed = errors.New("transfer failed and could not be reverted")
	ErrStockUnavailable   = errors.New("stock level unavailable")
	ErrNoStatsSource      = errors.New("no statistics source configured")
)

type BatchItemError struct {
	Index  int
	Errors []string
}

// BatchValidationError rejects a whole batch before any network call.
type BatchValidationError struct {
	Items []BatchItemError
}

func (e *BatchValidationError) Error() string {
	parts := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		parts = append(parts, fmt.Sprintf("movement %d: %s", item.Index, strings.Join(item.Errors, ", ")))
	}
	return "batch validation failed: " + strings.Join(parts, "; ")
}
