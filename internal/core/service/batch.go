package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-sync/internal/core/domain"
	"github.com/rl1809/inventory-sync/internal/platform/observability"
	"github.com/rl1809/inventory-sync/internal/port"
)

type BatchItemResult struct {
	Index    int                    `json:"index"`
	Movement domain.Movement        `json:"movement"`
	Record   *domain.MovementRecord `json:"record,omitempty"`
	Err      error                  `json:"-"`
}

type BatchSummary struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Errors  int `json:"errors"`
}

type BatchResult struct {
	Success bool              `json:"success"`
	Results []BatchItemResult `json:"results"`
	Summary BatchSummary      `json:"summary"`
}

// CreateMultipleMovements validates every movement before sending any of them,
// then submits them in batches of batchSize. Movements within a batch run
// concurrently; batches are separated by the configured delay. One failed
// movement does not stop the others.
func (s *InventoryService) CreateMultipleMovements(ctx context.Context, movements []domain.Movement, batchSize int) (*BatchResult, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	ctx, span := s.tracer.Start(ctx, "InventoryService.CreateMultipleMovements", trace.WithAttributes(
		attribute.Int("movements", len(movements)),
		attribute.Int("batch_size", batchSize),
	))
	defer span.End()

	var invalid []BatchItemError
	for i, m := range movements {
		if v := domain.ValidateMovement(m); !v.IsValid() {
			invalid = append(invalid, BatchItemError{Index: i, Errors: v.Errors})
		}
	}
	if len(invalid) > 0 {
		return nil, &BatchValidationError{Items: invalid}
	}

	results := make([]BatchItemResult, len(movements))
	for i, m := range movements {
		results[i] = BatchItemResult{Index: i, Movement: m}
	}

	log := observability.L(ctx, s.logger)

	for start := 0; start < len(movements); start += batchSize {
		if start > 0 {
			if err := sleepCtx(ctx, s.batchDelay); err != nil {
				for i := start; i < len(results); i++ {
					results[i].Err = err
				}
				log.Warn("batch interrupted", zap.Int("remaining", len(results)-start), zap.Error(err))
				break
			}
		}

		end := min(start+batchSize, len(movements))
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(item *BatchItemResult) {
				defer wg.Done()
				item.Record, item.Err = s.CreateMovement(ctx, item.Movement, false)
			}(&results[i])
		}
		wg.Wait()
	}

	out := &BatchResult{Results: results, Summary: BatchSummary{Total: len(results)}}
	for _, r := range results {
		if r.Err != nil {
			out.Summary.Errors++
		} else {
			out.Summary.Success++
		}
	}
	out.Success = out.Summary.Errors == 0

	kind := domain.NotifySuccess
	if !out.Success {
		kind = domain.NotifyWarning
	}
	s.notifier.Notify(ctx, kind,
		fmt.Sprintf("Batch finished: %d of %d movements recorded", out.Summary.Success, out.Summary.Total),
		port.NotifyOptions{})

	return out, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
