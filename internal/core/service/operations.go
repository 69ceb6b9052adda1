package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-sync/internal/core/domain"
	"github.com/rl1809/inventory-sync/internal/platform/observability"
	"github.com/rl1809/inventory-sync/internal/port"
)

type PhysicalCountInput struct {
	ProductID       int64
	CountedQuantity int
	Notes           string
	// ReportOnly reports the difference without recording a movement.
	ReportOnly bool
}

type PhysicalCountResult struct {
	ProductID       int64                  `json:"product_id"`
	SystemQuantity  int                    `json:"system_quantity"`
	CountedQuantity int                    `json:"counted_quantity"`
	Difference      int                    `json:"difference"`
	Adjusted        bool                   `json:"adjusted"`
	Movement        *domain.MovementRecord `json:"movement,omitempty"`
	Message         string                 `json:"message"`
}

// PerformPhysicalInventory reconciles a counted quantity with the system
// stock by recording a single in or out movement for the difference.
func (s *InventoryService) PerformPhysicalInventory(ctx context.Context, input PhysicalCountInput) (*PhysicalCountResult, error) {
	ctx, span := s.tracer.Start(ctx, "InventoryService.PerformPhysicalInventory", trace.WithAttributes(
		attribute.Int64("product_id", input.ProductID),
	))
	defer span.End()

	var errs []string
	if input.ProductID <= 0 {
		errs = append(errs, "product_id is required and must be a positive integer")
	}
	if input.CountedQuantity < 0 {
		errs = append(errs, "counted_quantity must be 0 or greater")
	}
	if len(errs) > 0 {
		return nil, &domain.ValidationError{Errors: errs}
	}

	stock, err := s.GetProductStock(ctx, input.ProductID)
	if err != nil {
		return nil, fmt.Errorf("read system stock: %w", err)
	}

	result := &PhysicalCountResult{
		ProductID:       input.ProductID,
		SystemQuantity:  stock.Quantity,
		CountedQuantity: input.CountedQuantity,
		Difference:      input.CountedQuantity - stock.Quantity,
	}

	switch {
	case result.Difference == 0:
		result.Message = "Physical count matches system stock"
		s.notifier.Notify(ctx, domain.NotifySuccess, result.Message, port.NotifyOptions{})
		return result, nil
	case input.ReportOnly:
		result.Message = fmt.Sprintf("Difference of %d units found, no adjustment made", result.Difference)
		s.notifier.Notify(ctx, domain.NotifyInfo, result.Message, port.NotifyOptions{})
		return result, nil
	}

	movement := domain.Movement{
		ProductID:    input.ProductID,
		Quantity:     abs(result.Difference),
		MovementType: domain.MovementIn,
		Reason:       fmt.Sprintf("Physical count: counted %d, system %d", input.CountedQuantity, stock.Quantity),
	}
	if result.Difference < 0 {
		movement.MovementType = domain.MovementOut
	}
	if notes := strings.TrimSpace(input.Notes); notes != "" {
		movement.Reason += ". " + notes
	}

	record, err := s.CreateMovement(ctx, movement, false)
	if err != nil {
		return nil, fmt.Errorf("record physical count difference: %w", err)
	}

	result.Adjusted = true
	result.Movement = record
	result.Message = fmt.Sprintf("Stock adjusted by %d units", result.Difference)
	return result, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

type TransferInput struct {
	ProductID    int64
	FromLocation string
	ToLocation   string
	Quantity     int
	Notes        string
}

type TransferResult struct {
	ProductID    int64                  `json:"product_id"`
	FromLocation string                 `json:"from_location"`
	ToLocation   string                 `json:"to_location"`
	Quantity     int                    `json:"quantity"`
	Reference    string                 `json:"reference"`
	Out          *domain.MovementRecord `json:"out"`
	In           *domain.MovementRecord `json:"in"`
}

func (in TransferInput) validate() error {
	var errs []string
	from, to := strings.TrimSpace(in.FromLocation), strings.TrimSpace(in.ToLocation)
	if in.ProductID <= 0 {
		errs = append(errs, "product_id is required and must be a positive integer")
	}
	if from == "" || to == "" {
		errs = append(errs, "from_location and to_location are required")
	} else if from == to {
		errs = append(errs, "from_location and to_location must differ")
	}
	if in.Quantity <= 0 {
		errs = append(errs, "quantity must be greater than 0")
	}
	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// TransferStock moves stock between locations as an out movement followed by
// an in movement. If the in movement fails, the out movement is compensated
// by returning the stock to the origin.
func (s *InventoryService) TransferStock(ctx context.Context, input TransferInput) (*TransferResult, error) {
	ctx, span := s.tracer.Start(ctx, "InventoryService.TransferStock", trace.WithAttributes(
		attribute.Int64("product_id", input.ProductID),
		attribute.String("from", input.FromLocation),
		attribute.String("to", input.ToLocation),
	))
	defer span.End()

	if err := input.validate(); err != nil {
		return nil, err
	}

	ts := s.now().UnixMilli()
	result := &TransferResult{
		ProductID:    input.ProductID,
		FromLocation: input.FromLocation,
		ToLocation:   input.ToLocation,
		Quantity:     input.Quantity,
		Reference:    fmt.Sprintf("TRANSFER_%d", ts),
	}
	log := observability.L(ctx, s.logger).With(
		zap.Int64("product_id", input.ProductID),
		zap.String("reference", result.Reference),
	)

	notes := ""
	if n := strings.TrimSpace(input.Notes); n != "" {
		notes = ". " + n
	}

	saga := NewSaga("transfer", log,
		SagaStep{
			Name: "out",
			Forward: func(ctx context.Context) error {
				rec, err := s.CreateMovement(ctx, domain.Movement{
					ProductID:    input.ProductID,
					Quantity:     input.Quantity,
					MovementType: domain.MovementOut,
					Reason:       fmt.Sprintf("Transfer to %s%s", input.ToLocation, notes),
					Location:     input.FromLocation,
					Reference:    result.Reference + "_OUT",
				}, false)
				result.Out = rec
				return err
			},
			Compensate: func(ctx context.Context) error {
				_, err := s.CreateMovement(ctx, domain.Movement{
					ProductID:    input.ProductID,
					Quantity:     input.Quantity,
					MovementType: domain.MovementIn,
					Reason:       fmt.Sprintf("Transfer to %s reverted", input.ToLocation),
					Location:     input.FromLocation,
					Reference:    fmt.Sprintf("TRANSFER_REVERT_%d", ts),
				}, false)
				return err
			},
		},
		SagaStep{
			Name: "in",
			Forward: func(ctx context.Context) error {
				rec, err := s.CreateMovement(ctx, domain.Movement{
					ProductID:    input.ProductID,
					Quantity:     input.Quantity,
					MovementType: domain.MovementIn,
					Reason:       fmt.Sprintf("Transfer from %s%s", input.FromLocation, notes),
					Location:     input.ToLocation,
					Reference:    result.Reference + "_IN",
				}, false)
				result.In = rec
				return err
			},
		},
	)

	if err := saga.Run(ctx); err != nil {
		span.RecordError(err)
		var sagaErr *SagaError
		if !errors.As(err, &sagaErr) || sagaErr.Step == "out" {
			return nil, err
		}
		if sagaErr.CompensationErr != nil {
			s.notifier.Notify(ctx, domain.NotifyError,
				"Transfer failed and stock could not be returned to "+input.FromLocation, port.NotifyOptions{})
			return nil, fmt.Errorf("%w: %w", ErrCompensationFailed, sagaErr)
		}
		s.notifier.Notify(ctx, domain.NotifyError,
			"Transfer failed, stock returned to "+input.FromLocation, port.NotifyOptions{})
		return nil, fmt.Errorf("%w: %w", ErrTransferReverted, sagaErr.Err)
	}

	s.notifier.Notify(ctx, domain.NotifySuccess,
		fmt.Sprintf("Transferred %d units from %s to %s", input.Quantity, input.FromLocation, input.ToLocation),
		port.NotifyOptions{})
	return result, nil
}
