package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-sync/internal/core/domain"
	"github.com/rl1809/inventory-sync/internal/platform/observability"
	"github.com/rl1809/inventory-sync/internal/port"
)

const (
	pathMovements = "/inventory/movements"
	pathAdjust    = "/inventory/adjust"

	DefaultCacheTTL   = 5 * time.Minute
	DefaultStockTTL   = time.Minute
	DefaultBatchSize  = 10
	DefaultBatchDelay = 100 * time.Millisecond
)

// InventoryService owns the cache and the pending ledger and reconciles them
// with the backend around every stock mutation.
type InventoryService struct {
	requester port.Requester
	notifier  port.Notifier
	cache     port.CacheRepository
	ledger    port.PendingLedger
	applier   port.StockApplier

	logger *zap.Logger
	tracer trace.Tracer
	now    func() time.Time

	cacheTTL     time.Duration
	stockTTL     time.Duration
	batchDelay   time.Duration
	historyLimit int
	statsSources []StatsSource
}

type Option func(*InventoryService)

// WithStockApplier enables optimistic local stock updates.
func WithStockApplier(a port.StockApplier) Option {
	return func(s *InventoryService) { s.applier = a }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *InventoryService) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *InventoryService) { s.now = now }
}

func WithTTL(cacheTTL, stockTTL time.Duration) Option {
	return func(s *InventoryService) {
		if cacheTTL > 0 {
			s.cacheTTL = cacheTTL
		}
		if stockTTL > 0 {
			s.stockTTL = stockTTL
		}
	}
}

func WithBatchDelay(d time.Duration) Option {
	return func(s *InventoryService) { s.batchDelay = d }
}

func WithHistoryLimit(n int) Option {
	return func(s *InventoryService) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// WithStatsSources replaces the default primary-then-computed chain.
func WithStatsSources(sources ...StatsSource) Option {
	return func(s *InventoryService) { s.statsSources = append([]StatsSource{}, sources...) }
}

func NewInventoryService(
	requester port.Requester,
	notifier port.Notifier,
	cache port.CacheRepository,
	ledger port.PendingLedger,
	opts ...Option,
) *InventoryService {
	s := &InventoryService{
		requester:    requester,
		notifier:     notifier,
		cache:        cache,
		ledger:       ledger,
		logger:       zap.NewNop(),
		tracer:       otel.Tracer("inventory-sync/service"),
		now:          time.Now,
		cacheTTL:     DefaultCacheTTL,
		stockTTL:     DefaultStockTTL,
		batchDelay:   DefaultBatchDelay,
		historyLimit: domain.StatsHistoryLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.statsSources == nil {
		s.statsSources = []StatsSource{
			NewPrimaryStatsSource(requester),
			NewComputedStatsSource(requester, s.historyLimit, s.now),
		}
	}
	return s
}

func newCorrelationID(now time.Time) string {
	return fmt.Sprintf("mv_%d_%s", now.UnixMilli(), uuid.NewString()[:8])
}

// CreateMovement validates and submits a movement. With optimistic set and a
// stock applier configured, the local stock is changed before the request and
// reverted if the backend rejects it.
func (s *InventoryService) CreateMovement(ctx context.Context, m domain.Movement, optimistic bool) (*domain.MovementRecord, error) {
	ctx, span := s.tracer.Start(ctx, "InventoryService.CreateMovement", trace.WithAttributes(
		attribute.Int64("product_id", m.ProductID),
		attribute.String("movement_type", string(m.MovementType)),
		attribute.Bool("optimistic", optimistic),
	))
	defer span.End()

	validation := domain.ValidateMovement(m)
	if !validation.IsValid() {
		err := &domain.ValidationError{Errors: validation.Errors}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(validation.Warnings) > 0 {
		s.notifier.Notify(ctx, domain.NotifyWarning, strings.Join(validation.Warnings, "; "), port.NotifyOptions{})
	}

	correlationID := newCorrelationID(s.now())
	log := observability.L(ctx, s.logger).With(
		zap.Int64("product_id", m.ProductID),
		zap.String("correlation_id", correlationID),
	)

	delta := m.Delta()
	applied := false
	if optimistic && s.applier != nil && delta != 0 {
		s.ledger.Add(m.ProductID, delta, correlationID)
		if err := s.applier.ApplyLocalDelta(ctx, m.ProductID, delta); err != nil {
			log.Warn("optimistic apply failed, submitting without it", zap.Error(err))
			s.ledger.Clear(m.ProductID, correlationID)
		} else {
			applied = true
			s.notifier.Notify(ctx, domain.NotifyLoading,
				fmt.Sprintf("Recording %s of %d units...", m.MovementType, m.Quantity),
				port.NotifyOptions{ID: correlationID})
		}
	}

	resp, err := s.requester.Request(ctx, http.MethodPost, pathMovements, m)
	if err != nil {
		if applied {
			s.revertLocalDelta(ctx, log, m.ProductID, delta)
			s.ledger.Clear(m.ProductID, correlationID)
			s.notifier.DismissLoading(ctx, correlationID)
		}
		log.Warn("movement rejected", zap.Error(err), zap.Bool("rolled_back", applied))
		s.notifier.Notify(ctx, domain.NotifyError, fmt.Sprintf("Movement failed: %v", err), port.NotifyOptions{})
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	record := s.decodeRecord(log, resp, m)

	s.invalidateProduct(ctx, log, m.ProductID)
	if applied {
		s.ledger.Clear(m.ProductID, correlationID)
		s.notifier.DismissLoading(ctx, correlationID)
	}
	s.notifier.Notify(ctx, domain.NotifySuccess,
		fmt.Sprintf("Movement recorded: %s %d units of product %d", m.MovementType, m.Quantity, m.ProductID),
		port.NotifyOptions{})

	log.Info("movement committed", zap.String("movement_type", string(m.MovementType)), zap.Int("quantity", m.Quantity))
	return record, nil
}

// revertLocalDelta undoes an optimistic apply. It runs even when ctx is
// already canceled, since the request failure may be the cancellation itself.
func (s *InventoryService) revertLocalDelta(ctx context.Context, log *zap.Logger, productID int64, delta int) {
	if err := s.applier.ApplyLocalDelta(context.WithoutCancel(ctx), productID, -delta); err != nil {
		log.Error("CRITICAL: optimistic rollback failed", zap.Error(err), zap.Int("delta", -delta))
		return
	}
	log.Info("optimistic update rolled back", zap.Int("delta", -delta))
}

// payload returns the data of a backend response, or nil when there is none.
func payload(resp *domain.Response) json.RawMessage {
	if resp == nil {
		return nil
	}
	return resp.Data
}

func (s *InventoryService) decodeRecord(log *zap.Logger, resp *domain.Response, m domain.Movement) *domain.MovementRecord {
	record := &domain.MovementRecord{
		ProductID:    m.ProductID,
		Quantity:     m.Quantity,
		MovementType: m.MovementType,
		Reason:       m.Reason,
		Location:     m.Location,
		Reference:    m.Reference,
		CreatedAt:    s.now(),
	}
	data := payload(resp)
	if len(data) == 0 {
		return record
	}
	if err := json.Unmarshal(data, record); err != nil {
		log.Warn("unexpected movement response payload", zap.Error(err))
	}
	return record
}

// invalidateProduct drops every cached view a stock change of productID can
// affect. Cache failures are logged; they never fail the mutation.
func (s *InventoryService) invalidateProduct(ctx context.Context, log *zap.Logger, productID int64) {
	if err := s.cache.ClearByProduct(ctx, productID); err != nil {
		log.Warn("cache invalidation failed", zap.Error(err))
	}
	for _, pattern := range []string{domain.HistoryKeyPrefix, domain.ReportKeyPrefix} {
		if err := s.cache.Clear(ctx, pattern); err != nil {
			log.Warn("cache invalidation failed", zap.String("pattern", pattern), zap.Error(err))
		}
	}
	if s.applier != nil {
		if err := s.applier.ClearProductCache(ctx, productID); err != nil {
			log.Warn("product cache invalidation failed", zap.Error(err))
		}
	}
}

// AdjustInventory sets an absolute stock level. It bypasses the movement
// path and is never applied optimistically.
func (s *InventoryService) AdjustInventory(ctx context.Context, input domain.AdjustmentInput) (*domain.AdjustmentResult, error) {
	ctx, span := s.tracer.Start(ctx, "InventoryService.AdjustInventory", trace.WithAttributes(
		attribute.Int64("product_id", input.ProductID),
	))
	defer span.End()

	if err := domain.ValidateAdjustment(input); err != nil {
		return nil, err
	}

	log := observability.L(ctx, s.logger).With(zap.Int64("product_id", input.ProductID))

	resp, err := s.requester.Request(ctx, http.MethodPost, pathAdjust, input)
	if err != nil {
		log.Warn("adjustment rejected", zap.Error(err))
		s.notifier.Notify(ctx, domain.NotifyError, fmt.Sprintf("Adjustment failed: %v", err), port.NotifyOptions{})
		span.RecordError(err)
		return nil, err
	}

	result := &domain.AdjustmentResult{
		ProductID:   input.ProductID,
		NewQuantity: input.NewQuantity,
		Reason:      input.Reason,
		AdjustedAt:  s.now(),
	}
	if data := payload(resp); len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			log.Warn("unexpected adjustment response payload", zap.Error(err))
		}
	}

	s.invalidateProduct(ctx, log, input.ProductID)
	s.notifier.Notify(ctx, domain.NotifySuccess,
		fmt.Sprintf("Stock of product %d set to %d", input.ProductID, input.NewQuantity),
		port.NotifyOptions{})

	return result, nil
}

// ClearCache removes cached entries containing pattern. An empty pattern is a
// full reset that also drops every pending update.
func (s *InventoryService) ClearCache(ctx context.Context, pattern string) error {
	if err := s.cache.Clear(ctx, pattern); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	if pattern == "" {
		s.ledger.ClearAll()
	}
	return nil
}

func (s *InventoryService) PendingUpdates(productID int64) []domain.PendingUpdate {
	return s.ledger.Get(productID)
}

// ReconcilePending sweeps pending updates older than maxAge. Their local stock
// can no longer be trusted, so the product's cached views are dropped too.
func (s *InventoryService) ReconcilePending(ctx context.Context, maxAge time.Duration) []domain.PendingUpdate {
	orphaned := s.ledger.Sweep(maxAge)
	if len(orphaned) == 0 {
		return nil
	}

	swept := make(map[int64]int)
	var order []int64
	for _, u := range orphaned {
		s.logger.Warn("orphaned pending update swept",
			zap.Int64("product_id", u.ProductID),
			zap.String("correlation_id", u.CorrelationID),
			zap.Int("delta", u.QuantityDelta),
			zap.Time("created_at", u.CreatedAt))
		if _, ok := swept[u.ProductID]; !ok {
			order = append(order, u.ProductID)
		}
		swept[u.ProductID] += u.QuantityDelta
	}

	for _, productID := range order {
		log := s.logger.With(zap.Int64("product_id", productID))
		log.Info("pending updates reconciled",
			zap.Int("swept_delta", swept[productID]),
			zap.Int("pending_delta", s.ledger.Sum(productID)))
		s.invalidateProduct(ctx, log, productID)
	}
	return orphaned
}
