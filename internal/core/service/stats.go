package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-sync/internal/core/domain"
	"github.com/rl1809/inventory-sync/internal/platform/observability"
	"github.com/rl1809/inventory-sync/internal/port"
)

// StatsSource produces movement statistics and daily trends. Sources are
// tried in order until one succeeds.
type StatsSource interface {
	Name() string
	Statistics(ctx context.Context) (*domain.Statistics, error)
	Trends(ctx context.Context, days int, productID int64) (*domain.TrendReport, error)
}

type primaryStatsSource struct {
	requester port.Requester
}

// NewPrimaryStatsSource reads the aggregates the backend computes itself.
func NewPrimaryStatsSource(requester port.Requester) StatsSource {
	return &primaryStatsSource{requester: requester}
}

func (p *primaryStatsSource) Name() string { return "backend" }

func (p *primaryStatsSource) Statistics(ctx context.Context) (*domain.Statistics, error) {
	var stats domain.Statistics
	if err := getJSON(ctx, p.requester, "/inventory/statistics", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (p *primaryStatsSource) Trends(ctx context.Context, days int, productID int64) (*domain.TrendReport, error) {
	q := url.Values{}
	q.Set("days", strconv.Itoa(days))
	if productID > 0 {
		q.Set("product_id", strconv.FormatInt(productID, 10))
	}
	var report domain.TrendReport
	if err := getJSON(ctx, p.requester, withQuery("/inventory/trends", q), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

type computedStatsSource struct {
	requester port.Requester
	limit     int
	now       func() time.Time
}

// NewComputedStatsSource derives statistics from raw movement history. The
// results are marked Calculated.
func NewComputedStatsSource(requester port.Requester, limit int, now func() time.Time) StatsSource {
	return &computedStatsSource{requester: requester, limit: limit, now: now}
}

func (c *computedStatsSource) Name() string { return "computed" }

func (c *computedStatsSource) history(ctx context.Context, filter domain.MovementFilter) ([]domain.MovementRecord, error) {
	filter.Limit = c.limit
	var records []domain.MovementRecord
	if err := getJSON(ctx, c.requester, withQuery("/inventory/history", filter.Values()), &records); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return records, nil
}

func (c *computedStatsSource) Statistics(ctx context.Context) (*domain.Statistics, error) {
	now := c.now()
	records, err := c.history(ctx, domain.MovementFilter{From: domain.StartOfDay(now).AddDate(0, 0, -29)})
	if err != nil {
		return nil, err
	}
	stats := domain.ComputeStatistics(records, now, domain.TopProductsMax)
	stats.Calculated = true
	return &stats, nil
}

func (c *computedStatsSource) Trends(ctx context.Context, days int, productID int64) (*domain.TrendReport, error) {
	now := c.now()
	records, err := c.history(ctx, domain.MovementFilter{
		ProductID: productID,
		From:      domain.StartOfDay(now).AddDate(0, 0, -days),
	})
	if err != nil {
		return nil, err
	}
	return &domain.TrendReport{
		Days:       days,
		ProductID:  productID,
		Points:     domain.ComputeTrends(records, days, productID, now),
		Calculated: true,
	}, nil
}

func getJSON(ctx context.Context, r port.Requester, path string, out any) error {
	resp, err := r.Request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	data := payload(resp)
	if len(data) == 0 {
		return fmt.Errorf("%s: empty response", path)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (s *InventoryService) GetStatistics(ctx context.Context) (*domain.Statistics, error) {
	ctx, span := s.tracer.Start(ctx, "InventoryService.GetStatistics")
	defer span.End()

	log := observability.L(ctx, s.logger)
	var errs []error
	for _, src := range s.statsSources {
		stats, err := src.Statistics(ctx)
		if err == nil {
			span.SetAttributes(attribute.String("stats.source", src.Name()))
			return stats, nil
		}
		log.Warn("statistics source failed", zap.String("source", src.Name()), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
	}
	if len(errs) == 0 {
		return nil, ErrNoStatsSource
	}
	return nil, errors.Join(errs...)
}

// GetTrends returns days+1 daily points ending today. A non-positive days
// means domain.DefaultTrendDays and a zero productID covers every product.
func (s *InventoryService) GetTrends(ctx context.Context, days int, productID int64) (*domain.TrendReport, error) {
	if days <= 0 {
		days = domain.DefaultTrendDays
	}
	ctx, span := s.tracer.Start(ctx, "InventoryService.GetTrends", trace.WithAttributes(
		attribute.Int("days", days),
		attribute.Int64("product_id", productID),
	))
	defer span.End()

	log := observability.L(ctx, s.logger)
	var errs []error
	for _, src := range s.statsSources {
		report, err := src.Trends(ctx, days, productID)
		if err == nil {
			span.SetAttributes(attribute.String("stats.source", src.Name()))
			return report, nil
		}
		log.Warn("trends source failed", zap.String("source", src.Name()), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
	}
	if len(errs) == 0 {
		return nil, ErrNoStatsSource
	}
	return nil, errors.Join(errs...)
}
