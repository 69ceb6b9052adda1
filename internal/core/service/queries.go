package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/inventory-sync/internal/core/domain"
	"github.com/rl1809/inventory-sync/internal/platform/observability"
)

// fetchCached serves key from the cache or fetches path and caches the
// payload for ttl. Cache failures degrade to a plain fetch.
func fetchCached[T any](ctx context.Context, s *InventoryService, key string, ttl time.Duration, path string) (T, error) {
	var out T
	log := observability.L(ctx, s.logger).With(zap.String("cache_key", key))

	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		log.Warn("cache read failed", zap.Error(err))
	}
	if ok {
		if err := json.Unmarshal(data, &out); err == nil {
			return out, nil
		}
		log.Warn("dropping undecodable cache entry")
		_ = s.cache.Delete(ctx, key)
	}

	resp, err := s.requester.Request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return out, err
	}
	data = payload(resp)
	if len(data) == 0 {
		return out, fmt.Errorf("%s: empty response", path)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := s.cache.Set(ctx, key, data, ttl); err != nil {
		log.Warn("cache write failed", zap.Error(err))
	}
	return out, nil
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func (s *InventoryService) GetProductStock(ctx context.Context, productID int64) (*domain.StockLevel, error) {
	lvl, err := fetchCached[*domain.StockLevel](ctx, s,
		domain.ProductCacheKey(productID, "stock"), s.stockTTL,
		fmt.Sprintf("/inventory/product/%d/stock", productID))
	if err != nil {
		return nil, err
	}
	if lvl == nil {
		return nil, fmt.Errorf("product %d: %w", productID, ErrStockUnavailable)
	}
	return lvl, nil
}

func (s *InventoryService) GetHistory(ctx context.Context, filter domain.MovementFilter) ([]domain.MovementRecord, error) {
	q := filter.Values()
	return fetchCached[[]domain.MovementRecord](ctx, s,
		domain.CacheKey(domain.HistoryKeyPrefix, q), s.cacheTTL,
		withQuery("/inventory/history", q))
}

func (s *InventoryService) GetProductHistory(ctx context.Context, productID int64, filter domain.MovementFilter) ([]domain.MovementRecord, error) {
	filter.ProductID = 0
	q := filter.Values()
	return fetchCached[[]domain.MovementRecord](ctx, s,
		domain.CacheKey(domain.ProductCacheKey(productID, "history"), q), s.cacheTTL,
		withQuery(fmt.Sprintf("/inventory/product/%d/history", productID), q))
}

func (s *InventoryService) GetReport(ctx context.Context, includeItems bool) (*domain.InventoryReport, error) {
	q := url.Values{}
	if includeItems {
		q.Set("include_items", "true")
	}
	return fetchCached[*domain.InventoryReport](ctx, s,
		domain.CacheKey(domain.ReportKeyPrefix, q), s.cacheTTL,
		withQuery("/inventory/report", q))
}

// GetLowStock lists products at or below their minimum, or at or below
// threshold when it is positive.
func (s *InventoryService) GetLowStock(ctx context.Context, threshold int) ([]domain.StockLevel, error) {
	q := url.Values{}
	if threshold > 0 {
		q.Set("threshold", strconv.Itoa(threshold))
	}
	return fetchCached[[]domain.StockLevel](ctx, s,
		domain.CacheKey(domain.LowStockKeyPrefix, q), s.cacheTTL,
		withQuery("/inventory/low-stock", q))
}
