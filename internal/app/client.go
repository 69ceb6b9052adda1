package app

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-sync/internal/adapter/client"
	"github.com/rl1809/inventory-sync/internal/adapter/notify"
	"github.com/rl1809/inventory-sync/internal/adapter/storage"
	"github.com/rl1809/inventory-sync/internal/config"
	"github.com/rl1809/inventory-sync/internal/core/domain"
	"github.com/rl1809/inventory-sync/internal/core/service"
	"github.com/rl1809/inventory-sync/internal/platform/observability"
	"github.com/rl1809/inventory-sync/internal/port"
)

const minReconcileInterval = 10 * time.Millisecond

// Client holds the inventory service and the local state it was built with.
type Client struct {
	Service *service.InventoryService
	Ledger  *storage.MemoryLedger
	// Stock is nil when no redis client was supplied; movements then skip
	// the optimistic local path.
	Stock *storage.RedisStockStore

	cfg    config.Client
	logger *zap.Logger
}

// NewClient wires an InventoryService from cfg. rdb may be nil unless
// cfg.CacheBackend is redis.
func NewClient(cfg config.Client, logger *zap.Logger, rdb *redis.Client) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var cache port.CacheRepository
	switch cfg.CacheBackend {
	case config.CacheBackendRedis:
		if rdb == nil {
			return nil, errors.New("redis cache backend requires a redis client")
		}
		cache = storage.NewRedisCache(rdb, cfg.CacheTTL)
	default:
		cache = storage.NewMemoryCache(cfg.CacheTTL)
	}

	c := &Client{
		Ledger: storage.NewMemoryLedger(),
		cfg:    cfg,
		logger: logger,
	}
	opts := []service.Option{
		service.WithLogger(logger),
		service.WithTTL(cfg.CacheTTL, cfg.StockCacheTTL),
		service.WithBatchDelay(cfg.BatchDelay),
		service.WithHistoryLimit(cfg.HistoryLimit),
	}
	if rdb != nil {
		c.Stock = storage.NewRedisStockStore(rdb)
		opts = append(opts, service.WithStockApplier(c.Stock))
	}

	c.Service = service.NewInventoryService(
		client.NewHTTPRequester(cfg.APIBaseURL, cfg.RequestTimeout),
		notify.NewLogNotifier(logger),
		cache,
		c.Ledger,
		opts...,
	)
	return c, nil
}

// InitTracing installs the tracer provider described by cfg.Tracing.
func InitTracing(ctx context.Context, cfg config.Client, serviceName string) (func(context.Context) error, error) {
	return observability.Init(ctx, observability.Config{
		Enabled:       cfg.Tracing.Enabled,
		OTLPEndpoint:  cfg.Tracing.OTLPEndpoint,
		SamplingRatio: cfg.Tracing.SamplingRatio,
		ServiceName:   serviceName,
		Environment:   cfg.AppEnv,
	})
}

// CreateMovements submits movements in batches of the configured size.
func (c *Client) CreateMovements(ctx context.Context, movements []domain.Movement) (*service.BatchResult, error) {
	return c.Service.CreateMultipleMovements(ctx, movements, c.cfg.BatchSize)
}

// Reconcile sweeps pending updates older than the configured maximum age.
func (c *Client) Reconcile(ctx context.Context) []domain.PendingUpdate {
	return c.Service.ReconcilePending(ctx, c.cfg.PendingMaxAge)
}

// RunReconciler calls Reconcile every half PendingMaxAge until ctx is done.
func (c *Client) RunReconciler(ctx context.Context) {
	interval := c.cfg.PendingMaxAge / 2
	if interval < minReconcileInterval {
		interval = minReconcileInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.logger.Info("pending reconciler started",
		zap.Duration("interval", interval),
		zap.Duration("max_age", c.cfg.PendingMaxAge))
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("pending reconciler stopped")
			return
		case <-ticker.C:
			c.Reconcile(ctx)
		}
	}
}
