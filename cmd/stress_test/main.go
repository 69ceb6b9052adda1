package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-sync/internal/app"
	"github.com/rl1809/inventory-sync/internal/config"
	"github.com/rl1809/inventory-sync/internal/core/domain"
	"github.com/rl1809/inventory-sync/internal/platform/logging"
)

const (
	productID     = int64(777)
	initialStock  = 20
	totalRequests = 50

	restockMovements = 5
)

// Drives concurrent optimistic out movements against a running backend and
// checks that local stock and the pending ledger settle consistently.
func main() {
	ctx := context.Background()

	cfg, err := config.LoadClient()
	if err != nil {
		panic(err)
	}
	logger, err := logging.New(logging.Config{ServiceName: "inventory-stress", Env: cfg.AppEnv, Level: cfg.LogLevel})
	if err != nil {
		panic(err)
	}
	defer logging.Sync(logger)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	defer rdb.Close()

	shutdownTracing, err := app.InitTracing(ctx, cfg, "inventory-stress")
	if err != nil {
		logger.Fatal("failed to init tracing", zap.Error(err))
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	inv, err := app.NewClient(cfg, logger, rdb)
	if err != nil {
		logger.Fatal("failed to build inventory client", zap.Error(err))
	}
	svc := inv.Service
	stockStore := inv.Stock
	ledger := inv.Ledger

	reconcileCtx, stopReconciler := context.WithCancel(ctx)
	defer stopReconciler()
	go inv.RunReconciler(reconcileCtx)

	if _, err := svc.AdjustInventory(ctx, domain.AdjustmentInput{
		ProductID: productID, NewQuantity: initialStock, Reason: "stress test reset",
	}); err != nil {
		logger.Fatal("failed to reset stock", zap.Error(err))
	}
	if err := stockStore.SetStock(ctx, productID, initialStock); err != nil {
		logger.Fatal("failed to seed local stock", zap.Error(err))
	}

	var successCount atomic.Int32
	var failCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.CreateMovement(ctx, domain.Movement{
				ProductID:    productID,
				Quantity:     1,
				MovementType: domain.MovementOut,
				Reason:       fmt.Sprintf("stress order %d", n),
			}, true)
			if err == nil {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	fail := failCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	failed := false
	if success != int32(initialStock) || fail != int32(totalRequests-initialStock) {
		fmt.Printf("FAIL: Expected %d success/%d fail, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, fail)
		failed = true
	}

	restock := make([]domain.Movement, restockMovements)
	for i := range restock {
		restock[i] = domain.Movement{
			ProductID:    productID,
			Quantity:     1,
			MovementType: domain.MovementIn,
			Reason:       fmt.Sprintf("stress restock %d", i),
		}
	}
	batch, err := inv.CreateMovements(ctx, restock)
	if err != nil {
		logger.Fatal("restock batch rejected", zap.Error(err))
	}
	fmt.Printf("Restocked:        %d/%d (batch size %d)\n", batch.Summary.Success, batch.Summary.Total, cfg.BatchSize)
	if batch.Summary.Success != restockMovements {
		fmt.Printf("FAIL: Expected %d restock movements, got %d\n", restockMovements, batch.Summary.Success)
		failed = true
	}

	if swept := inv.Reconcile(ctx); len(swept) != 0 {
		fmt.Printf("FAIL: %d orphaned pending updates swept\n", len(swept))
		failed = true
	}

	if pending := ledger.Get(productID); len(pending) != 0 {
		fmt.Printf("FAIL: %d pending updates left in ledger\n", len(pending))
		failed = true
	}

	// Successful movements drop the local stock key, so read the backend.
	lvl, err := svc.GetProductStock(ctx, productID)
	if err != nil {
		logger.Fatal("failed to read final stock", zap.Error(err))
	}
	fmt.Printf("Final Stock:      %d\n", lvl.Quantity)
	if lvl.Quantity != restockMovements {
		fmt.Printf("FAIL: Expected stock %d, got %d\n", restockMovements, lvl.Quantity)
		failed = true
	}

	if failed {
		os.Exit(1)
	}
	fmt.Println("PASS")
}
