package tests

import (
	"context"
	"database/sql"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-sync/internal/adapter/client"
	"github.com/rl1809/inventory-sync/internal/adapter/handler"
	"github.com/rl1809/inventory-sync/internal/adapter/messaging"
	"github.com/rl1809/inventory-sync/internal/adapter/storage"
	"github.com/rl1809/inventory-sync/internal/app"
	"github.com/rl1809/inventory-sync/internal/config"
	"github.com/rl1809/inventory-sync/internal/core/domain"
	"github.com/rl1809/inventory-sync/internal/core/service"
)

type testEnv struct {
	redis   *redis.Client
	mysql   *sql.DB
	stock   *storage.RedisStockStore
	ledger  *storage.MemoryLedger
	svc     *service.InventoryService
	cleanup func()
}

func setupTestEnv(t *testing.T, productIDs ...int64) *testEnv {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/inventory?parseTime=true"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	store := storage.NewMySQLAdapter(db)
	require.NoError(t, store.Migrate(context.Background()))

	wipe := func() {
		ctx := context.Background()
		for _, id := range productIDs {
			db.ExecContext(ctx, `DELETE FROM movements WHERE product_id = ?`, id)
			db.ExecContext(ctx, `DELETE FROM stock WHERE product_id = ?`, id)
		}
	}
	wipe()

	server := httptest.NewServer(handler.NewHTTPHandler(store, messaging.NoopPublisher{}, zap.NewNop()).Routes())

	inv, err := app.NewClient(config.Client{
		AppEnv:         config.EnvLocal,
		APIBaseURL:     server.URL,
		RequestTimeout: 5 * time.Second,
		CacheBackend:   config.CacheBackendRedis,
		CacheTTL:       time.Minute,
		StockCacheTTL:  time.Minute,
		BatchSize:      10,
		BatchDelay:     10 * time.Millisecond,
		HistoryLimit:   domain.StatsHistoryLimit,
		PendingMaxAge:  time.Minute,
	}, zap.NewNop(), rdb)
	require.NoError(t, err)

	env := &testEnv{
		redis:  rdb,
		mysql:  db,
		stock:  inv.Stock,
		ledger: inv.Ledger,
		svc:    inv.Service,
	}
	env.cleanup = func() {
		server.Close()
		wipe()
		ctx := context.Background()
		for _, id := range productIDs {
			env.stock.ClearProductCache(ctx, id)
		}
		env.svc.ClearCache(ctx, "")
		rdb.Close()
		db.Close()
	}
	return env
}

func seedStock(t *testing.T, env *testEnv, productID int64, quantity int) {
	ctx := context.Background()
	_, err := env.svc.AdjustInventory(ctx, domain.AdjustmentInput{ProductID: productID, NewQuantity: quantity, Reason: "test setup"})
	require.NoError(t, err)
	require.NoError(t, env.stock.SetStock(ctx, productID, quantity))
}

func TestIntegration_ConcurrentOptimisticMovements(t *testing.T) {
	const (
		productID     = int64(8001)
		initialStock  = 20
		totalRequests = 50
	)
	env := setupTestEnv(t, productID)
	defer env.cleanup()
	seedStock(t, env, productID, initialStock)

	ctx := context.Background()
	var successCount, failCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.CreateMovement(ctx, domain.Movement{
				ProductID: productID, Quantity: 1, MovementType: domain.MovementOut, Reason: "concurrent order",
			}, true)
			if err == nil {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(initialStock), successCount.Load())
	assert.Equal(t, int32(totalRequests-initialStock), failCount.Load())
	assert.Empty(t, env.ledger.Get(productID))

	lvl, err := env.svc.GetProductStock(ctx, productID)
	require.NoError(t, err)
	assert.Zero(t, lvl.Quantity)

	history, err := env.svc.GetProductHistory(ctx, productID, domain.MovementFilter{MovementType: domain.MovementOut})
	require.NoError(t, err)
	assert.Len(t, history, initialStock)
}

func TestIntegration_RejectedMovementRollsBackLocalStock(t *testing.T) {
	const productID = int64(8002)
	env := setupTestEnv(t, productID)
	defer env.cleanup()
	seedStock(t, env, productID, 3)

	ctx := context.Background()
	_, err := env.svc.CreateMovement(ctx, domain.Movement{
		ProductID: productID, Quantity: 5, MovementType: domain.MovementOut, Reason: "oversell",
	}, true)

	require.Error(t, err)
	assert.True(t, client.IsBackendError(err))

	local, found, err := env.stock.GetStock(ctx, productID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 3, local)
	assert.Empty(t, env.ledger.Get(productID))
}

func TestIntegration_TransferAndTrends(t *testing.T) {
	const productID = int64(8003)
	env := setupTestEnv(t, productID)
	defer env.cleanup()
	seedStock(t, env, productID, 10)

	ctx := context.Background()
	res, err := env.svc.TransferStock(ctx, service.TransferInput{
		ProductID: productID, FromLocation: "WH-A", ToLocation: "WH-B", Quantity: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, 10, res.Out.StockBefore)
	assert.Equal(t, 6, res.Out.StockAfter)
	assert.Equal(t, 10, res.In.StockAfter)

	trends, err := env.svc.GetTrends(ctx, 7, productID)
	require.NoError(t, err)
	require.Len(t, trends.Points, 8)
	today := trends.Points[7]
	assert.Equal(t, 4, today.Entries)
	assert.Equal(t, 4, today.Exits)
	assert.Zero(t, today.NetChange)
}

func TestIntegration_BatchMovements(t *testing.T) {
	const productID = int64(8004)
	env := setupTestEnv(t, productID)
	defer env.cleanup()
	seedStock(t, env, productID, 2)

	movements := []domain.Movement{
		{ProductID: productID, Quantity: 1, MovementType: domain.MovementOut, Reason: "batch one"},
		{ProductID: productID, Quantity: 1, MovementType: domain.MovementOut, Reason: "batch two"},
		{ProductID: productID, Quantity: 1, MovementType: domain.MovementOut, Reason: "batch three"},
	}
	res, err := env.svc.CreateMultipleMovements(context.Background(), movements, 1)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, service.BatchSummary{Total: 3, Success: 2, Errors: 1}, res.Summary)
	assert.Error(t, res.Results[2].Err)
}
