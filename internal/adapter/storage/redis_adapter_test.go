package storage

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/inventory-sync/internal/core/domain"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestRedisCache_SetGetExpire(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	cache := NewRedisCache(client, time.Minute)
	cache.Clear(ctx, "test_ttl")

	if err := cache.Set(ctx, "test_ttl_key", []byte("v"), 50*time.Millisecond); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	got, ok, err := cache.Get(ctx, "test_ttl_key")
	if err != nil || !ok || string(got) != "v" {
		t.Fatalf("expected hit with v, got %q ok=%v err=%v", got, ok, err)
	}

	time.Sleep(100 * time.Millisecond)

	_, ok, err = cache.Get(ctx, "test_ttl_key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected entry to expire")
	}
}

func TestRedisCache_ClearByProduct(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	cache := NewRedisCache(client, time.Minute)
	cache.Clear(ctx, "")

	keys := []string{"product_7_stock", "inventory_report", "inventory_history_limit=10", "product_8_stock"}
	for _, k := range keys {
		if err := cache.Set(ctx, k, []byte("x"), 0); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}

	if err := cache.ClearByProduct(ctx, 7); err != nil {
		t.Fatalf("ClearByProduct failed: %v", err)
	}

	for _, k := range keys[:3] {
		if _, ok, _ := cache.Get(ctx, k); ok {
			t.Errorf("expected %s to be cleared", k)
		}
	}
	if _, ok, _ := cache.Get(ctx, "product_8_stock"); !ok {
		t.Error("expected product_8_stock to survive")
	}
}

func TestRedisCache_ClearPattern(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	cache := NewRedisCache(client, time.Minute)
	cache.Clear(ctx, "")

	cache.Set(ctx, "inventory_history_a", []byte("x"), 0)
	cache.Set(ctx, "inventory_historyXa", []byte("x"), 0)

	if err := cache.Clear(ctx, "history_"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	if _, ok, _ := cache.Get(ctx, "inventory_history_a"); ok {
		t.Error("expected inventory_history_a to be cleared")
	}
	if _, ok, _ := cache.Get(ctx, "inventory_historyXa"); !ok {
		t.Error("expected inventory_historyXa to survive")
	}
}

func TestRedisStockStore_ApplyLocalDelta(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	store := NewRedisStockStore(client)

	// Setup
	client.Del(ctx, "stock:4001")
	store.SetStock(ctx, 4001, 10)

	if err := store.ApplyLocalDelta(ctx, 4001, -3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.ApplyLocalDelta(ctx, 4001, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.ApplyLocalDelta(ctx, 4001, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stock, ok, err := store.GetStock(ctx, 4001)
	if err != nil || !ok {
		t.Fatalf("expected cached stock, ok=%v err=%v", ok, err)
	}
	if stock != 15 {
		t.Errorf("expected stock 15, got %d", stock)
	}
}

func TestRedisStockStore_ApplyLocalDelta_NotCached(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	store := NewRedisStockStore(client)

	client.Del(ctx, "stock:4002")

	err := store.ApplyLocalDelta(ctx, 4002, -1)
	if !errors.Is(err, domain.ErrStockNotCached) {
		t.Fatalf("expected ErrStockNotCached, got %v", err)
	}
	if _, ok, _ := store.GetStock(ctx, 4002); ok {
		t.Error("delta must not create stock for an uncached product")
	}
}

func TestRedisStockStore_ApplyLocalDelta_Concurrent(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	store := NewRedisStockStore(client)

	client.Del(ctx, "stock:4003")
	store.SetStock(ctx, 4003, 100)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.ApplyLocalDelta(ctx, 4003, -1); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	stock, _, _ := store.GetStock(ctx, 4003)
	if stock != 50 {
		t.Errorf("expected stock 50, got %d", stock)
	}
}

func TestRedisStockStore_ClearProductCache(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	store := NewRedisStockStore(client)
	store.SetStock(ctx, 4004, 1)

	if err := store.ClearProductCache(ctx, 4004); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok, _ := store.GetStock(ctx, 4004); ok {
		t.Error("expected stock to be cleared")
	}
}
