package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/inventory-sync/internal/core/domain"
)

const (
	cacheKeyPrefix = "invcache:"
	stockKeyPrefix = "stock:"
	scanBatchSize  = 200
)

// applyDeltaScript only touches stock that is already cached locally, so a
// delta never materializes a bogus level for an unknown product.
var applyDeltaScript = redis.NewScript(`
local key = KEYS[1]
local delta = tonumber(ARGV[1])

if redis.call('EXISTS', key) == 0 then
	return 0
end

redis.call('INCRBY', key, delta)
return 1
`)

// RedisCache implements port.CacheRepository on Redis. Expiry is delegated
// to Redis key TTLs.
type RedisCache struct {
	client     *redis.Client
	defaultTTL time.Duration
}

func NewRedisCache(client *redis.Client, defaultTTL time.Duration) *RedisCache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultCacheTTL
	}
	return &RedisCache{client: client, defaultTTL: defaultTTL}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, cacheKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	return r.client.Set(ctx, cacheKeyPrefix+key, value, ttl).Err()
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, cacheKeyPrefix+key).Err()
}

func (r *RedisCache) Clear(ctx context.Context, pattern string) error {
	return r.deleteMatching(ctx, cacheKeyPrefix+"*"+escapeGlob(pattern)+"*")
}

func (r *RedisCache) ClearByProduct(ctx context.Context, productID int64) error {
	if err := r.Clear(ctx, domain.ProductKeyFragment(productID)); err != nil {
		return err
	}
	return r.Clear(ctx, domain.InventoryKeyPrefix)
}

func (r *RedisCache) deleteMatching(ctx context.Context, match string) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, match, scanBatchSize).Result()
		if err != nil {
			return fmt.Errorf("redis scan %s: %w", match, err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}

// RedisStockStore keeps locally cached product stock and implements
// port.StockApplier.
type RedisStockStore struct {
	client *redis.Client
}

func NewRedisStockStore(client *redis.Client) *RedisStockStore {
	return &RedisStockStore{client: client}
}

func stockKey(productID int64) string {
	return stockKeyPrefix + strconv.FormatInt(productID, 10)
}

// ApplyLocalDelta returns domain.ErrStockNotCached when the product has no
// cached stock to change.
func (r *RedisStockStore) ApplyLocalDelta(ctx context.Context, productID int64, delta int) error {
	applied, err := applyDeltaScript.Run(ctx, r.client, []string{stockKey(productID)}, delta).Int()
	if err != nil {
		return fmt.Errorf("apply stock delta: %w", err)
	}
	if applied == 0 {
		return fmt.Errorf("product %d: %w", productID, domain.ErrStockNotCached)
	}
	return nil
}

func (r *RedisStockStore) ClearProductCache(ctx context.Context, productID int64) error {
	return r.client.Del(ctx, stockKey(productID)).Err()
}

func (r *RedisStockStore) SetStock(ctx context.Context, productID int64, quantity int) error {
	return r.client.Set(ctx, stockKey(productID), quantity, 0).Err()
}

// GetStock returns the cached level and whether it was present.
func (r *RedisStockStore) GetStock(ctx context.Context, productID int64) (int, bool, error) {
	n, err := r.client.Get(ctx, stockKey(productID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}
