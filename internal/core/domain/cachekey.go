package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// Cache key fragments. Invalidation matches on substrings, so every key
// describing one product embeds ProductKeyFragment and every aggregate key
// starts with InventoryKeyPrefix.
const (
	InventoryKeyPrefix = "inventory_"
	HistoryKeyPrefix   = InventoryKeyPrefix + "history"
	ReportKeyPrefix    = InventoryKeyPrefix + "report"
	LowStockKeyPrefix  = InventoryKeyPrefix + "low_stock"
)

func ProductKeyFragment(productID int64) string {
	return fmt.Sprintf("product_%d", productID)
}

// CacheKey builds a deterministic key from a prefix and request parameters.
// url.Values.Encode sorts by key, so equal parameters give equal keys.
func CacheKey(prefix string, params url.Values) string {
	if len(params) == 0 {
		return prefix
	}
	return prefix + "_" + params.Encode()
}

func ProductCacheKey(productID int64, suffix ...string) string {
	return strings.Join(append([]string{ProductKeyFragment(productID)}, suffix...), "_")
}
