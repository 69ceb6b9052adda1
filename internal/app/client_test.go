package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-sync/internal/config"
	"github.com/rl1809/inventory-sync/internal/core/domain"
)

type backend struct {
	mu           sync.Mutex
	historyQuery string

	inFlight atomic.Int32
	peak     atomic.Int32
	posted   atomic.Int32
}

func (b *backend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/inventory/trends", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"success":false,"message":"trends unavailable"}`, http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/inventory/history", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.historyQuery = r.URL.RawQuery
		b.mu.Unlock()
		w.Write([]byte(`{"success":true,"data":[]}`))
	})
	mux.HandleFunc("/inventory/movements", func(w http.ResponseWriter, r *http.Request) {
		n := b.inFlight.Add(1)
		defer b.inFlight.Add(-1)
		for {
			p := b.peak.Load()
			if n <= p || b.peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		b.posted.Add(1)
		w.Write([]byte(`{"success":true,"data":{"id":1}}`))
	})
	return mux
}

func testConfig(baseURL string) config.Client {
	return config.Client{
		AppEnv:         config.EnvLocal,
		APIBaseURL:     baseURL,
		RequestTimeout: 5 * time.Second,
		CacheBackend:   config.CacheBackendMemory,
		CacheTTL:       time.Minute,
		StockCacheTTL:  time.Minute,
		BatchSize:      2,
		BatchDelay:     0,
		HistoryLimit:   25,
		PendingMaxAge:  20 * time.Millisecond,
	}
}

func newTestClient(t *testing.T, mutate func(*config.Client)) (*Client, *backend) {
	t.Helper()
	b := &backend{}
	server := httptest.NewServer(b.handler())
	t.Cleanup(server.Close)

	cfg := testConfig(server.URL)
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewClient(cfg, zap.NewNop(), nil)
	require.NoError(t, err)
	return c, b
}

func TestNewClient_RedisBackendNeedsClient(t *testing.T) {
	cfg := testConfig("http://localhost:0")
	cfg.CacheBackend = config.CacheBackendRedis

	_, err := NewClient(cfg, zap.NewNop(), nil)
	assert.ErrorContains(t, err, "redis")
}

func TestNewClient_HistoryLimitReachesComputedStats(t *testing.T) {
	c, b := newTestClient(t, nil)

	report, err := c.Service.GetTrends(context.Background(), 7, 0)
	require.NoError(t, err)
	assert.True(t, report.Calculated)

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Contains(t, b.historyQuery, "limit=25")
}

func TestClient_CreateMovementsUsesBatchSize(t *testing.T) {
	c, b := newTestClient(t, nil)

	movements := make([]domain.Movement, 5)
	for i := range movements {
		movements[i] = domain.Movement{ProductID: 1, Quantity: 1, MovementType: domain.MovementIn, Reason: "restock"}
	}

	res, err := c.CreateMovements(context.Background(), movements)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 5, res.Summary.Success)
	assert.Equal(t, int32(5), b.posted.Load())
	assert.LessOrEqual(t, b.peak.Load(), int32(2))
}

func TestClient_ReconcileUsesPendingMaxAge(t *testing.T) {
	c, _ := newTestClient(t, func(cfg *config.Client) { cfg.PendingMaxAge = time.Hour })

	c.Ledger.Add(1, -2, "mv_recent")
	assert.Empty(t, c.Reconcile(context.Background()))
	assert.Len(t, c.Ledger.Get(1), 1)
}

func TestClient_RunReconcilerSweepsOrphans(t *testing.T) {
	c, _ := newTestClient(t, nil)
	c.Ledger.Add(1, -2, "mv_orphan")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.RunReconciler(ctx)
	}()

	assert.Eventually(t, func() bool { return len(c.Ledger.Get(1)) == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop after cancel")
	}
}
