package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/inventory-sync/internal/adapter/storage"
	"github.com/rl1809/inventory-sync/internal/core/domain"
	"github.com/rl1809/inventory-sync/internal/port"
)

var fixedNow = time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)

var errBackend = errors.New("backend rejected request")

type call struct {
	Method string
	Path   string
	Body   any
}

type routeFunc func(body any) (*domain.Response, error)

// fakeRequester answers requests by "METHOD path", ignoring the query string.
type fakeRequester struct {
	mu     sync.Mutex
	routes map[string]routeFunc
	calls  []call
}

func newFakeRequester() *fakeRequester {
	return &fakeRequester{routes: make(map[string]routeFunc)}
}

func (f *fakeRequester) on(method, path string, fn routeFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[method+" "+path] = fn
}

func (f *fakeRequester) Request(_ context.Context, method, path string, body any) (*domain.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{Method: method, Path: path, Body: body})
	fn, ok := f.routes[method+" "+strings.SplitN(path, "?", 2)[0]]
	f.mu.Unlock()

	if !ok {
		return nil, errors.New("no route for " + method + " " + path)
	}
	return fn(body)
}

func (f *fakeRequester) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func ok(t *testing.T, data any) routeFunc {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return func(any) (*domain.Response, error) {
		return &domain.Response{Success: true, Data: raw}, nil
	}
}

func fail(err error) routeFunc {
	return func(any) (*domain.Response, error) { return nil, err }
}

// echoMovement accepts any movement and returns it as a record.
func echoMovement(body any) (*domain.Response, error) {
	m := body.(domain.Movement)
	raw, _ := json.Marshal(domain.MovementRecord{
		ID:           1,
		ProductID:    m.ProductID,
		Quantity:     m.Quantity,
		MovementType: m.MovementType,
		Reason:       m.Reason,
		Location:     m.Location,
		Reference:    m.Reference,
		CreatedAt:    fixedNow,
	})
	return &domain.Response{Success: true, Data: raw}, nil
}

type mockApplier struct {
	mock.Mock
}

func (m *mockApplier) ApplyLocalDelta(ctx context.Context, productID int64, delta int) error {
	return m.Called(ctx, productID, delta).Error(0)
}

func (m *mockApplier) ClearProductCache(ctx context.Context, productID int64) error {
	return m.Called(ctx, productID).Error(0)
}

type notification struct {
	Kind    domain.NotificationKind
	Message string
	ID      string
}

type recordingNotifier struct {
	mu        sync.Mutex
	sent      []notification
	dismissed []string
}

func (n *recordingNotifier) Notify(_ context.Context, kind domain.NotificationKind, message string, opts port.NotifyOptions) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{Kind: kind, Message: message, ID: opts.ID})
}

func (n *recordingNotifier) DismissLoading(_ context.Context, id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dismissed = append(n.dismissed, id)
}

func (n *recordingNotifier) kinds() []domain.NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.NotificationKind, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.Kind)
	}
	return out
}

type harness struct {
	svc      *InventoryService
	backend  *fakeRequester
	notifier *recordingNotifier
	cache    *storage.MemoryCache
	ledger   *storage.MemoryLedger
}

func newHarness(opts ...Option) *harness {
	h := &harness{
		backend:  newFakeRequester(),
		notifier: &recordingNotifier{},
		cache:    storage.NewMemoryCache(DefaultCacheTTL),
		ledger:   storage.NewMemoryLedger(),
	}
	opts = append([]Option{WithClock(func() time.Time { return fixedNow }), WithBatchDelay(0)}, opts...)
	h.svc = NewInventoryService(h.backend, h.notifier, h.cache, h.ledger, opts...)
	return h
}

func (h *harness) seed(t *testing.T, key string, v any) {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, h.cache.Set(context.Background(), key, raw, time.Minute))
}
