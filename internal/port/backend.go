package port

import (
	"context"

	"github.com/rl1809/inventory-sync/internal/core/domain"
)

// Requester sends one request to the inventory backend. A nil error means the
// backend answered with success.
type Requester interface {
	Request(ctx context.Context, method, path string, body any) (*domain.Response, error)
}

type NotifyOptions struct {
	// ID lets a later DismissLoading target this notification.
	ID string
}

type Notifier interface {
	Notify(ctx context.Context, kind domain.NotificationKind, message string, opts NotifyOptions)
	DismissLoading(ctx context.Context, id string)
}
