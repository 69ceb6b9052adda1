package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/rl1809/inventory-sync/internal/core/domain"
	"github.com/rl1809/inventory-sync/internal/platform/observability"
	"github.com/rl1809/inventory-sync/internal/port"
)

// LogNotifier surfaces notifications as structured log entries. It is the
// notification sink for headless callers.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notify")}
}

func (n *LogNotifier) Notify(ctx context.Context, kind domain.NotificationKind, message string, opts port.NotifyOptions) {
	log := observability.L(ctx, n.logger)
	fields := []zap.Field{zap.String("kind", string(kind))}
	if opts.ID != "" {
		fields = append(fields, zap.String("notification_id", opts.ID))
	}

	switch kind {
	case domain.NotifyError:
		log.Error(message, fields...)
	case domain.NotifyWarning:
		log.Warn(message, fields...)
	case domain.NotifyLoading:
		log.Debug(message, fields...)
	default:
		log.Info(message, fields...)
	}
}

func (n *LogNotifier) DismissLoading(ctx context.Context, id string) {
	observability.L(ctx, n.logger).Debug("loading dismissed", zap.String("notification_id", id))
}
