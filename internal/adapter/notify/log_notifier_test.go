package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rl1809/inventory-sync/internal/core/domain"
	"github.com/rl1809/inventory-sync/internal/port"
)

func TestLogNotifier_Levels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	n := NewLogNotifier(zap.New(core))
	ctx := context.Background()

	n.Notify(ctx, domain.NotifyError, "boom", port.NotifyOptions{})
	n.Notify(ctx, domain.NotifyWarning, "careful", port.NotifyOptions{})
	n.Notify(ctx, domain.NotifyLoading, "working", port.NotifyOptions{ID: "mv_1"})
	n.Notify(ctx, domain.NotifySuccess, "done", port.NotifyOptions{})
	n.DismissLoading(ctx, "mv_1")

	entries := logs.AllUntimed()
	assert.Len(t, entries, 5)
	assert.Equal(t, zap.ErrorLevel, entries[0].Level)
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, "mv_1", entries[2].ContextMap()["notification_id"])
	assert.Equal(t, zap.InfoLevel, entries[3].Level)
	assert.Equal(t, "loading dismissed", entries[4].Message)
}
