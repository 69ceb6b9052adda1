package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{Enabled: false, ServiceName: "inventory"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestL_WithoutSpan(t *testing.T) {
	base := zap.NewNop()
	assert.Same(t, base, L(context.Background(), base))
}
