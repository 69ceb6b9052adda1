package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSaga_CompensatesInReverse(t *testing.T) {
	var trail []string
	step := func(name string, failForward bool) SagaStep {
		return SagaStep{
			Name: name,
			Forward: func(context.Context) error {
				trail = append(trail, "do "+name)
				if failForward {
					return errors.New(name + " broke")
				}
				return nil
			},
			Compensate: func(context.Context) error {
				trail = append(trail, "undo "+name)
				return nil
			},
		}
	}

	err := NewSaga("test", zap.NewNop(), step("a", false), step("b", false), step("c", true)).Run(context.Background())

	var sagaErr *SagaError
	require.ErrorAs(t, err, &sagaErr)
	assert.Equal(t, "c", sagaErr.Step)
	assert.Equal(t, []string{"b", "a"}, sagaErr.Compensated)
	assert.NoError(t, sagaErr.CompensationErr)
	assert.Equal(t, []string{"do a", "do b", "do c", "undo b", "undo a"}, trail)
}

func TestSaga_CompensationRunsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var compensatedWith error = errors.New("not called")

	err := NewSaga("test", zap.NewNop(),
		SagaStep{
			Name:    "first",
			Forward: func(context.Context) error { return nil },
			Compensate: func(ctx context.Context) error {
				compensatedWith = ctx.Err()
				return nil
			},
		},
		SagaStep{
			Name: "second",
			Forward: func(context.Context) error {
				cancel()
				return context.Canceled
			},
		},
	).Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, compensatedWith)
}

func TestSaga_ReportsCompensationFailure(t *testing.T) {
	undoErr := errors.New("undo broke")
	err := NewSaga("test", zap.NewNop(),
		SagaStep{
			Name:       "first",
			Forward:    func(context.Context) error { return nil },
			Compensate: func(context.Context) error { return undoErr },
		},
		SagaStep{
			Name:    "second",
			Forward: func(context.Context) error { return errors.New("boom") },
		},
	).Run(context.Background())

	require.ErrorIs(t, err, undoErr)
	var sagaErr *SagaError
	require.ErrorAs(t, err, &sagaErr)
	assert.Empty(t, sagaErr.Compensated)
}
