package service

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/inventory-sync/internal/core/domain"
)

func TestPhysicalInventory_NoDifference(t *testing.T) {
	h := newHarness()
	h.seed(t, "product_5_stock", domain.StockLevel{ProductID: 5, Quantity: 20})

	res, err := h.svc.PerformPhysicalInventory(context.Background(), PhysicalCountInput{ProductID: 5, CountedQuantity: 20})
	require.NoError(t, err)
	assert.Zero(t, res.Difference)
	assert.False(t, res.Adjusted)
	assert.Nil(t, res.Movement)
	assert.Empty(t, h.backend.Calls())
}

func TestPhysicalInventory_RecordsDifference(t *testing.T) {
	h := newHarness()
	h.seed(t, "product_5_stock", domain.StockLevel{ProductID: 5, Quantity: 20})
	h.backend.on(http.MethodPost, pathMovements, echoMovement)

	res, err := h.svc.PerformPhysicalInventory(context.Background(), PhysicalCountInput{
		ProductID: 5, CountedQuantity: 17, Notes: "shelf B",
	})
	require.NoError(t, err)
	assert.Equal(t, -3, res.Difference)
	assert.True(t, res.Adjusted)

	calls := h.backend.Calls()
	require.Len(t, calls, 1)
	m := calls[0].Body.(domain.Movement)
	assert.Equal(t, domain.MovementOut, m.MovementType)
	assert.Equal(t, 3, m.Quantity)
	assert.Equal(t, "Physical count: counted 17, system 20. shelf B", m.Reason)
}

func TestPhysicalInventory_ReportOnly(t *testing.T) {
	h := newHarness()
	h.seed(t, "product_5_stock", domain.StockLevel{ProductID: 5, Quantity: 20})

	res, err := h.svc.PerformPhysicalInventory(context.Background(), PhysicalCountInput{
		ProductID: 5, CountedQuantity: 25, ReportOnly: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Difference)
	assert.False(t, res.Adjusted)
	assert.Empty(t, h.backend.Calls())
}

func transferInput() TransferInput {
	return TransferInput{ProductID: 11, FromLocation: "WH-A", ToLocation: "WH-B", Quantity: 4}
}

func TestTransferStock_Success(t *testing.T) {
	h := newHarness()
	h.backend.on(http.MethodPost, pathMovements, echoMovement)

	res, err := h.svc.TransferStock(context.Background(), transferInput())
	require.NoError(t, err)
	require.NotNil(t, res.Out)
	require.NotNil(t, res.In)
	assert.Equal(t, "WH-A", res.Out.Location)
	assert.Equal(t, "WH-B", res.In.Location)
	assert.Equal(t, res.Reference+"_OUT", res.Out.Reference)
	assert.Equal(t, res.Reference+"_IN", res.In.Reference)
}

func TestTransferStock_CompensatesFailedIn(t *testing.T) {
	h := newHarness()
	var n atomic.Int32
	h.backend.on(http.MethodPost, pathMovements, func(body any) (*domain.Response, error) {
		if n.Add(1) == 2 {
			return nil, errBackend
		}
		return echoMovement(body)
	})

	_, err := h.svc.TransferStock(context.Background(), transferInput())
	require.ErrorIs(t, err, ErrTransferReverted)
	require.ErrorIs(t, err, errBackend)

	calls := h.backend.Calls()
	require.Len(t, calls, 3)
	revert := calls[2].Body.(domain.Movement)
	assert.Equal(t, domain.MovementIn, revert.MovementType)
	assert.Equal(t, "WH-A", revert.Location)
	assert.Equal(t, 4, revert.Quantity)
	assert.Contains(t, revert.Reference, "TRANSFER_REVERT_")
}

func TestTransferStock_FailedOutIsNotCompensated(t *testing.T) {
	h := newHarness()
	h.backend.on(http.MethodPost, pathMovements, fail(errBackend))

	_, err := h.svc.TransferStock(context.Background(), transferInput())
	require.ErrorIs(t, err, errBackend)
	assert.False(t, errors.Is(err, ErrTransferReverted))
	assert.Len(t, h.backend.Calls(), 1)
}

func TestTransferStock_CompensationFailure(t *testing.T) {
	h := newHarness()
	var n atomic.Int32
	h.backend.on(http.MethodPost, pathMovements, func(body any) (*domain.Response, error) {
		if n.Add(1) == 1 {
			return echoMovement(body)
		}
		return nil, errBackend
	})

	_, err := h.svc.TransferStock(context.Background(), transferInput())
	require.ErrorIs(t, err, ErrCompensationFailed)
	assert.Len(t, h.backend.Calls(), 3)
}

func TestTransferStock_Invalid(t *testing.T) {
	h := newHarness()
	in := transferInput()
	in.ToLocation = in.FromLocation

	_, err := h.svc.TransferStock(context.Background(), in)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, h.backend.Calls())
}
