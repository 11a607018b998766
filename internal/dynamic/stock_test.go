package dynamic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockAggregator(t *testing.T) {
	ctx := context.Background()

	store := newFakeStore()
	store.warehouses[1] = []int64{10, 11, 12, 13}
	store.balances[100] = []BalanceRow{
		{WarehouseID: 10, Name: "Central", Address: "Main st 1", IsActive: true, Quantity: 5, Reserved: 1},
		{WarehouseID: 11, Name: "North", IsActive: true, Quantity: 10, Reserved: 2},
		// reserved exceeds quantity and contributes nothing
		{WarehouseID: 12, Name: "Overbooked", IsActive: true, Quantity: 3, Reserved: 7},
		{WarehouseID: 13, Name: "Closed", IsActive: false, Quantity: 50, Reserved: 0},
		{WarehouseID: 20, Name: "Other city", IsActive: true, Quantity: 8, Reserved: 0},
	}

	res, err := NewStockAggregator(store).Resolve(ctx, 100, 1)
	require.NoError(t, err)

	assert.Equal(t, int64(12), res.Quantity)
	assert.Equal(t, []WarehouseStock{
		{ID: 11, Name: "North", Quantity: 8},
		{ID: 10, Name: "Central", Address: "Main st 1", Quantity: 4},
	}, res.Warehouses)
	assert.Equal(t, int64(10), res.Reserved)
	assert.Equal(t, int64(70), res.Total)
}

func TestStockAggregatorEdgeCases(t *testing.T) {
	ctx := context.Background()

	t.Run("city without warehouses", func(t *testing.T) {
		store := newFakeStore()
		store.balances[1] = []BalanceRow{{WarehouseID: 10, IsActive: true, Quantity: 4}}

		res, err := NewStockAggregator(store).Resolve(ctx, 1, 99)
		require.NoError(t, err)
		assert.Zero(t, res.Quantity)
		assert.NotNil(t, res.Warehouses)
		assert.Empty(t, res.Warehouses)
		assert.Equal(t, int64(4), res.Total)
	})

	t.Run("only overbooked stock floors at zero", func(t *testing.T) {
		store := newFakeStore()
		store.warehouses[1] = []int64{10}
		store.balances[1] = []BalanceRow{{WarehouseID: 10, IsActive: true, Quantity: 2, Reserved: 9}}

		res, err := NewStockAggregator(store).Resolve(ctx, 1, 1)
		require.NoError(t, err)
		assert.Zero(t, res.Quantity)
		assert.Zero(t, res.Total)
		assert.Equal(t, int64(9), res.Reserved)
	})

	t.Run("equal quantities ordered by id", func(t *testing.T) {
		store := newFakeStore()
		store.warehouses[1] = []int64{10, 5}
		store.balances[1] = []BalanceRow{
			{WarehouseID: 10, IsActive: true, Quantity: 3},
			{WarehouseID: 5, IsActive: true, Quantity: 3},
		}

		res, err := NewStockAggregator(store).Resolve(ctx, 1, 1)
		require.NoError(t, err)
		require.Len(t, res.Warehouses, 2)
		assert.Equal(t, int64(5), res.Warehouses[0].ID)
	})
}
