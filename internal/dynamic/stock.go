package dynamic

import (
	"context"
	"sort"
)

// StockAggregator sums net available stock of the warehouses serving a city.
type StockAggregator struct {
	store Store
}

// NewStockAggregator creates an aggregator reading from store
func NewStockAggregator(store Store) *StockAggregator {
	return &StockAggregator{store: store}
}

// Resolve returns the stock of productID for cityID. A city without mapped
// warehouses has zero local stock.
func (a *StockAggregator) Resolve(ctx context.Context, productID, cityID int64) (StockResolution, error) {
	warehouseIDs, err := a.store.CityWarehouseIDs(ctx, cityID)
	if err != nil {
		return StockResolution{}, err
	}
	balances, err := a.store.Balances(ctx, productID)
	if err != nil {
		return StockResolution{}, err
	}
	return aggregate(balances, warehouseIDs), nil
}

func aggregate(balances []BalanceRow, cityWarehouses []int64) StockResolution {
	local := make(map[int64]bool, len(cityWarehouses))
	for _, id := range cityWarehouses {
		local[id] = true
	}

	res := StockResolution{Warehouses: []WarehouseStock{}}
	for _, b := range balances {
		available := max(b.Quantity-b.Reserved, 0)
		res.Reserved += b.Reserved
		res.Total += available

		if !b.IsActive || !local[b.WarehouseID] || available == 0 {
			continue
		}
		res.Quantity += available
		res.Warehouses = append(res.Warehouses, WarehouseStock{
			ID:       b.WarehouseID,
			Name:     b.Name,
			Address:  b.Address,
			Quantity: available,
		})
	}

	sort.SliceStable(res.Warehouses, func(i, j int) bool {
		if res.Warehouses[i].Quantity != res.Warehouses[j].Quantity {
			return res.Warehouses[i].Quantity > res.Warehouses[j].Quantity
		}
		return res.Warehouses[i].ID < res.Warehouses[j].ID
	})
	return res
}
