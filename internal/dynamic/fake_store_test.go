package dynamic

import (
	"context"
	"fmt"
	"sync"

	"catalog-service/internal/model"
)

// fakeStore is an in-memory Store for tests
type fakeStore struct {
	mu sync.Mutex

	cities     map[int64]*model.City
	orgs       map[int64]int64
	contracts  []model.ClientPrice
	prices     []model.Price
	balances   map[int64][]BalanceRow
	warehouses map[int64][]int64

	cityErr    error
	pricesErr  map[int64]error
	orgCalls   int
	priceCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		cities:     map[int64]*model.City{},
		orgs:       map[int64]int64{},
		balances:   map[int64][]BalanceRow{},
		warehouses: map[int64][]int64{},
		pricesErr:  map[int64]error{},
	}
}

func (f *fakeStore) City(_ context.Context, cityID int64) (*model.City, error) {
	if f.cityErr != nil {
		return nil, f.cityErr
	}
	city, ok := f.cities[cityID]
	if !ok {
		return nil, fmt.Errorf("city %d: %w", cityID, ErrNotFound)
	}
	return city, nil
}

func (f *fakeStore) OrgIDForUser(_ context.Context, userID int64) (*int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orgCalls++
	org, ok := f.orgs[userID]
	if !ok {
		return nil, nil
	}
	return &org, nil
}

func (f *fakeStore) ContractPrices(_ context.Context, orgID, productID int64) ([]model.ClientPrice, error) {
	var out []model.ClientPrice
	for _, c := range f.contracts {
		if c.OrgID == orgID && c.ProductID == productID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) Prices(_ context.Context, productID int64) ([]model.Price, error) {
	f.mu.Lock()
	f.priceCalls++
	f.mu.Unlock()
	if err := f.pricesErr[productID]; err != nil {
		return nil, err
	}
	var out []model.Price
	for _, p := range f.prices {
		if p.ProductID == productID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) Balances(_ context.Context, productID int64) ([]BalanceRow, error) {
	return f.balances[productID], nil
}

func (f *fakeStore) CityWarehouseIDs(_ context.Context, cityID int64) ([]int64, error) {
	return f.warehouses[cityID], nil
}

func (f *fakeStore) priceCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.priceCalls
}
