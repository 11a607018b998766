package dynamic

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"catalog-service/internal/cache"
	"catalog-service/internal/model"
	"catalog-service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// brokenCache fails every operation
type brokenCache struct {
	sets int
}

func (b *brokenCache) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("cache offline")
}

func (b *brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	b.sets++
	return errors.New("cache offline")
}

func (b *brokenCache) Delete(context.Context, string) error { return errors.New("cache offline") }

func (b *brokenCache) DropPrefix(context.Context, string) error { return errors.New("cache offline") }

func (b *brokenCache) Close() error { return nil }

func seededStore() *fakeStore {
	store := newFakeStore()
	store.cities[1] = &model.City{ID: 1, Name: "Moscow"}
	store.warehouses[1] = []int64{10}
	store.orgs[500] = 50
	store.prices = []model.Price{
		{ID: 1, ProductID: 1, Price: dec("100"), IsBase: true, ValidFrom: lastYear},
		{ID: 2, ProductID: 2, Price: dec("40"), IsBase: true, ValidFrom: lastYear},
		{ID: 3, ProductID: 2, Price: dec("30"), ValidFrom: lastMonth, ValidTo: timePtr(nextWeek)},
	}
	store.contracts = []model.ClientPrice{
		{ID: 1, OrgID: 50, ProductID: 1, Price: dec("95"), ValidFrom: lastYear},
	}
	store.balances[1] = []BalanceRow{{WarehouseID: 10, Name: "Central", IsActive: true, Quantity: 5, Reserved: 1}}
	store.balances[2] = []BalanceRow{{WarehouseID: 20, Name: "Remote", IsActive: true, Quantity: 5}}
	return store
}

func newTestCache(t *testing.T) *cache.BadgerStore {
	t.Helper()
	c, err := cache.OpenBadger("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func newTestService(t *testing.T, store Store, c cache.Store, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithClock(fixedNow), WithLocation(time.UTC), WithLogger(zap.NewNop())}, opts...)
	svc, err := NewService(store, c, opts...)
	require.NoError(t, err)
	return svc
}

func TestServiceResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves every product", func(t *testing.T) {
		svc := newTestService(t, seededStore(), newTestCache(t))

		got := svc.Resolve(ctx, []int64{2, 1, 2, -3, 0}, 1, nil)

		require.Len(t, got, 2)
		first := got[1]
		assert.Equal(t, PriceTypeBase, first.Price.PriceType)
		assert.Equal(t, int64(4), first.Stock.Quantity)
		assert.True(t, first.Available)
		assert.Equal(t, DeliveryTypeStock, first.Delivery.Type)

		second := got[2]
		assert.Equal(t, PriceTypeSpecial, second.Price.PriceType)
		assert.Equal(t, int64(25), second.Price.DiscountPercent)
		assert.False(t, second.Available)
		assert.Equal(t, DeliveryTypeOrder, second.Delivery.Type)
	})

	t.Run("contract price for linked user", func(t *testing.T) {
		store := seededStore()
		svc := newTestService(t, store, nil)
		user := int64(500)

		got := svc.Resolve(ctx, []int64{1, 2}, 1, &user)

		assert.Equal(t, PriceTypeClient, got[1].Price.PriceType)
		assert.True(t, got[1].Price.Final.Equal(dec("95")))
		assert.Equal(t, PriceTypeSpecial, got[2].Price.PriceType)
		assert.Equal(t, 1, store.orgCalls)
	})

	t.Run("same ids in another order hit the cache", func(t *testing.T) {
		store := seededStore()
		svc := newTestService(t, store, newTestCache(t))

		first := svc.Resolve(ctx, []int64{1, 2}, 1, nil)
		calls := store.priceCallCount()
		second := svc.Resolve(ctx, []int64{2, 1, 1}, 1, nil)

		assert.Equal(t, calls, store.priceCallCount())
		assert.Equal(t, first[1].Stock, second[1].Stock)
		assert.True(t, first[2].Price.Final.Equal(*second[2].Price.Final))
		assert.Equal(t, first[2].Delivery, second[2].Delivery)
	})

	t.Run("different user is a different batch", func(t *testing.T) {
		store := seededStore()
		svc := newTestService(t, store, newTestCache(t))
		user := int64(500)

		svc.Resolve(ctx, []int64{1}, 1, nil)
		calls := store.priceCallCount()
		got := svc.Resolve(ctx, []int64{1}, 1, &user)

		assert.Equal(t, PriceTypeClient, got[1].Price.PriceType)
		assert.Greater(t, store.priceCallCount()+store.orgCalls, calls)
	})

	t.Run("empty batch", func(t *testing.T) {
		svc := newTestService(t, seededStore(), nil)
		got := svc.Resolve(ctx, []int64{0, -1}, 1, nil)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("oversized batch gets default state", func(t *testing.T) {
		store := seededStore()
		svc := newTestService(t, store, nil, WithMaxBatch(2))

		got := svc.Resolve(ctx, []int64{1, 2, 3}, 1, nil)

		require.Len(t, got, 3)
		for _, state := range got {
			assert.Equal(t, DefaultState(), state)
		}
		assert.Zero(t, store.priceCallCount())
	})

	t.Run("unknown city gets uniform default state", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		svc := newTestService(t, seededStore(), nil, WithLogger(zap.New(core)))

		got := svc.Resolve(ctx, []int64{1, 2}, 404, nil)

		require.Len(t, got, 2)
		assert.Equal(t, DefaultState(), got[1])
		assert.Equal(t, DefaultState(), got[2])
		assert.Equal(t, PriceTypeNone, got[1].Price.PriceType)
		assert.Equal(t, "check availability", got[1].Delivery.Text)
		assert.Equal(t, 1, logs.FilterMessage("Dynamic data requested for unknown city").Len())
	})

	t.Run("data error defaults only that product", func(t *testing.T) {
		store := seededStore()
		store.prices = append(store.prices, model.Price{ID: 9, ProductID: 3, Price: dec("-1"), IsBase: true, ValidFrom: lastYear})
		svc := newTestService(t, store, nil)

		got := svc.Resolve(ctx, []int64{1, 3}, 1, nil)

		assert.Equal(t, DefaultState(), got[3])
		assert.Equal(t, PriceTypeBase, got[1].Price.PriceType)
	})

	t.Run("store failure defaults the batch and skips the cache", func(t *testing.T) {
		store := seededStore()
		store.pricesErr[2] = errors.New("connection reset")
		c := newTestCache(t)
		svc := newTestService(t, store, c)

		got := svc.Resolve(ctx, []int64{1, 2}, 1, nil)

		assert.Equal(t, DefaultState(), got[1])
		assert.Equal(t, DefaultState(), got[2])
		_, err := c.Get(ctx, CacheKey([]int64{1, 2}, 1, nil))
		assert.ErrorIs(t, err, cache.ErrCacheMiss)
	})

	t.Run("city lookup failure defaults the batch", func(t *testing.T) {
		store := seededStore()
		store.cityErr = errors.New("timeout")
		svc := newTestService(t, store, nil)

		got := svc.Resolve(ctx, []int64{1}, 1, nil)
		assert.Equal(t, DefaultState(), got[1])
	})

	t.Run("broken cache still computes", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		broken := &brokenCache{}
		svc := newTestService(t, seededStore(), broken, WithLogger(zap.New(core)))

		got := svc.Resolve(ctx, []int64{1}, 1, nil)

		assert.Equal(t, PriceTypeBase, got[1].Price.PriceType)
		assert.Equal(t, 1, broken.sets)
		assert.Equal(t, 1, logs.FilterMessage("Dynamic data cache read failed").Len())
		assert.Equal(t, 1, logs.FilterMessage("Dynamic data cache write failed").Len())
	})

	t.Run("panic defaults the batch", func(t *testing.T) {
		svc := newTestService(t, panicStore{seededStore()}, nil)

		got := svc.Resolve(ctx, []int64{1}, 1, nil)
		assert.Equal(t, DefaultState(), got[1])
	})
}

// panicStore panics on balance lookups
type panicStore struct {
	*fakeStore
}

func (panicStore) Balances(context.Context, int64) ([]BalanceRow, error) {
	panic("unexpected nil")
}

func TestCacheKey(t *testing.T) {
	user := int64(7)
	key := CacheKey(NormalizeIDs([]int64{3, 1, 2}), 5, &user)

	assert.True(t, strings.HasPrefix(key, CachePrefix))
	assert.Len(t, key, len(CachePrefix)+32)
	assert.Equal(t, key, CacheKey(NormalizeIDs([]int64{2, 3, 1, 3}), 5, &user))
	assert.NotEqual(t, key, CacheKey(NormalizeIDs([]int64{1, 2, 3}), 5, nil))
	assert.NotEqual(t, key, CacheKey(NormalizeIDs([]int64{1, 2, 3}), 6, &user))

	zero := int64(0)
	assert.Equal(t, CacheKey([]int64{1}, 1, nil), CacheKey([]int64{1}, 1, &zero))
}

func TestNormalizeIDs(t *testing.T) {
	assert.Equal(t, []int64{1, 2, 9}, NormalizeIDs([]int64{9, 2, 0, -4, 1, 2, 9}))
	assert.Empty(t, NormalizeIDs(nil))
}

func TestClearCache(t *testing.T) {
	ctx := context.Background()
	store := seededStore()
	c := newTestCache(t)
	svc := newTestService(t, store, c)

	svc.Resolve(ctx, []int64{1}, 1, nil)
	require.NoError(t, svc.ClearCache(ctx))

	calls := store.priceCallCount()
	svc.Resolve(ctx, []int64{1}, 1, nil)
	assert.Greater(t, store.priceCallCount(), calls)

	noCache := newTestService(t, store, nil)
	assert.ErrorIs(t, noCache.ClearCache(ctx), ErrCacheRequired)
}

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(nil, nil)
	assert.ErrorIs(t, err, ErrStoreRequired)

	_, err = NewService(newFakeStore(), nil, WithTTL(0))
	assert.Error(t, err)

	_, err = NewService(newFakeStore(), nil, WithMaxBatch(-1))
	assert.Error(t, err)
}

// slowStore adds a fixed latency to every product lookup
type slowStore struct {
	*fakeStore
	delay time.Duration
}

func (s slowStore) wait(ctx context.Context) error {
	select {
	case <-time.After(s.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s slowStore) Prices(ctx context.Context, productID int64) ([]model.Price, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.fakeStore.Prices(ctx, productID)
}

func (s slowStore) CityWarehouseIDs(ctx context.Context, cityID int64) ([]int64, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.fakeStore.CityWarehouseIDs(ctx, cityID)
}

func (s slowStore) Balances(ctx context.Context, productID int64) ([]BalanceRow, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.fakeStore.Balances(ctx, productID)
}

func TestServiceTimeoutAppliesPerProduct(t *testing.T) {
	store := newFakeStore()
	store.cities[1] = &model.City{ID: 1, Name: "Moscow"}
	store.warehouses[1] = []int64{10}
	ids := make([]int64, 0, 80)
	for id := int64(1); id <= 80; id++ {
		ids = append(ids, id)
		store.prices = append(store.prices, model.Price{ID: id, ProductID: id, Price: dec("10"), IsBase: true, ValidFrom: lastYear})
		store.balances[id] = []BalanceRow{{WarehouseID: 10, IsActive: true, Quantity: 2}}
	}

	// each product needs about 6ms, the whole batch about 480ms
	svc := newTestService(t, slowStore{fakeStore: store, delay: 2 * time.Millisecond}, nil, WithTimeout(100*time.Millisecond))

	got := svc.Resolve(context.Background(), ids, 1, nil)

	require.Len(t, got, 80)
	for _, id := range ids {
		assert.Equal(t, PriceTypeBase, got[id].Price.PriceType, "product %d", id)
		assert.True(t, got[id].Available, "product %d", id)
	}
}

func TestServiceLogsWithRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	ctx := logger.WithContext(context.Background(), zap.New(core).With(zap.String("request_id", "req-1")))
	svc := newTestService(t, seededStore(), nil)

	svc.Resolve(ctx, []int64{1}, 404, nil)

	entries := logs.FilterMessage("Dynamic data requested for unknown city").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
}
