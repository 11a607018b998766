package dynamic

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"catalog-service/internal/cache"
	"catalog-service/internal/model"
	"catalog-service/pkg/logger"
	"catalog-service/pkg/metrics"

	"github.com/go-crypt/x/blake2b"
	"go.uber.org/zap"
)

const (
	// CachePrefix prefixes every batch cache key
	CachePrefix = "dynamic:"

	DefaultTTL      = 300 * time.Second
	DefaultMaxBatch = 1000
	DefaultTimeout  = 5 * time.Second

	cacheKeySize = 16
)

// Service resolves price, stock and delivery for batches of products and
// caches each batch for a fixed TTL. Staleness is bounded by the TTL only.
type Service struct {
	store    Store
	cache    cache.Store
	pricing  *PricingResolver
	stock    *StockAggregator
	delivery *DeliveryEstimator

	ttl      time.Duration
	maxBatch int
	timeout  time.Duration
	now      func() time.Time
	loc      *time.Location
	logger   *zap.Logger
}

// Option configures a Service.
type Option func(*Service) error

// WithTTL sets how long a resolved batch is cached
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) error {
		if ttl <= 0 {
			return fmt.Errorf("cache ttl must be positive, got %s", ttl)
		}
		s.ttl = ttl
		return nil
	}
}

// WithMaxBatch sets the largest batch that is resolved
func WithMaxBatch(n int) Option {
	return func(s *Service) error {
		if n <= 0 {
			return fmt.Errorf("max batch must be positive, got %d", n)
		}
		s.maxBatch = n
		return nil
	}
}

// WithTimeout bounds each store lookup, each product resolution and each
// cache call. Default is DefaultTimeout.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Service) error {
		if timeout > 0 {
			s.timeout = timeout
		}
		return nil
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) error {
		if now != nil {
			s.now = now
		}
		return nil
	}
}

// WithLocation sets the time zone cutoff times are evaluated in
func WithLocation(loc *time.Location) Option {
	return func(s *Service) error {
		if loc != nil {
			s.loc = loc
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is zap.L().
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// NewService creates a Service. A nil cache disables caching.
func NewService(store Store, c cache.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}

	s := &Service{
		store:    store,
		cache:    c,
		ttl:      DefaultTTL,
		maxBatch: DefaultMaxBatch,
		timeout:  DefaultTimeout,
		now:      time.Now,
		loc:      time.Local,
		logger:   zap.L(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	s.pricing = NewPricingResolver(store, s.now)
	s.stock = NewStockAggregator(store)
	s.delivery = NewDeliveryEstimator(store, s.stock, s.now, s.loc, s.logger)
	return s, nil
}

// MaxBatch returns the largest batch Resolve computes
func (s *Service) MaxBatch() int {
	return s.maxBatch
}

// Resolve returns the dynamic state of every product in productIDs for cityID
// and userID (nil for anonymous). Ids that are not positive are ignored.
// Resolve never fails: problems produce default states and are logged.
func (s *Service) Resolve(ctx context.Context, productIDs []int64, cityID int64, userID *int64) (out map[int64]ProductDynamicState) {
	ids := NormalizeIDs(productIDs)
	log := logger.FromContextOr(ctx, s.logger).With(zap.Int64("city_id", cityID), zap.Int("batch_size", len(ids)))

	if len(ids) == 0 {
		log.Warn("Dynamic data requested without valid product ids")
		return map[int64]ProductDynamicState{}
	}
	if len(ids) > s.maxBatch {
		log.Warn("Dynamic data batch too large", zap.Int("max_batch", s.maxBatch))
		metrics.DynamicDefaults.WithLabelValues("oversized_batch").Add(float64(len(ids)))
		return defaultBatch(ids)
	}
	metrics.DynamicBatchSize.Observe(float64(len(ids)))

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("Dynamic data resolution panicked", zap.Any("panic", rec))
			metrics.DynamicDefaults.WithLabelValues("internal_error").Add(float64(len(ids)))
			out = defaultBatch(ids)
		}
	}()

	cityCtx, cancel := context.WithTimeout(ctx, s.timeout)
	city, err := s.store.City(cityCtx, cityID)
	cancel()
	if errors.Is(err, ErrNotFound) {
		log.Warn("Dynamic data requested for unknown city")
		metrics.DynamicDefaults.WithLabelValues("invalid_city").Add(float64(len(ids)))
		return defaultBatch(ids)
	}
	if err != nil {
		log.Error("Failed to load city", zap.Error(err))
		metrics.DynamicDefaults.WithLabelValues("internal_error").Add(float64(len(ids)))
		return defaultBatch(ids)
	}

	key := CacheKey(ids, cityID, userID)
	if cached, ok := s.readCache(ctx, key, log); ok {
		return cached
	}

	batch, err := s.compute(ctx, ids, city, userID, log)
	if err != nil {
		log.Error("Failed to resolve dynamic data", zap.Error(err))
		metrics.DynamicDefaults.WithLabelValues("internal_error").Add(float64(len(ids)))
		return defaultBatch(ids)
	}

	s.writeCache(ctx, key, batch, log)
	return batch
}

func (s *Service) compute(ctx context.Context, ids []int64, city *model.City, userID *int64, log *zap.Logger) (map[int64]ProductDynamicState, error) {
	var orgID *int64
	if userID != nil && *userID > 0 {
		orgCtx, cancel := context.WithTimeout(ctx, s.timeout)
		var err error
		orgID, err = s.store.OrgIDForUser(orgCtx, *userID)
		cancel()
		if err != nil {
			return nil, err
		}
	}

	batch := make(map[int64]ProductDynamicState, len(ids))
	for _, id := range ids {
		state, err := s.resolveProduct(ctx, id, city, orgID)
		if errors.Is(err, ErrDataError) {
			log.Warn("Malformed data for product, using default state",
				zap.Int64("product_id", id),
				zap.Error(err))
			metrics.DynamicDefaults.WithLabelValues("data_error").Inc()
			batch[id] = DefaultState()
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", id, err)
		}
		batch[id] = state
	}
	return batch, nil
}

// resolveProduct runs under its own deadline of s.timeout
func (s *Service) resolveProduct(ctx context.Context, productID int64, city *model.City, orgID *int64) (ProductDynamicState, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	price, err := s.pricing.Resolve(ctx, productID, orgID)
	if err != nil {
		return ProductDynamicState{}, err
	}
	stock, err := s.stock.Resolve(ctx, productID, city.ID)
	if err != nil {
		return ProductDynamicState{}, err
	}
	return ProductDynamicState{
		Price:     price,
		Stock:     stock,
		Delivery:  s.delivery.Estimate(city, stock),
		Available: stock.Quantity > 0,
	}, nil
}

func (s *Service) readCache(ctx context.Context, key string, log *zap.Logger) (map[int64]ProductDynamicState, bool) {
	if s.cache == nil {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	payload, err := s.cache.Get(ctx, key)
	if errors.Is(err, cache.ErrCacheMiss) {
		metrics.DynamicCacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	if err != nil {
		log.Warn("Dynamic data cache read failed", zap.Error(err))
		metrics.DynamicCacheLookups.WithLabelValues("error").Inc()
		return nil, false
	}

	var batch map[int64]ProductDynamicState
	if err := json.Unmarshal(payload, &batch); err != nil {
		log.Warn("Dynamic data cache entry unreadable", zap.Error(err))
		metrics.DynamicCacheLookups.WithLabelValues("error").Inc()
		return nil, false
	}
	metrics.DynamicCacheLookups.WithLabelValues("hit").Inc()
	return batch, true
}

func (s *Service) writeCache(ctx context.Context, key string, batch map[int64]ProductDynamicState, log *zap.Logger) {
	if s.cache == nil {
		return
	}

	payload, err := json.Marshal(batch)
	if err != nil {
		log.Warn("Failed to encode dynamic data for cache", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.cache.Set(ctx, key, payload, s.ttl); err != nil {
		log.Warn("Dynamic data cache write failed", zap.Error(err))
	}
}

// ClearCache drops every cached batch
func (s *Service) ClearCache(ctx context.Context) error {
	if s.cache == nil {
		return ErrCacheRequired
	}
	return s.cache.DropPrefix(ctx, CachePrefix)
}

// NormalizeIDs drops non-positive ids, removes duplicates and sorts ascending
func NormalizeIDs(productIDs []int64) []int64 {
	ids := make([]int64, 0, len(productIDs))
	for _, id := range productIDs {
		if id > 0 {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// CacheKey derives the batch cache key. ids must already be normalized.
func CacheKey(ids []int64, cityID int64, userID *int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	var user int64
	if userID != nil {
		user = *userID
	}

	h, _ := blake2b.New(cacheKeySize, nil)
	fmt.Fprintf(h, "%s:%d:%d", strings.Join(parts, ","), cityID, user)
	return CachePrefix + hex.EncodeToString(h.Sum(nil))
}
