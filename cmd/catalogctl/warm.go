package main

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"catalog-service/internal/dynamic"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// batchResolver computes and caches availability batches
type batchResolver interface {
	Resolve(ctx context.Context, productIDs []int64, cityID int64, userID *int64) map[int64]dynamic.ProductDynamicState
	MaxBatch() int
}

// warm resolves every product for every city in anonymous batches of
// batchSize, running up to workers batches at once. It returns the number of
// batches resolved.
func warm(ctx context.Context, r batchResolver, productIDs, cityIDs []int64, batchSize, workers int, log *zap.Logger) (int, error) {
	if batchSize <= 0 || batchSize > r.MaxBatch() {
		return 0, fmt.Errorf("batch size must be between 1 and %d", r.MaxBatch())
	}
	if workers <= 0 {
		return 0, fmt.Errorf("workers must be positive")
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return 0, err
	}
	defer pool.Release()

	var (
		wg   sync.WaitGroup
		done atomic.Int64
	)
	for _, cityID := range cityIDs {
		for start := 0; start < len(productIDs); start += batchSize {
			if err := ctx.Err(); err != nil {
				wg.Wait()
				return int(done.Load()), err
			}

			batch := productIDs[start:min(start+batchSize, len(productIDs))]
			cityID := cityID
			wg.Add(1)
			if err := pool.Submit(func() {
				defer wg.Done()
				r.Resolve(ctx, batch, cityID, nil)
				if n := done.Add(1); n%100 == 0 {
					log.Info("Cache warm-up progress", zap.Int64("batches", n))
				}
			}); err != nil {
				wg.Done()
				wg.Wait()
				return int(done.Load()), fmt.Errorf("failed to submit batch: %w", err)
			}
		}
	}
	wg.Wait()

	return int(done.Load()), nil
}
