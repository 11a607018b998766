package handler

import (
	"context"

	"catalog-service/internal/dynamic"
	"catalog-service/internal/search"
)

// Searcher serves catalog search and autocomplete
type Searcher interface {
	Search(ctx context.Context, params search.Params) search.Response
	Autocomplete(ctx context.Context, prefix string, limit int) []search.Suggestion
	IndexHealthy(ctx context.Context) bool
}

// DynamicResolver resolves price, stock and delivery for product batches
type DynamicResolver interface {
	Resolve(ctx context.Context, productIDs []int64, cityID int64, userID *int64) map[int64]dynamic.ProductDynamicState
	MaxBatch() int
}

var (
	_ Searcher        = (*search.Router)(nil)
	_ DynamicResolver = (*dynamic.Service)(nil)
)
