package search

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"catalog-service/pkg/logger"
	"catalog-service/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const unavailableMessage = "search service temporarily unavailable"

// Router picks the backend that serves each request and never fails the caller.
//
// Listing requests (empty query) always go to the relational backend. Ranked
// requests go to the index backend while the health monitor reports it
// healthy, with a single fallback to the relational backend on error.
type Router struct {
	index      Backend
	suggester  Suggester
	relational Backend
	health     *HealthMonitor
	now        func() time.Time
	logger     *zap.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router) error

// WithIndexBackend sets the primary backend for ranked queries
func WithIndexBackend(index Backend) RouterOption {
	return func(r *Router) error {
		r.index = index
		if s, ok := index.(Suggester); ok && r.suggester == nil {
			r.suggester = s
		}
		return nil
	}
}

// WithSuggester sets the autocomplete source
func WithSuggester(s Suggester) RouterOption {
	return func(r *Router) error {
		r.suggester = s
		return nil
	}
}

// WithHealthMonitor sets the monitor consulted before using the index backend
func WithHealthMonitor(m *HealthMonitor) RouterOption {
	return func(r *Router) error {
		r.health = m
		return nil
	}
}

// WithRouterClock replaces time.Now, for tests.
func WithRouterClock(now func() time.Time) RouterOption {
	return func(r *Router) error {
		if now != nil {
			r.now = now
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is zap.L().
func WithLogger(logger *zap.Logger) RouterOption {
	return func(r *Router) error {
		if logger != nil {
			r.logger = logger
		}
		return nil
	}
}

// NewRouter creates a router. The relational backend is mandatory.
func NewRouter(relational Backend, opts ...RouterOption) (*Router, error) {
	if relational == nil {
		return nil, ErrBackendRequired
	}
	r := &Router{
		relational: relational,
		now:        time.Now,
		logger:     zap.L(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Search serves one page of results. Paging is clamped and unknown sort keys
// fall back to the default ordering.
func (r *Router) Search(ctx context.Context, params Params) Response {
	start := r.now()
	params = params.normalize()
	variants := Variants(params.Query)

	debug := &Debug{
		RequestID: uuid.NewString(),
		Variants:  variants,
	}
	log := logger.FromContextOr(ctx, r.logger).With(zap.String("search_request_id", debug.RequestID))

	var (
		result Result
		source string
		err    error
	)

	switch {
	case len(variants) == 0:
		source = SourceDatabase
		result, err = safeSearch(ctx, r.relational, params, nil)

	case r.IndexHealthy(ctx):
		source = SourceIndex
		result, err = safeSearch(ctx, r.index, params, variants)
		if err != nil {
			log.Warn("Index search failed, falling back to database",
				zap.String("query", params.Query),
				zap.Error(err))
			metrics.SearchFallbacks.Inc()
			debug.IndexError = err.Error()
			debug.FallbackUsed = true
			source = SourceFallback
			result, err = safeSearch(ctx, r.relational, params, variants)
		}

	default:
		debug.FallbackUsed = true
		source = SourceFallback
		result, err = safeSearch(ctx, r.relational, params, variants)
	}

	debug.Duration = r.now().Sub(start)
	debug.DurationMS = float64(debug.Duration.Microseconds()) / 1000

	if err != nil {
		log.Error("Search failed on every backend",
			zap.String("query", params.Query),
			zap.String("index_error", debug.IndexError),
			zap.Error(err))
		metrics.SearchRequests.WithLabelValues(SourceErrorFallback).Inc()
		return Response{
			Success:   false,
			Error:     unavailableMessage,
			ErrorCode: ErrorCodeUnavailable,
			Data: Data{
				Products: []Product{},
				Total:    0,
				Page:     params.Page,
				Limit:    params.Limit,
				Source:   SourceErrorFallback,
				Debug:    debug,
			},
		}
	}

	metrics.SearchRequests.WithLabelValues(source).Inc()
	metrics.SearchDuration.WithLabelValues(source).Observe(debug.Duration.Seconds())

	if result.Products == nil {
		result.Products = []Product{}
	}
	return Response{
		Success: true,
		Data: Data{
			Products: result.Products,
			Total:    result.Total,
			Page:     params.Page,
			Limit:    params.Limit,
			Source:   source,
			Debug:    debug,
		},
	}
}

// Autocomplete returns up to limit suggestions for prefix. It is served by the
// index only and returns an empty list on any failure.
func (r *Router) Autocomplete(ctx context.Context, prefix string, limit int) []Suggestion {
	prefix = sanitizeSuggestPrefix(prefix)
	if utf8.RuneCountInString(prefix) < minSuggestRunes {
		return []Suggestion{}
	}
	switch {
	case limit <= 0:
		limit = DefaultSuggestLimit
	case limit > MaxSuggestLimit:
		limit = MaxSuggestLimit
	}

	if r.suggester == nil || (r.health != nil && !r.health.IsHealthy(ctx)) {
		return []Suggestion{}
	}

	suggestions, err := safeSuggest(ctx, r.suggester, prefix, limit)
	if err != nil {
		logger.FromContextOr(ctx, r.logger).Warn("Autocomplete failed", zap.String("prefix", prefix), zap.Error(err))
		return []Suggestion{}
	}
	if suggestions == nil {
		return []Suggestion{}
	}
	return suggestions
}

// IndexHealthy reports whether ranked queries may use the index backend.
// Without a health monitor the index is assumed reachable.
func (r *Router) IndexHealthy(ctx context.Context) bool {
	if r.index == nil {
		return false
	}
	if r.health == nil {
		return true
	}
	return r.health.IsHealthy(ctx)
}

func safeSearch(ctx context.Context, backend Backend, params Params, variants []string) (result Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrBackendPanic, rec)
		}
	}()
	if backend == nil {
		return Result{}, errors.New("backend not configured")
	}
	return backend.Search(ctx, params, variants)
}

func safeSuggest(ctx context.Context, s Suggester, prefix string, limit int) (suggestions []Suggestion, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrBackendPanic, rec)
		}
	}()
	return s.Suggest(ctx, prefix, limit)
}
