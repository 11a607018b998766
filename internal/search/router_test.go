package search

import (
	"context"
	"errors"
	"testing"

	"catalog-service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// stubBackend records calls and returns a canned result
type stubBackend struct {
	result   Result
	err      error
	panicMsg string

	calls        int
	lastParams   Params
	lastVariants []string
}

func (s *stubBackend) Search(_ context.Context, params Params, variants []string) (Result, error) {
	s.calls++
	s.lastParams = params
	s.lastVariants = variants
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	return s.result, s.err
}

func oneProduct(id int64) Result {
	return Result{Products: []Product{{ID: id, Name: "product"}}, Total: 1}
}

func newTestRouter(t *testing.T, opts ...RouterOption) (*Router, *stubBackend, *stubBackend) {
	t.Helper()
	index := &stubBackend{result: oneProduct(1)}
	relational := &stubBackend{result: oneProduct(2)}
	router, err := NewRouter(relational, append([]RouterOption{WithIndexBackend(index)}, opts...)...)
	require.NoError(t, err)
	return router, index, relational
}

func healthyMonitor(t *testing.T, status string) *HealthMonitor {
	t.Helper()
	m, err := NewHealthMonitor(&fakeCluster{status: status}, WithHealthLogger(zap.NewNop()))
	require.NoError(t, err)
	return m
}

func TestRouterSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("listing uses database", func(t *testing.T) {
		router, index, relational := newTestRouter(t)

		resp := router.Search(ctx, Params{Query: "   "})

		assert.True(t, resp.Success)
		assert.Equal(t, SourceDatabase, resp.Data.Source)
		assert.Equal(t, 0, index.calls)
		assert.Equal(t, 1, relational.calls)
		assert.Empty(t, relational.lastVariants)
		assert.Equal(t, 1, resp.Data.Page)
		assert.Equal(t, DefaultLimit, resp.Data.Limit)
	})

	t.Run("ranked uses healthy index", func(t *testing.T) {
		router, index, relational := newTestRouter(t, WithHealthMonitor(healthyMonitor(t, "green")))

		resp := router.Search(ctx, Params{Query: "ghbdtn"})

		assert.True(t, resp.Success)
		assert.Equal(t, SourceIndex, resp.Data.Source)
		assert.Equal(t, int64(1), resp.Data.Products[0].ID)
		assert.Equal(t, 1, index.calls)
		assert.Equal(t, 0, relational.calls)
		assert.Equal(t, []string{"ghbdtn", "привет"}, index.lastVariants)
		assert.False(t, resp.Data.Debug.FallbackUsed)
		assert.NotEmpty(t, resp.Data.Debug.RequestID)
	})

	t.Run("index failure falls back once with a warning", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		router, index, relational := newTestRouter(t, WithLogger(zap.New(core)))
		index.err = errors.New("index timeout")

		resp := router.Search(ctx, Params{Query: "abb"})

		assert.True(t, resp.Success)
		assert.Equal(t, SourceFallback, resp.Data.Source)
		assert.Equal(t, int64(2), resp.Data.Products[0].ID)
		assert.Equal(t, 1, index.calls)
		assert.Equal(t, 1, relational.calls)
		assert.True(t, resp.Data.Debug.FallbackUsed)
		assert.Equal(t, "index timeout", resp.Data.Debug.IndexError)

		warnings := logs.FilterLevelExact(zap.WarnLevel).FilterMessage("Index search failed, falling back to database")
		assert.Equal(t, 1, warnings.Len())
	})

	t.Run("unhealthy index goes straight to database", func(t *testing.T) {
		router, index, relational := newTestRouter(t, WithHealthMonitor(healthyMonitor(t, "red")))

		resp := router.Search(ctx, Params{Query: "abb"})

		assert.True(t, resp.Success)
		assert.Equal(t, SourceFallback, resp.Data.Source)
		assert.Equal(t, 0, index.calls)
		assert.Equal(t, 1, relational.calls)
	})

	t.Run("no index configured", func(t *testing.T) {
		relational := &stubBackend{result: oneProduct(3)}
		router, err := NewRouter(relational)
		require.NoError(t, err)

		resp := router.Search(ctx, Params{Query: "abb"})
		assert.Equal(t, SourceFallback, resp.Data.Source)
	})

	t.Run("panic in index is recovered", func(t *testing.T) {
		router, index, relational := newTestRouter(t)
		index.panicMsg = "nil map"

		resp := router.Search(ctx, Params{Query: "abb"})

		assert.True(t, resp.Success)
		assert.Equal(t, SourceFallback, resp.Data.Source)
		assert.Equal(t, 1, relational.calls)
		assert.Contains(t, resp.Data.Debug.IndexError, "nil map")
	})

	t.Run("both backends fail", func(t *testing.T) {
		core, logs := observer.New(zap.ErrorLevel)
		router, index, relational := newTestRouter(t, WithLogger(zap.New(core)))
		index.err = errors.New("index down")
		relational.err = errors.New("db down")

		resp := router.Search(ctx, Params{Query: "abb", Page: 3, Limit: 500})

		assert.False(t, resp.Success)
		assert.Equal(t, ErrorCodeUnavailable, resp.ErrorCode)
		assert.Equal(t, "search service temporarily unavailable", resp.Error)
		assert.Equal(t, SourceErrorFallback, resp.Data.Source)
		assert.NotNil(t, resp.Data.Products)
		assert.Empty(t, resp.Data.Products)
		assert.Equal(t, 3, resp.Data.Page)
		assert.Equal(t, MaxLimit, resp.Data.Limit)
		assert.Equal(t, 1, logs.Len())
	})

	t.Run("listing failure", func(t *testing.T) {
		router, _, relational := newTestRouter(t, WithLogger(zap.NewNop()))
		relational.panicMsg = "boom"

		resp := router.Search(ctx, Params{})
		assert.False(t, resp.Success)
		assert.Equal(t, SourceErrorFallback, resp.Data.Source)
	})

	t.Run("nil products become empty list", func(t *testing.T) {
		router, _, relational := newTestRouter(t)
		relational.result = Result{}

		resp := router.Search(ctx, Params{})
		assert.NotNil(t, resp.Data.Products)
	})
}

func TestParamsNormalize(t *testing.T) {
	tests := []struct {
		name      string
		in        Params
		wantPage  int
		wantLimit int
		wantSort  string
	}{
		{"defaults", Params{}, 1, DefaultLimit, SortRelevance},
		{"negative page", Params{Page: -4, Limit: 5}, 1, 5, SortRelevance},
		{"limit too large", Params{Page: 2, Limit: 1000}, 2, MaxLimit, SortRelevance},
		{"limit at bounds", Params{Limit: 1}, 1, 1, SortRelevance},
		{"unknown sort", Params{Sort: "DROP TABLE"}, 1, DefaultLimit, SortRelevance},
		{"allowed sort", Params{Sort: SortPriceDesc}, 1, DefaultLimit, SortPriceDesc},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.normalize()
			assert.Equal(t, tt.wantPage, got.Page)
			assert.Equal(t, tt.wantLimit, got.Limit)
			assert.Equal(t, tt.wantSort, got.Sort)
		})
	}
}

type stubSuggester struct {
	suggestions []Suggestion
	err         error
	lastLimit   int
	calls       int
}

func (s *stubSuggester) Suggest(_ context.Context, _ string, limit int) ([]Suggestion, error) {
	s.calls++
	s.lastLimit = limit
	return s.suggestions, s.err
}

func TestRouterAutocomplete(t *testing.T) {
	ctx := context.Background()
	relational := &stubBackend{}

	t.Run("short prefix", func(t *testing.T) {
		suggester := &stubSuggester{suggestions: []Suggestion{{Text: "x"}}}
		router, err := NewRouter(relational, WithSuggester(suggester))
		require.NoError(t, err)

		assert.Equal(t, []Suggestion{}, router.Autocomplete(ctx, " а ", 5))
		assert.Equal(t, []Suggestion{}, router.Autocomplete(ctx, "*!", 5))
		assert.Equal(t, 0, suggester.calls)
	})

	t.Run("limit clamped", func(t *testing.T) {
		suggester := &stubSuggester{suggestions: []Suggestion{{Text: "Автомат", Score: 1}}}
		router, err := NewRouter(relational, WithSuggester(suggester))
		require.NoError(t, err)

		got := router.Autocomplete(ctx, "ав", 100)
		assert.Equal(t, []Suggestion{{Text: "Автомат", Score: 1}}, got)
		assert.Equal(t, MaxSuggestLimit, suggester.lastLimit)

		router.Autocomplete(ctx, "ав", 0)
		assert.Equal(t, DefaultSuggestLimit, suggester.lastLimit)
	})

	t.Run("failure returns empty list", func(t *testing.T) {
		suggester := &stubSuggester{err: errors.New("cluster down")}
		router, err := NewRouter(relational, WithSuggester(suggester), WithLogger(zap.NewNop()))
		require.NoError(t, err)

		assert.Equal(t, []Suggestion{}, router.Autocomplete(ctx, "abb", 5))
	})

	t.Run("unhealthy index skipped", func(t *testing.T) {
		suggester := &stubSuggester{suggestions: []Suggestion{{Text: "x"}}}
		router, err := NewRouter(relational, WithSuggester(suggester), WithHealthMonitor(healthyMonitor(t, "red")))
		require.NoError(t, err)

		assert.Equal(t, []Suggestion{}, router.Autocomplete(ctx, "abb", 5))
		assert.Equal(t, 0, suggester.calls)
	})

	t.Run("no suggester", func(t *testing.T) {
		router, err := NewRouter(relational)
		require.NoError(t, err)
		assert.Equal(t, []Suggestion{}, router.Autocomplete(ctx, "abb", 5))
	})

	t.Run("index backend doubles as suggester", func(t *testing.T) {
		cluster := &fakeCluster{response: []byte(`{"suggest":{"product_suggest":[{"options":[{"text":"ABB S201","_score":1}]}]}}`)}
		index, err := NewIndexBackend(cluster)
		require.NoError(t, err)
		router, err := NewRouter(relational, WithIndexBackend(index))
		require.NoError(t, err)

		assert.Equal(t, []Suggestion{{Text: "ABB S201", Score: 1}}, router.Autocomplete(ctx, "abb", 5))
	})
}

func TestRouterLogsWithRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	ctx := logger.WithContext(context.Background(), zap.New(core).With(zap.String("request_id", "req-7")))
	router, index, _ := newTestRouter(t, WithLogger(zap.NewNop()))
	index.err = errors.New("timeout")

	resp := router.Search(ctx, Params{Query: "cable"})

	assert.Equal(t, SourceFallback, resp.Data.Source)
	entries := logs.FilterMessage("Index search failed, falling back to database").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "req-7", entries[0].ContextMap()["request_id"])
}

func TestListingSourceLabel(t *testing.T) {
	router, _, _ := newTestRouter(t)
	resp := router.Search(context.Background(), Params{})
	assert.Equal(t, "mysql", resp.Data.Source)
}
