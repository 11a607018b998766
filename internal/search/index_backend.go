package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultIndex        = "products_current"
	DefaultQueryTimeout = 5 * time.Second
	suggestName         = "product_suggest"
)

// Per-tier boosts. A tier weighs the same whichever variant matched.
const (
	boostExactExternalID  = 1000
	boostExactSKU         = 900
	boostNamePhrase       = 200
	boostExternalIDPrefix = 100
	boostBrand            = 80
	boostNameWords        = 50
	boostAutocomplete     = 30
	boostFreeText         = 20
)

// IndexBackend searches the product index of the search cluster.
type IndexBackend struct {
	cluster Cluster
	index   string
	timeout time.Duration
	logger  *zap.Logger
}

var (
	_ Backend   = (*IndexBackend)(nil)
	_ Suggester = (*IndexBackend)(nil)
)

// IndexOption configures an IndexBackend.
type IndexOption func(*IndexBackend) error

// WithIndex sets the index or alias queried
func WithIndex(index string) IndexOption {
	return func(b *IndexBackend) error {
		if index != "" {
			b.index = index
		}
		return nil
	}
}

// WithQueryTimeout bounds a single index request
func WithQueryTimeout(timeout time.Duration) IndexOption {
	return func(b *IndexBackend) error {
		if timeout > 0 {
			b.timeout = timeout
		}
		return nil
	}
}

// WithIndexLogger sets a custom logger.
func WithIndexLogger(logger *zap.Logger) IndexOption {
	return func(b *IndexBackend) error {
		if logger != nil {
			b.logger = logger
		}
		return nil
	}
}

// NewIndexBackend creates an index backend over cluster
func NewIndexBackend(cluster Cluster, opts ...IndexOption) (*IndexBackend, error) {
	if cluster == nil {
		return nil, ErrClusterRequired
	}
	b := &IndexBackend{
		cluster: cluster,
		index:   DefaultIndex,
		timeout: DefaultQueryTimeout,
		logger:  zap.L(),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Search runs the boosted variant query and returns one page of hits
func (b *IndexBackend) Search(ctx context.Context, params Params, variants []string) (Result, error) {
	body, err := json.Marshal(buildSearchQuery(params, variants))
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode search query: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	raw, err := b.cluster.Search(ctx, b.index, body)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
	}

	var resp searchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Result{}, fmt.Errorf("failed to decode search response: %w", err)
	}

	result := Result{
		Products: make([]Product, 0, len(resp.Hits.Hits)),
		Total:    resp.Hits.Total.Value,
	}
	for _, hit := range resp.Hits.Hits {
		result.Products = append(result.Products, hit.toProduct())
	}

	b.logger.Debug("Index search completed",
		zap.Strings("variants", variants),
		zap.Int64("total", result.Total),
		zap.Int("returned", len(result.Products)))

	return result, nil
}

// Suggest returns completion suggestions for prefix
func (b *IndexBackend) Suggest(ctx context.Context, prefix string, limit int) ([]Suggestion, error) {
	body, err := json.Marshal(buildSuggestQuery(prefix, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to encode suggest query: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	raw, err := b.cluster.Search(ctx, b.index, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
	}

	var resp searchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode suggest response: %w", err)
	}

	suggestions := make([]Suggestion, 0, limit)
	for _, entry := range resp.Suggest[suggestName] {
		for _, option := range entry.Options {
			suggestions = append(suggestions, Suggestion{Text: option.Text, Score: option.Score})
		}
	}
	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions, nil
}

// ActiveIndex resolves the alias the backend queries to its concrete index
func (b *IndexBackend) ActiveIndex(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	indices, err := b.cluster.ResolveAlias(ctx, b.index)
	if err != nil {
		return "", fmt.Errorf("failed to resolve alias %s: %w", b.index, err)
	}
	if len(indices) == 0 {
		return "", fmt.Errorf("alias %s points to no index", b.index)
	}
	return indices[0], nil
}

func buildSearchQuery(params Params, variants []string) map[string]any {
	should := make([]any, 0, len(variants)*8)
	for _, v := range variants {
		should = append(should,
			termClause("external_id.keyword", v, boostExactExternalID),
			termClause("sku.keyword", v, boostExactSKU),
			map[string]any{"match_phrase": map[string]any{"name": map[string]any{"query": v, "boost": boostNamePhrase}}},
			map[string]any{"prefix": map[string]any{"external_id": map[string]any{"value": v, "boost": boostExternalIDPrefix}}},
			matchClause("brand_name", v, boostBrand),
			matchClause("name", v, boostNameWords),
			matchClause("name.autocomplete", v, boostAutocomplete),
			matchClause("search_text", v, boostFreeText),
		)
	}

	boolQuery := map[string]any{
		"should":               should,
		"minimum_should_match": 1,
	}
	if filters := buildFilters(params); len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	return map[string]any{
		"query":            map[string]any{"bool": boolQuery},
		"from":             params.Offset(),
		"size":             params.Limit,
		"track_total_hits": true,
		"sort":             buildSort(params),
		"highlight": map[string]any{
			"pre_tags":  []string{"<mark>"},
			"post_tags": []string{"</mark>"},
			"fields": map[string]any{
				"name":        map[string]any{},
				"external_id": map[string]any{},
				"brand_name":  map[string]any{},
			},
		},
	}
}

func buildSuggestQuery(prefix string, limit int) map[string]any {
	return map[string]any{
		"_source": false,
		"suggest": map[string]any{
			suggestName: map[string]any{
				"prefix": prefix,
				"completion": map[string]any{
					"field":           "suggest",
					"size":            limit,
					"skip_duplicates": true,
				},
			},
		},
	}
}

func termClause(field, value string, boost int) map[string]any {
	return map[string]any{"term": map[string]any{field: map[string]any{"value": value, "boost": boost}}}
}

func matchClause(field, value string, boost int) map[string]any {
	return map[string]any{"match": map[string]any{field: map[string]any{"query": value, "boost": boost}}}
}

func buildFilters(params Params) []any {
	var filters []any
	if params.Brand != "" {
		filters = append(filters, map[string]any{"term": map[string]any{"brand_name.keyword": params.Brand}})
	}
	if params.Series != "" {
		filters = append(filters, map[string]any{"term": map[string]any{"series_name.keyword": params.Series}})
	}
	return filters
}

func buildSort(params Params) []any {
	tieBreaker := map[string]any{"product_id": map[string]any{"order": "desc"}}

	switch params.Sort {
	case SortName:
		return []any{map[string]any{"name.keyword": map[string]any{"order": "asc"}}, tieBreaker}
	case SortExternalID:
		return []any{map[string]any{"external_id.keyword": map[string]any{"order": "asc"}}, tieBreaker}
	case SortPriceAsc:
		return []any{map[string]any{"base_price": map[string]any{"order": "asc", "missing": "_last"}}, tieBreaker}
	case SortPriceDesc:
		return []any{map[string]any{"base_price": map[string]any{"order": "desc", "missing": "_last"}}, tieBreaker}
	case SortPopularity:
		return []any{map[string]any{"popularity_score": map[string]any{"order": "desc"}}, tieBreaker}
	}

	sort := []any{map[string]any{"_score": map[string]any{"order": "desc"}}}
	if params.CityID > 0 {
		sort = append(sort, map[string]any{
			"_script": map[string]any{
				"type": "number",
				"script": map[string]any{
					"lang":   "painless",
					"source": "doc['stock_city_ids'].size() > 0 && doc['stock_city_ids'].contains((long) params.city) ? 1 : 0",
					"params": map[string]any{"city": params.CityID},
				},
				"order": "desc",
			},
		})
	}
	return append(sort,
		map[string]any{"popularity_score": map[string]any{"order": "desc"}},
		tieBreaker,
	)
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []searchHit `json:"hits"`
	} `json:"hits"`
	Suggest map[string][]struct {
		Options []struct {
			Text  string  `json:"text"`
			Score float64 `json:"_score"`
		} `json:"options"`
	} `json:"suggest"`
}

type searchHit struct {
	ID        string              `json:"_id"`
	Score     *float64            `json:"_score"`
	Source    indexedProduct      `json:"_source"`
	Highlight map[string][]string `json:"highlight"`
}

// indexedProduct is the document shape of the product index
type indexedProduct struct {
	ProductID       int64    `json:"product_id"`
	ExternalID      string   `json:"external_id"`
	SKU             string   `json:"sku"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	BrandName       string   `json:"brand_name"`
	SeriesName      string   `json:"series_name"`
	Unit            string   `json:"unit"`
	MinSale         int      `json:"min_sale"`
	PopularityScore float64  `json:"popularity_score"`
	BasePrice       *float64 `json:"base_price"`
}

func (h searchHit) toProduct() Product {
	p := Product{
		ID:              h.Source.ProductID,
		ExternalID:      h.Source.ExternalID,
		SKU:             h.Source.SKU,
		Name:            h.Source.Name,
		Description:     h.Source.Description,
		BrandName:       h.Source.BrandName,
		SeriesName:      h.Source.SeriesName,
		Unit:            h.Source.Unit,
		MinSale:         h.Source.MinSale,
		PopularityScore: h.Source.PopularityScore,
		Highlight:       h.Highlight,
	}
	if p.ID == 0 {
		// older documents only carry the id in _id
		if id, err := strconv.ParseInt(h.ID, 10, 64); err == nil {
			p.ID = id
		}
	}
	if h.Score != nil {
		p.Score = *h.Score
	}
	if h.Source.BasePrice != nil {
		price := decimal.NewFromFloat(*h.Source.BasePrice)
		p.BasePrice = &price
	}
	return p
}
