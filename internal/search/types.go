package search

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100

	DefaultSuggestLimit = 10
	MaxSuggestLimit     = 20
	minSuggestRunes     = 2
)

// Sort keys accepted from callers. Anything else means default ordering.
const (
	SortRelevance  = "relevance"
	SortName       = "name"
	SortExternalID = "external_id"
	SortPriceAsc   = "price_asc"
	SortPriceDesc  = "price_desc"
	SortPopularity = "popularity"
)

var allowedSorts = map[string]bool{
	SortRelevance:  true,
	SortName:       true,
	SortExternalID: true,
	SortPriceAsc:   true,
	SortPriceDesc:  true,
	SortPopularity: true,
}

// Values reported in Data.Source
const (
	SourceIndex         = "opensearch"
	SourceDatabase      = "mysql"
	SourceFallback      = "fallback"
	SourceErrorFallback = "error_fallback"
)

// ErrorCodeUnavailable is reported when no backend could serve a search
const ErrorCodeUnavailable = "SERVICE_UNAVAILABLE"

// Params describes a search request. Zero values are valid and get defaults.
type Params struct {
	Query  string
	Page   int
	Limit  int
	CityID int64
	Sort   string
	UserID *int64
	Brand  string
	Series string
}

// Offset returns the row offset of the requested page
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// normalize clamps paging and drops sort keys outside the allow-list
func (p Params) normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	switch {
	case p.Limit <= 0:
		p.Limit = DefaultLimit
	case p.Limit > MaxLimit:
		p.Limit = MaxLimit
	}
	if !allowedSorts[p.Sort] {
		p.Sort = SortRelevance
	}
	return p
}

// Product is a search hit
type Product struct {
	ID              int64               `json:"id"`
	ExternalID      string              `json:"external_id"`
	SKU             string              `json:"sku"`
	Name            string              `json:"name"`
	Description     string              `json:"description,omitempty"`
	BrandName       string              `json:"brand_name,omitempty"`
	SeriesName      string              `json:"series_name,omitempty"`
	Unit            string              `json:"unit,omitempty"`
	MinSale         int                 `json:"min_sale,omitempty"`
	PopularityScore float64             `json:"popularity_score"`
	BasePrice       *decimal.Decimal    `json:"base_price,omitempty"`
	Score           float64             `json:"score"`
	Highlight       map[string][]string `json:"highlight,omitempty"`
}

// Result is one page of hits plus the total match count
type Result struct {
	Products []Product
	Total    int64
}

// Debug carries diagnostics about how a search was served
type Debug struct {
	RequestID    string        `json:"request_id"`
	Variants     []string      `json:"variants"`
	Duration     time.Duration `json:"-"`
	DurationMS   float64       `json:"duration_ms"`
	FallbackUsed bool          `json:"fallback_used"`
	IndexError   string        `json:"index_error,omitempty"`
}

// Data is the payload of a search response
type Data struct {
	Products []Product `json:"products"`
	Total    int64     `json:"total"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
	Source   string    `json:"source"`
	Debug    *Debug    `json:"debug,omitempty"`
}

// Response is always structurally valid, even when every backend failed
type Response struct {
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	Data      Data   `json:"data"`
}

// Suggestion is an autocomplete entry
type Suggestion struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}
