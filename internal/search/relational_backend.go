package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"catalog-service/pkg/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Scores assigned by the relational backend. Evaluated against the original query only.
const (
	scoreExternalIDExact  = 1000
	scoreSKUExact         = 900
	scoreExternalIDPrefix = 100
	scoreSKUPrefix        = 90
	scoreNameExact        = 80
	scoreNamePrefix       = 50
	scoreNameSubstring    = 30
	scoreOther            = 1
)

// RelationalBackend searches products with scored predicates against the database.
type RelationalBackend struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
}

var _ Backend = (*RelationalBackend)(nil)

// RelationalOption configures a RelationalBackend.
type RelationalOption func(*RelationalBackend) error

// WithRelationalLogger sets a custom logger.
func WithRelationalLogger(logger *zap.Logger) RelationalOption {
	return func(b *RelationalBackend) error {
		if logger != nil {
			b.logger = logger
		}
		return nil
	}
}

// WithRelationalClock replaces time.Now when selecting the active base price
func WithRelationalClock(now func() time.Time) RelationalOption {
	return func(b *RelationalBackend) error {
		if now != nil {
			b.now = now
		}
		return nil
	}
}

// NewRelationalBackend creates a relational backend over db
func NewRelationalBackend(db *gorm.DB, opts ...RelationalOption) (*RelationalBackend, error) {
	if db == nil {
		return nil, ErrDatabaseRequired
	}
	b := &RelationalBackend{db: db, now: time.Now, logger: zap.L()}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// relationalRow is one row of the paged query. Page columns are NULL when the
// requested page lies beyond the last match.
type relationalRow struct {
	Total           int64
	ID              *int64
	ExternalID      *string
	SKU             *string
	Name            *string
	Description     *string
	BrandName       *string
	SeriesName      *string
	Unit            *string
	MinSale         *int
	PopularityScore *float64
	BasePrice       decimal.NullDecimal
	Score           *float64
}

// Search returns one page of products and the total from a single statement.
// With no variants the backend lists every product that passes the filters.
func (b *RelationalBackend) Search(ctx context.Context, params Params, variants []string) (Result, error) {
	defer metrics.TrackDBOperation("product_search")(time.Now())

	sql, args := b.buildQuery(params, variants)

	var rows []relationalRow
	if err := b.db.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		return Result{}, fmt.Errorf("relational search failed: %w", err)
	}

	result := Result{Products: make([]Product, 0, len(rows))}
	for _, row := range rows {
		result.Total = row.Total
		if row.ID == nil {
			continue
		}
		result.Products = append(result.Products, row.toProduct())
	}

	b.logger.Debug("Relational search completed",
		zap.Strings("variants", variants),
		zap.Int64("total", result.Total),
		zap.Int("returned", len(result.Products)))

	return result, nil
}

func (b *RelationalBackend) buildQuery(params Params, variants []string) (string, []any) {
	var (
		sb   strings.Builder
		args []any
	)

	sb.WriteString("WITH matched AS (SELECT p.*, b.name AS brand_name, s.name AS series_name, ")

	if len(variants) > 0 {
		original := strings.ToLower(variants[0])
		prefix := escapeLike(original) + "%"
		substring := "%" + escapeLike(original) + "%"
		sb.WriteString(`CASE` +
			` WHEN LOWER(p.external_id) = ? THEN ` + itoa(scoreExternalIDExact) +
			` WHEN LOWER(p.sku) = ? THEN ` + itoa(scoreSKUExact) +
			` WHEN LOWER(p.external_id) LIKE ? ESCAPE '\' THEN ` + itoa(scoreExternalIDPrefix) +
			` WHEN LOWER(p.sku) LIKE ? ESCAPE '\' THEN ` + itoa(scoreSKUPrefix) +
			` WHEN LOWER(p.name) = ? THEN ` + itoa(scoreNameExact) +
			` WHEN LOWER(p.name) LIKE ? ESCAPE '\' THEN ` + itoa(scoreNamePrefix) +
			` WHEN LOWER(p.name) LIKE ? ESCAPE '\' THEN ` + itoa(scoreNameSubstring) +
			` ELSE ` + itoa(scoreOther) + ` END AS score, `)
		args = append(args, original, original, prefix, prefix, original, prefix, substring)
	} else {
		sb.WriteString(itoa(scoreOther) + " AS score, ")
	}

	now := b.now()
	sb.WriteString(`COALESCE((SELECT pr.price FROM prices pr` +
		` WHERE pr.product_id = p.id AND pr.is_base = ? AND pr.valid_from <= ?` +
		` AND (pr.valid_to IS NULL OR pr.valid_to >= ?)` +
		` ORDER BY pr.valid_from DESC LIMIT 1), 0) AS base_price`)
	args = append(args, true, now, now)

	sb.WriteString(" FROM products p LEFT JOIN brands b ON b.id = p.brand_id LEFT JOIN series s ON s.id = p.series_id")

	var conditions []string
	if len(variants) > 0 {
		var matches []string
		for _, v := range variants {
			lower := strings.ToLower(v)
			prefix := escapeLike(lower) + "%"
			substring := "%" + escapeLike(lower) + "%"
			matches = append(matches, `LOWER(p.external_id) = ? OR LOWER(p.sku) = ?`+
				` OR LOWER(p.external_id) LIKE ? ESCAPE '\' OR LOWER(p.sku) LIKE ? ESCAPE '\'`+
				` OR LOWER(p.name) LIKE ? ESCAPE '\' OR LOWER(p.description) LIKE ? ESCAPE '\'`+
				` OR LOWER(b.name) LIKE ? ESCAPE '\'`)
			args = append(args, lower, lower, prefix, prefix, substring, substring, substring)
		}
		conditions = append(conditions, "("+strings.Join(matches, " OR ")+")")
	}
	if params.Brand != "" {
		conditions = append(conditions, "LOWER(b.name) = ?")
		args = append(args, strings.ToLower(params.Brand))
	}
	if params.Series != "" {
		conditions = append(conditions, "LOWER(s.name) = ?")
		args = append(args, strings.ToLower(params.Series))
	}
	if len(conditions) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	sb.WriteString(")")

	order := relationalOrder(params.Sort, len(variants) > 0)
	sb.WriteString(" SELECT t.total, m.* FROM (SELECT COUNT(*) AS total FROM matched) t")
	sb.WriteString(" LEFT JOIN (SELECT * FROM matched ORDER BY " + order.render("") + " LIMIT ? OFFSET ?) m ON 1 = 1")
	sb.WriteString(" ORDER BY " + order.render("m."))
	args = append(args, params.Limit, params.Offset())

	return sb.String(), args
}

type orderTerm struct {
	column string
	desc   bool
}

type orderBy []orderTerm

func (o orderBy) render(prefix string) string {
	parts := make([]string, len(o))
	for i, term := range o {
		dir := "ASC"
		if term.desc {
			dir = "DESC"
		}
		parts[i] = prefix + term.column + " " + dir
	}
	return strings.Join(parts, ", ")
}

func relationalOrder(sort string, ranked bool) orderBy {
	switch sort {
	case SortName:
		return orderBy{{"name", false}, {"id", true}}
	case SortExternalID:
		return orderBy{{"external_id", false}, {"id", true}}
	case SortPriceAsc:
		return orderBy{{"base_price", false}, {"id", true}}
	case SortPriceDesc:
		return orderBy{{"base_price", true}, {"id", true}}
	case SortPopularity:
		return orderBy{{"popularity_score", true}, {"id", true}}
	}
	if ranked {
		return orderBy{{"score", true}, {"name", false}, {"id", true}}
	}
	return orderBy{{"id", true}}
}

// escapeLike escapes LIKE metacharacters so user input matches literally
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func itoa(n int) string {
	return fmt.Sprintf("%d", n)
}

func (r relationalRow) toProduct() Product {
	p := Product{
		ID:              deref(r.ID),
		ExternalID:      deref(r.ExternalID),
		SKU:             deref(r.SKU),
		Name:            deref(r.Name),
		Description:     deref(r.Description),
		BrandName:       deref(r.BrandName),
		SeriesName:      deref(r.SeriesName),
		Unit:            deref(r.Unit),
		MinSale:         deref(r.MinSale),
		PopularityScore: deref(r.PopularityScore),
		Score:           deref(r.Score),
	}
	if r.BasePrice.Valid {
		price := r.BasePrice.Decimal
		p.BasePrice = &price
	}
	return p
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}
