package dynamic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"catalog-service/internal/model"
	"catalog-service/pkg/metrics"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BalanceRow is a stock balance joined with its warehouse
type BalanceRow struct {
	WarehouseID int64
	Name        string
	Address     string
	IsActive    bool
	Quantity    int64
	Reserved    int64
}

// Store is the read access the resolvers need. Implementations return
// ErrNotFound for missing rows and wrap malformed values in ErrDataError.
type Store interface {
	City(ctx context.Context, cityID int64) (*model.City, error)
	OrgIDForUser(ctx context.Context, userID int64) (*int64, error)
	ContractPrices(ctx context.Context, orgID, productID int64) ([]model.ClientPrice, error)
	Prices(ctx context.Context, productID int64) ([]model.Price, error)
	Balances(ctx context.Context, productID int64) ([]BalanceRow, error)
	CityWarehouseIDs(ctx context.Context, cityID int64) ([]int64, error)
}

// GormStore implements Store with gorm.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// NewGormStore creates a store over db
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, ErrStoreRequired
	}
	return &GormStore{db: db}, nil
}

// City returns the delivery calendar of cityID
func (s *GormStore) City(ctx context.Context, cityID int64) (*model.City, error) {
	defer metrics.TrackDBOperation("city_lookup")(time.Now())

	var city model.City
	err := s.db.WithContext(ctx).Where("id = ?", cityID).Take(&city).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("city %d: %w", cityID, ErrNotFound)
	}
	if err != nil {
		return nil, classify(fmt.Errorf("failed to load city %d: %w", cityID, err))
	}
	return &city, nil
}

// OrgIDForUser returns the organization userID buys for, or nil
func (s *GormStore) OrgIDForUser(ctx context.Context, userID int64) (*int64, error) {
	defer metrics.TrackDBOperation("org_lookup")(time.Now())

	var link model.ClientOrganization
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}}).
		Take(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(fmt.Errorf("failed to load organization of user %d: %w", userID, err))
	}
	return &link.OrgID, nil
}

// ContractPrices returns every contract price of orgID for productID, newest first.
// Validity windows are checked by the caller.
func (s *GormStore) ContractPrices(ctx context.Context, orgID, productID int64) ([]model.ClientPrice, error) {
	defer metrics.TrackDBOperation("contract_price_lookup")(time.Now())

	var prices []model.ClientPrice
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND product_id = ?", orgID, productID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "valid_from"}, Desc: true}).
		Find(&prices).Error
	if err != nil {
		return nil, classify(fmt.Errorf("failed to load contract prices: %w", err))
	}
	return prices, nil
}

// Prices returns every base and promotional price record of productID
func (s *GormStore) Prices(ctx context.Context, productID int64) ([]model.Price, error) {
	defer metrics.TrackDBOperation("price_lookup")(time.Now())

	var prices []model.Price
	err := s.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "valid_from"}, Desc: true}).
		Find(&prices).Error
	if err != nil {
		return nil, classify(fmt.Errorf("failed to load prices: %w", err))
	}
	return prices, nil
}

// Balances returns the stock of productID in every warehouse
func (s *GormStore) Balances(ctx context.Context, productID int64) ([]BalanceRow, error) {
	defer metrics.TrackDBOperation("stock_lookup")(time.Now())

	var rows []BalanceRow
	err := s.db.WithContext(ctx).
		Table("stock_balances sb").
		Select("sb.warehouse_id, w.name, w.address, w.is_active, sb.quantity, sb.reserved").
		Joins("JOIN warehouses w ON w.id = sb.warehouse_id").
		Where("sb.product_id = ?", productID).
		Order("sb.warehouse_id").
		Scan(&rows).Error
	if err != nil {
		return nil, classify(fmt.Errorf("failed to load stock balances: %w", err))
	}
	return rows, nil
}

// CityWarehouseIDs returns the warehouses mapped to cityID
func (s *GormStore) CityWarehouseIDs(ctx context.Context, cityID int64) ([]int64, error) {
	defer metrics.TrackDBOperation("city_warehouse_lookup")(time.Now())

	var ids []int64
	err := s.db.WithContext(ctx).
		Model(&model.CityWarehouseMapping{}).
		Where("city_id = ?", cityID).
		Order("warehouse_id").
		Pluck("warehouse_id", &ids).Error
	if err != nil {
		return nil, classify(fmt.Errorf("failed to load city warehouses: %w", err))
	}
	return ids, nil
}

// classify marks PostgreSQL data exceptions (SQLSTATE class 22) as ErrDataError
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "22") {
		return fmt.Errorf("%w: %w", ErrDataError, err)
	}
	return err
}
