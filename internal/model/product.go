package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Product represents the catalog product master data. Owned by catalog management.
type Product struct {
	ID              int64     `json:"id" gorm:"primarykey"`
	ExternalID      string    `json:"external_id" gorm:"type:varchar(100);index"`
	SKU             string    `json:"sku" gorm:"type:varchar(100);index"`
	Name            string    `json:"name" gorm:"type:varchar(255);not null"`
	Description     string    `json:"description" gorm:"type:text"`
	BrandID         *int64    `json:"brand_id" gorm:"index"`
	SeriesID        *int64    `json:"series_id" gorm:"index"`
	Unit            string    `json:"unit" gorm:"type:varchar(20)"`
	MinSale         int       `json:"min_sale" gorm:"default:1"`
	PopularityScore float64   `json:"popularity_score" gorm:"default:0"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Brand represents a product brand
type Brand struct {
	ID   int64  `json:"id" gorm:"primarykey"`
	Name string `json:"name" gorm:"type:varchar(255);not null"`
}

// Series represents a product series within a brand
type Series struct {
	ID   int64  `json:"id" gorm:"primarykey"`
	Name string `json:"name" gorm:"type:varchar(255);not null"`
}

// TableName overrides the pluralized table name
func (Series) TableName() string {
	return "series"
}

// Price is a base or promotional price record with a validity window
type Price struct {
	ID        int64           `json:"id" gorm:"primarykey"`
	ProductID int64           `json:"product_id" gorm:"index;not null"`
	Price     decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"`
	IsBase    bool            `json:"is_base" gorm:"default:false"`
	ValidFrom time.Time       `json:"valid_from" gorm:"not null"`
	ValidTo   *time.Time      `json:"valid_to"`
}

// ClientPrice is an organization specific contract price
type ClientPrice struct {
	ID        int64           `json:"id" gorm:"primarykey"`
	OrgID     int64           `json:"org_id" gorm:"index:idx_client_prices_org_product;not null"`
	ProductID int64           `json:"product_id" gorm:"index:idx_client_prices_org_product;not null"`
	Price     decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"`
	ValidFrom time.Time       `json:"valid_from" gorm:"not null"`
	ValidTo   *time.Time      `json:"valid_to"`
}

// ClientOrganization links a user to the organization they buy for
type ClientOrganization struct {
	ID     int64 `json:"id" gorm:"primarykey"`
	UserID int64 `json:"user_id" gorm:"index;not null"`
	OrgID  int64 `json:"org_id" gorm:"not null"`
}

// TableName overrides the default table name
func (ClientOrganization) TableName() string {
	return "clients_organizations"
}

// Warehouse represents a stock location
type Warehouse struct {
	ID       int64  `json:"id" gorm:"primarykey"`
	Name     string `json:"name" gorm:"type:varchar(255);not null"`
	Address  string `json:"address" gorm:"type:text"`
	IsActive bool   `json:"is_active" gorm:"default:true"`
}

// StockBalance is the on-hand and reserved quantity of a product in a warehouse
type StockBalance struct {
	ID          int64 `json:"id" gorm:"primarykey"`
	ProductID   int64 `json:"product_id" gorm:"index;not null"`
	WarehouseID int64 `json:"warehouse_id" gorm:"index;not null"`
	Quantity    int64 `json:"quantity" gorm:"default:0"`
	Reserved    int64 `json:"reserved" gorm:"default:0"`
}

// CityWarehouseMapping assigns warehouses that can fulfil orders for a city
type CityWarehouseMapping struct {
	CityID      int64 `json:"city_id" gorm:"primaryKey;autoIncrement:false"`
	WarehouseID int64 `json:"warehouse_id" gorm:"primaryKey;autoIncrement:false"`
}

// TableName overrides the default table name
func (CityWarehouseMapping) TableName() string {
	return "city_warehouse_mapping"
}

// City holds the delivery calendar of a delivery city
type City struct {
	ID               int64          `json:"id" gorm:"primarykey"`
	Name             string         `json:"name" gorm:"type:varchar(255);not null"`
	DeliveryBaseDays int            `json:"delivery_base_days" gorm:"default:3"`
	CutoffTime       string         `json:"cutoff_time" gorm:"type:varchar(8);default:'15:00'"`
	WorkingDays      datatypes.JSON `json:"working_days"`
}

// AllModels lists every model owned by this service, for migrations and tests
func AllModels() []interface{} {
	return []interface{}{
		&Product{},
		&Brand{},
		&Series{},
		&Price{},
		&ClientPrice{},
		&ClientOrganization{},
		&Warehouse{},
		&StockBalance{},
		&CityWarehouseMapping{},
		&City{},
	}
}
