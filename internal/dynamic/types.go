package dynamic

import (
	"time"

	"github.com/shopspring/decimal"
)

// Price types reported in PriceResolution.PriceType
const (
	PriceTypeClient  = "client"
	PriceTypeSpecial = "special"
	PriceTypeBase    = "base"
	PriceTypeNone    = "none"
)

// Delivery types reported in DeliveryResolution.Type
const (
	DeliveryTypeStock   = "stock"
	DeliveryTypeOrder   = "order"
	DeliveryTypeRequest = "request"
	DeliveryTypeUnknown = "unknown"
)

const (
	deliveryTextRequest = "on request"
	deliveryTextUnknown = "check availability"
	dateLayout          = "2006-01-02"
)

// PriceResolution is the price a customer sees for a product
type PriceResolution struct {
	Base            *decimal.Decimal `json:"base"`
	Final           *decimal.Decimal `json:"final"`
	HasSpecial      bool             `json:"has_special"`
	DiscountPercent int64            `json:"discount_percent"`
	PriceType       string           `json:"price_type"`
	SpecialUntil    *time.Time       `json:"special_until,omitempty"`
}

// WarehouseStock is the available quantity of one warehouse
type WarehouseStock struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Quantity int64  `json:"quantity"`
}

// StockResolution is the stock of a product as seen from a city
type StockResolution struct {
	// Quantity is the available stock in warehouses serving the city
	Quantity   int64            `json:"quantity"`
	Warehouses []WarehouseStock `json:"warehouses"`
	// Reserved is summed over every warehouse, not only the city's
	Reserved int64 `json:"reserved"`
	// Total is the available stock across the whole network
	Total int64 `json:"total"`
}

// DeliveryResolution is the delivery estimate of a product to a city
type DeliveryResolution struct {
	Date *string `json:"date"`
	Text string  `json:"text"`
	Type string  `json:"type"`
	Days *int    `json:"days"`
}

// ProductDynamicState is everything volatile about a product for one city and customer
type ProductDynamicState struct {
	Price     PriceResolution    `json:"price"`
	Stock     StockResolution    `json:"stock"`
	Delivery  DeliveryResolution `json:"delivery"`
	Available bool               `json:"available"`
}

// DefaultState is reported when a product could not be resolved
func DefaultState() ProductDynamicState {
	return ProductDynamicState{
		Price: PriceResolution{PriceType: PriceTypeNone},
		Stock: StockResolution{Warehouses: []WarehouseStock{}},
		Delivery: DeliveryResolution{
			Text: deliveryTextUnknown,
			Type: DeliveryTypeUnknown,
		},
	}
}

func defaultBatch(ids []int64) map[int64]ProductDynamicState {
	out := make(map[int64]ProductDynamicState, len(ids))
	for _, id := range ids {
		out[id] = DefaultState()
	}
	return out
}
