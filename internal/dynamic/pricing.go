package dynamic

import (
	"context"
	"fmt"
	"time"

	"catalog-service/internal/model"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PricingResolver applies price precedence: contract, then promotional below
// base, then base.
type PricingResolver struct {
	store Store
	now   func() time.Time
}

// NewPricingResolver creates a resolver reading from store
func NewPricingResolver(store Store, now func() time.Time) *PricingResolver {
	if now == nil {
		now = time.Now
	}
	return &PricingResolver{store: store, now: now}
}

// Resolve returns the price of productID for orgID (nil for anonymous or unlinked customers)
func (r *PricingResolver) Resolve(ctx context.Context, productID int64, orgID *int64) (PriceResolution, error) {
	now := r.now()

	if orgID != nil {
		contracts, err := r.store.ContractPrices(ctx, *orgID, productID)
		if err != nil {
			return PriceResolution{}, err
		}
		if contract := latestActiveContract(contracts, now); contract != nil {
			if contract.Price.IsNegative() {
				return PriceResolution{}, fmt.Errorf("%w: negative contract price %d", ErrDataError, contract.ID)
			}
			amount := contract.Price
			return PriceResolution{
				Base:      &amount,
				Final:     &amount,
				PriceType: PriceTypeClient,
			}, nil
		}
	}

	records, err := r.store.Prices(ctx, productID)
	if err != nil {
		return PriceResolution{}, err
	}

	var base, special *model.Price
	for i := range records {
		record := &records[i]
		if !active(record.ValidFrom, record.ValidTo, now) {
			continue
		}
		if record.Price.IsNegative() {
			return PriceResolution{}, fmt.Errorf("%w: negative price %d", ErrDataError, record.ID)
		}
		if record.IsBase {
			if base == nil || newer(record.ValidFrom, record.ID, base.ValidFrom, base.ID) {
				base = record
			}
			continue
		}
		if special == nil || record.Price.LessThan(special.Price) ||
			(record.Price.Equal(special.Price) && record.ID < special.ID) {
			special = record
		}
	}

	baseAmount := decimal.Zero
	if base != nil {
		baseAmount = base.Price
	}

	if special != nil && special.Price.LessThan(baseAmount) {
		final := special.Price
		discount := decimal.NewFromInt(1).Sub(final.Div(baseAmount)).Mul(hundred).Round(0)
		return PriceResolution{
			Base:            &baseAmount,
			Final:           &final,
			HasSpecial:      true,
			DiscountPercent: discount.IntPart(),
			PriceType:       PriceTypeSpecial,
			SpecialUntil:    special.ValidTo,
		}, nil
	}

	final := baseAmount
	return PriceResolution{
		Base:      &baseAmount,
		Final:     &final,
		PriceType: PriceTypeBase,
	}, nil
}

func latestActiveContract(contracts []model.ClientPrice, now time.Time) *model.ClientPrice {
	var latest *model.ClientPrice
	for i := range contracts {
		c := &contracts[i]
		if !active(c.ValidFrom, c.ValidTo, now) {
			continue
		}
		if latest == nil || newer(c.ValidFrom, c.ID, latest.ValidFrom, latest.ID) {
			latest = c
		}
	}
	return latest
}

// active reports whether now lies in [from, to], with a nil to meaning open ended
func active(from time.Time, to *time.Time, now time.Time) bool {
	if from.After(now) {
		return false
	}
	return to == nil || !to.Before(now)
}

func newer(from time.Time, id int64, otherFrom time.Time, otherID int64) bool {
	if from.Equal(otherFrom) {
		return id > otherID
	}
	return from.After(otherFrom)
}
