package pricing

import (
	"context"

	"github.com/cassiomorais/paysheet/internal/domain/sheet"
	"github.com/shopspring/decimal"
)

// Pricer re-prices an order for a numeric coupon code.
type Pricer interface {
	Apply(ctx context.Context, order *sheet.Order, code decimal.Decimal) (*sheet.Order, error)
}

// ForOrder binds a Pricer to the order a session started with, giving the
// session its coupon service. Every code is applied to the original order, so
// a new code replaces the previous discount instead of stacking on it.
func ForOrder(p Pricer, order *sheet.Order) sheet.CouponService {
	base := order.Clone()
	return sheet.CouponServiceFunc(func(ctx context.Context, code decimal.Decimal) (sheet.OrderDescription, error) {
		priced, err := p.Apply(ctx, base, code)
		if err != nil {
			return nil, err
		}
		return priced, nil
	})
}
