package testutil

import (
	"github.com/cassiomorais/paysheet/internal/domain/sheet"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NewTestOrder returns a two-item order with two shipping options.
func NewTestOrder() *sheet.Order {
	return &sheet.Order{
		ID:           uuid.New().String(),
		MerchantName: "Kart Shop",
		Currency:     "USD",
		Items: []sheet.LineItem{
			{Label: "Waffle", UnitPrice: decimal.RequireFromString("6.50"), Quantity: 2},
			{Label: "Brownie", UnitPrice: decimal.RequireFromString("5.00"), Quantity: 1},
		},
		ShippingMethods: []sheet.ShippingMethod{
			{Identifier: "standard", Label: "Standard", Amount: decimal.RequireFromString("4.99")},
			{Identifier: "pickup", Label: "Pickup", Amount: decimal.Zero},
		},
	}
}

// StaticOrder is an OrderDescription that yields a fixed request.
type StaticOrder struct {
	Request *sheet.PaymentRequest
	Err     error
}

func (o StaticOrder) PaymentRequest() (*sheet.PaymentRequest, error) {
	if o.Err != nil {
		return nil, o.Err
	}
	return o.Request.Clone(), nil
}

// NewStaticOrder builds a StaticOrder from label/amount pairs. The last pair
// becomes the total.
func NewStaticOrder(shipping []sheet.ShippingMethod, pairs ...any) StaticOrder {
	items := make([]sheet.SummaryItem, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		items = append(items, sheet.SummaryItem{
			Label:  pairs[i].(string),
			Amount: decimal.RequireFromString(pairs[i+1].(string)),
			Type:   sheet.ItemFinal,
		})
	}
	return StaticOrder{Request: &sheet.PaymentRequest{
		CurrencyCode:    "USD",
		SummaryItems:    items,
		ShippingMethods: shipping,
	}}
}
