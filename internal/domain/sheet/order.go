package sheet

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cassiomorais/paysheet/internal/domain/errors"
	"github.com/shopspring/decimal"
)

// OrderDescription is anything that can be priced into a payment request.
type OrderDescription interface {
	PaymentRequest() (*PaymentRequest, error)
}

// LineItem is a product line of an order.
type LineItem struct {
	Label     string          `json:"label"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Subtotal returns unit price times quantity.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Discount is a price reduction applied to the whole order.
type Discount struct {
	Label      string          `json:"label"`
	CouponCode string          `json:"coupon_code,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
}

// Order is the default OrderDescription: a merchant's cart with optional
// shipping options and at most one discount.
type Order struct {
	ID              string           `json:"id"`
	MerchantName    string           `json:"merchant_name"`
	Currency        string           `json:"currency"`
	Items           []LineItem       `json:"items"`
	ShippingMethods []ShippingMethod `json:"shipping_methods,omitempty"`
	Discount        *Discount        `json:"discount,omitempty"`
}

// Subtotal returns the sum of all line items before discount and shipping.
func (o *Order) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, li := range o.Items {
		total = total.Add(li.Subtotal())
	}
	return total
}

// Clone returns a deep copy of the order.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = slices.Clone(o.Items)
	c.ShippingMethods = slices.Clone(o.ShippingMethods)
	if o.Discount != nil {
		d := *o.Discount
		c.Discount = &d
	}
	return &c
}

// WithDiscount returns a copy of the order carrying d instead of any previous discount.
func (o *Order) WithDiscount(d Discount) *Order {
	c := o.Clone()
	c.Discount = &d
	return c
}

// Validate checks the order before it is priced.
func (o *Order) Validate() error {
	if strings.TrimSpace(o.MerchantName) == "" {
		return errors.NewValidationError("merchant_name", "cannot be empty")
	}
	if len(o.Currency) != 3 {
		return errors.NewValidationError("currency", "must be a 3-letter ISO code")
	}
	if len(o.Items) == 0 {
		return errors.NewDomainError("empty_order", "order has no line items", errors.ErrEmptyOrder)
	}
	for i, li := range o.Items {
		if li.Quantity <= 0 {
			return errors.NewValidationError(fmt.Sprintf("items[%d].quantity", i), "must be greater than 0")
		}
		if li.UnitPrice.IsNegative() {
			return errors.NewValidationError(fmt.Sprintf("items[%d].unit_price", i), "must not be negative")
		}
	}
	if o.Discount != nil && o.Discount.Amount.IsNegative() {
		return errors.NewValidationError("discount.amount", "must not be negative")
	}
	return nil
}

// PaymentRequest prices the order. The first shipping method is treated as
// the selected one and the grand total is labelled with the merchant name.
func (o *Order) PaymentRequest() (*PaymentRequest, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}

	items := make([]SummaryItem, 0, len(o.Items)+3)
	total := decimal.Zero
	for _, li := range o.Items {
		label := li.Label
		if li.Quantity > 1 {
			label = fmt.Sprintf("%s x%d", li.Label, li.Quantity)
		}
		amount := li.Subtotal()
		items = append(items, SummaryItem{Label: label, Amount: amount, Type: ItemFinal})
		total = total.Add(amount)
	}

	if o.Discount != nil && o.Discount.Amount.IsPositive() {
		label := o.Discount.Label
		if label == "" {
			label = "Discount"
		}
		items = append(items, SummaryItem{Label: label, Amount: o.Discount.Amount.Neg(), Type: ItemFinal})
		total = total.Sub(o.Discount.Amount)
	}

	if len(o.ShippingMethods) > 0 {
		selected := o.ShippingMethods[0]
		items = append(items, SummaryItem{Label: selected.Label, Amount: selected.Amount, Type: ItemFinal})
		total = total.Add(selected.Amount)
	}

	items = append(items, SummaryItem{Label: o.MerchantName, Amount: total, Type: ItemFinal})

	return &PaymentRequest{
		CurrencyCode:    strings.ToUpper(o.Currency),
		SummaryItems:    items,
		ShippingMethods: slices.Clone(o.ShippingMethods),
	}, nil
}
