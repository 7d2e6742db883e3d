package sheet

import (
	"slices"
	"strings"

	"github.com/cassiomorais/paysheet/internal/domain/errors"
	"github.com/shopspring/decimal"
)

// Network is a card network the merchant accepts on the payment sheet.
type Network string

const (
	NetworkAmex       Network = "amex"
	NetworkDiscover   Network = "discover"
	NetworkMasterCard Network = "masterCard"
	NetworkVisa       Network = "visa"
)

// SupportedNetworks is the fixed set of networks every payment request declares.
var SupportedNetworks = []Network{
	NetworkAmex,
	NetworkDiscover,
	NetworkMasterCard,
	NetworkVisa,
}

// ParseNetwork maps a configured network name to a Network. Matching ignores case.
func ParseNetwork(name string) (Network, bool) {
	for _, n := range SupportedNetworks {
		if strings.EqualFold(string(n), name) {
			return n, true
		}
	}
	return "", false
}

// ItemType tells the sheet whether an amount is settled or still an estimate.
type ItemType string

const (
	ItemFinal   ItemType = "final"
	ItemPending ItemType = "pending"
)

// SummaryItem is one priced line shown on the payment sheet.
type SummaryItem struct {
	Label  string
	Amount decimal.Decimal
	Type   ItemType
}

// ShippingMethod is a fulfillment option offered on the payment sheet.
type ShippingMethod struct {
	Identifier string          `json:"identifier"`
	Label      string          `json:"label"`
	Detail     string          `json:"detail,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
}

// Capability is the result of probing whether the payer can use the sheet.
type Capability struct {
	CanMakePayments         bool
	CanUseSupportedNetworks bool
}

// PaymentRequest is the priced content of a payment sheet. Sessions replace it
// wholesale and never edit one in place.
type PaymentRequest struct {
	MerchantIdentifier string
	CountryCode        string
	CurrencyCode       string
	SupportedNetworks  []Network
	SummaryItems       []SummaryItem
	ShippingMethods    []ShippingMethod
}

// Total returns the grand total, which is always the last summary item.
func (r *PaymentRequest) Total() decimal.Decimal {
	if len(r.SummaryItems) == 0 {
		return decimal.Zero
	}
	return r.SummaryItems[len(r.SummaryItems)-1].Amount
}

// Clone returns a deep copy of the request.
func (r *PaymentRequest) Clone() *PaymentRequest {
	if r == nil {
		return nil
	}
	c := *r
	c.SupportedNetworks = slices.Clone(r.SupportedNetworks)
	c.SummaryItems = slices.Clone(r.SummaryItems)
	c.ShippingMethods = slices.Clone(r.ShippingMethods)
	return &c
}

// Validate checks that the request can be shown on a sheet.
func (r *PaymentRequest) Validate() error {
	if len(r.SummaryItems) == 0 {
		return errors.NewValidationError("summary_items", "must not be empty")
	}
	if len(r.CurrencyCode) != 3 {
		return errors.NewValidationError("currency_code", "must be a 3-letter ISO code")
	}
	if r.Total().IsNegative() {
		return errors.NewValidationError("total", "must not be negative")
	}
	for _, item := range r.SummaryItems {
		if strings.TrimSpace(item.Label) == "" {
			return errors.NewValidationError("summary_items.label", "cannot be empty")
		}
	}
	for _, m := range r.ShippingMethods {
		if m.Identifier == "" {
			return errors.NewValidationError("shipping_methods.identifier", "cannot be empty")
		}
		if m.Amount.IsNegative() {
			return errors.NewValidationError("shipping_methods.amount", "must not be negative")
		}
	}
	return nil
}
