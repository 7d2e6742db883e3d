package controller

import (
	"errors"
	"time"

	"github.com/cassiomorais/paysheet/internal/application/session"
	domainErrors "github.com/cassiomorais/paysheet/internal/domain/errors"
	"github.com/cassiomorais/paysheet/internal/domain/sheet"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Request DTOs ---
// Amounts travel as decimal strings ("6.50") and are parsed by shopspring/decimal.

// LineItemRequest is one product line of an order.
type LineItemRequest struct {
	Label     string          `json:"label" validate:"required,max=128"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity" validate:"gte=1"`
}

// ShippingMethodRequest is one shipping option offered on the sheet.
type ShippingMethodRequest struct {
	Identifier string          `json:"identifier" validate:"required,max=64"`
	Label      string          `json:"label" validate:"required,max=128"`
	Detail     string          `json:"detail,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
}

// OrderRequest describes the order the sheet is opened for. Merchant name and
// currency default to the configured merchant.
type OrderRequest struct {
	ID              string                  `json:"id,omitempty"`
	MerchantName    string                  `json:"merchant_name,omitempty"`
	Currency        string                  `json:"currency,omitempty" validate:"omitempty,len=3"`
	Items           []LineItemRequest       `json:"items" validate:"required,min=1,dive"`
	ShippingMethods []ShippingMethodRequest `json:"shipping_methods,omitempty" validate:"dive"`
}

// StartSessionRequest holds the input for presenting a payment sheet.
type StartSessionRequest struct {
	Order          OrderRequest `json:"order"`
	CouponsEnabled bool         `json:"coupons_enabled"`
}

// CouponRequest holds the text typed into the sheet's coupon field.
type CouponRequest struct {
	Code string `json:"code" validate:"max=64"`
}

// --- Response DTOs ---

// CapabilityResponse reports what the payer can do.
type CapabilityResponse struct {
	CanMakePayments         bool `json:"can_make_payments"`
	CanUseSupportedNetworks bool `json:"can_use_supported_networks"`
}

// SummaryItemResponse is one line of the sheet.
type SummaryItemResponse struct {
	Label  string `json:"label"`
	Amount string `json:"amount"`
	Type   string `json:"type"`
}

// ShippingMethodResponse is one shipping option of the sheet.
type ShippingMethodResponse struct {
	Identifier string `json:"identifier"`
	Label      string `json:"label"`
	Detail     string `json:"detail,omitempty"`
	Amount     string `json:"amount"`
}

// PaymentRequestResponse is the request currently shown on the sheet.
type PaymentRequestResponse struct {
	MerchantIdentifier string                   `json:"merchant_identifier"`
	CountryCode        string                   `json:"country_code"`
	CurrencyCode       string                   `json:"currency_code"`
	SupportedNetworks  []string                 `json:"supported_networks"`
	SummaryItems       []SummaryItemResponse    `json:"summary_items"`
	ShippingMethods    []ShippingMethodResponse `json:"shipping_methods"`
	Total              string                   `json:"total"`
}

// SessionResponse represents a payment session in API responses.
type SessionResponse struct {
	SessionID      string                 `json:"session_id"`
	Finished       bool                   `json:"finished"`
	PaymentRequest PaymentRequestResponse `json:"payment_request"`
}

// CouponErrorResponse describes why a coupon event was rejected.
type CouponErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CouponUpdateResponse is the instruction returned to the sheet after a coupon event.
type CouponUpdateResponse struct {
	Status          string                   `json:"status"`
	Errors          []CouponErrorResponse    `json:"errors,omitempty"`
	SummaryItems    []SummaryItemResponse    `json:"summary_items"`
	ShippingMethods []ShippingMethodResponse `json:"shipping_methods,omitempty"`
}

// AttemptResponse is one audited coupon-change event.
type AttemptResponse struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason"`
	Total     string    `json:"total"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}

type AttemptListResponse struct {
	SessionID string            `json:"session_id"`
	Attempts  []AttemptResponse `json:"attempts"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// --- Conversion functions ---

func toOrder(req OrderRequest, defaultName, defaultCurrency string) *sheet.Order {
	o := &sheet.Order{
		ID:           req.ID,
		MerchantName: req.MerchantName,
		Currency:     req.Currency,
	}
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.MerchantName == "" {
		o.MerchantName = defaultName
	}
	if o.Currency == "" {
		o.Currency = defaultCurrency
	}
	for _, li := range req.Items {
		o.Items = append(o.Items, sheet.LineItem{Label: li.Label, UnitPrice: li.UnitPrice, Quantity: li.Quantity})
	}
	for _, sm := range req.ShippingMethods {
		o.ShippingMethods = append(o.ShippingMethods, sheet.ShippingMethod{
			Identifier: sm.Identifier,
			Label:      sm.Label,
			Detail:     sm.Detail,
			Amount:     sm.Amount,
		})
	}
	return o
}

func toSummaryItems(items []sheet.SummaryItem) []SummaryItemResponse {
	out := make([]SummaryItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, SummaryItemResponse{Label: it.Label, Amount: it.Amount.StringFixed(2), Type: string(it.Type)})
	}
	return out
}

func toShippingMethods(methods []sheet.ShippingMethod) []ShippingMethodResponse {
	out := make([]ShippingMethodResponse, 0, len(methods))
	for _, m := range methods {
		out = append(out, ShippingMethodResponse{
			Identifier: m.Identifier,
			Label:      m.Label,
			Detail:     m.Detail,
			Amount:     m.Amount.StringFixed(2),
		})
	}
	return out
}

func toPaymentRequestResponse(req *sheet.PaymentRequest) PaymentRequestResponse {
	networks := make([]string, 0, len(req.SupportedNetworks))
	for _, n := range req.SupportedNetworks {
		networks = append(networks, string(n))
	}
	return PaymentRequestResponse{
		MerchantIdentifier: req.MerchantIdentifier,
		CountryCode:        req.CountryCode,
		CurrencyCode:       req.CurrencyCode,
		SupportedNetworks:  networks,
		SummaryItems:       toSummaryItems(req.SummaryItems),
		ShippingMethods:    toShippingMethods(req.ShippingMethods),
		Total:              req.Total().StringFixed(2),
	}
}

func toCouponUpdateResponse(u sheet.CouponUpdate) CouponUpdateResponse {
	resp := CouponUpdateResponse{
		Status:       string(u.Status),
		SummaryItems: toSummaryItems(u.SummaryItems),
	}
	if u.IsAccepted() {
		return resp
	}
	resp.ShippingMethods = toShippingMethods(u.ShippingMethods)
	for _, err := range u.Errors {
		resp.Errors = append(resp.Errors, CouponErrorResponse{Code: errorCode(err), Message: err.Error()})
	}
	return resp
}

func toAttemptResponse(a *session.Attempt) AttemptResponse {
	return AttemptResponse{
		ID:        a.ID.String(),
		Code:      a.Code,
		Status:    string(a.Status),
		Reason:    a.Reason,
		Total:     a.Total.StringFixed(2),
		Currency:  a.Currency,
		CreatedAt: a.CreatedAt,
	}
}

// errorCode names an error for clients: the mapped sentinel code first, then
// a DomainError's own code.
func errorCode(err error) string {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.code
		}
	}
	var domainErr *domainErrors.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return "pricing_error"
}
