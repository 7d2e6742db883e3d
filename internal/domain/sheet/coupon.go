package sheet

import (
	"context"
	stderrors "errors"
	"slices"
	"strings"

	"github.com/cassiomorais/paysheet/internal/domain/errors"
	"github.com/shopspring/decimal"
)

// CouponService re-prices an order for a numeric coupon code.
type CouponService interface {
	ApplyCouponCode(ctx context.Context, code decimal.Decimal) (OrderDescription, error)
}

// CouponServiceFunc adapts a function to CouponService.
type CouponServiceFunc func(ctx context.Context, code decimal.Decimal) (OrderDescription, error)

func (f CouponServiceFunc) ApplyCouponCode(ctx context.Context, code decimal.Decimal) (OrderDescription, error) {
	return f(ctx, code)
}

// CouponSupport says whether a session accepts coupon codes, and through which
// service. The zero value is Unsupported.
type CouponSupport struct {
	service CouponService
}

// Unsupported disables coupon entry for a session.
func Unsupported() CouponSupport {
	return CouponSupport{}
}

// Supported enables coupon entry backed by svc. A nil svc is Unsupported.
func Supported(svc CouponService) CouponSupport {
	return CouponSupport{service: svc}
}

// Service returns the backing service and whether coupons are supported.
func (c CouponSupport) Service() (CouponService, bool) {
	return c.service, c.service != nil
}

// Bounds on a numeric coupon code. Scientific notation like "1e9999999" is
// valid decimal text but expands to millions of digits when formatted.
const (
	maxCouponExponent = 8
	maxCouponDigits   = 18
)

// ParseCouponCode reads the text typed into the sheet as a numeric code.
func ParseCouponCode(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, errors.ErrInvalidCouponCode
	}
	code, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.ErrInvalidCouponCode
	}
	if exp := code.Exponent(); exp > maxCouponExponent || exp < -maxCouponExponent {
		return decimal.Zero, errors.ErrInvalidCouponCode
	}
	if code.NumDigits() > maxCouponDigits {
		return decimal.Zero, errors.ErrInvalidCouponCode
	}
	return code, nil
}

// CouponUpdateStatus is the verdict on one coupon-change event.
type CouponUpdateStatus string

const (
	CouponAccepted CouponUpdateStatus = "accepted"
	CouponRejected CouponUpdateStatus = "rejected"
)

// CouponUpdate is the instruction handed back to the sheet after a coupon code
// changes. Accepted updates carry only summary items; rejected ones carry the
// errors and the pricing the sheet should keep showing.
type CouponUpdate struct {
	Status          CouponUpdateStatus
	Errors          []error
	SummaryItems    []SummaryItem
	ShippingMethods []ShippingMethod
}

// Accepted builds the update for a successfully re-priced request.
func Accepted(req *PaymentRequest) CouponUpdate {
	return CouponUpdate{
		Status:       CouponAccepted,
		SummaryItems: slices.Clone(req.SummaryItems),
	}
}

// Rejected builds the update for a failed attempt, falling back to req.
func Rejected(err error, fallback *PaymentRequest) CouponUpdate {
	return CouponUpdate{
		Status:          CouponRejected,
		Errors:          []error{err},
		SummaryItems:    slices.Clone(fallback.SummaryItems),
		ShippingMethods: slices.Clone(fallback.ShippingMethods),
	}
}

func (u CouponUpdate) IsAccepted() bool {
	return u.Status == CouponAccepted
}

// Err joins the update's errors; nil for accepted updates.
func (u CouponUpdate) Err() error {
	return stderrors.Join(u.Errors...)
}
