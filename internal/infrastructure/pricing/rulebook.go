package pricing

import (
	"context"
	"fmt"
	"strings"
	"time"

	domainErrors "github.com/cassiomorais/paysheet/internal/domain/errors"
	"github.com/cassiomorais/paysheet/internal/domain/sheet"
	"github.com/shopspring/decimal"
)

// RuleType is how a rule computes its discount.
type RuleType string

const (
	RulePercentage RuleType = "percentage"
	RuleFixed      RuleType = "fixed"
)

// Rule maps one numeric coupon code to a discount.
type Rule struct {
	Code        decimal.Decimal
	Type        RuleType
	Value       decimal.Decimal
	Description string
}

func (r Rule) validate() error {
	switch r.Type {
	case RulePercentage:
		if !r.Value.IsPositive() || r.Value.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("rule %s: percentage must be in (0, 100]", r.Code)
		}
	case RuleFixed:
		if !r.Value.IsPositive() {
			return fmt.Errorf("rule %s: fixed amount must be positive", r.Code)
		}
	default:
		return fmt.Errorf("rule %s: unknown type %q", r.Code, r.Type)
	}
	return nil
}

// discount returns the amount taken off subtotal. Fixed discounts never
// exceed the subtotal.
func (r Rule) discount(subtotal decimal.Decimal) decimal.Decimal {
	if r.Type == RulePercentage {
		return subtotal.Mul(r.Value).Div(decimal.NewFromInt(100)).Round(2)
	}
	return decimal.Min(r.Value, subtotal)
}

func (r Rule) label() string {
	if r.Description != "" {
		return r.Description
	}
	if r.Type == RulePercentage {
		return fmt.Sprintf("Coupon %s (%s%% off)", r.Code, r.Value)
	}
	return fmt.Sprintf("Coupon %s", r.Code)
}

// ParseRule builds a Rule from its configured text form.
func ParseRule(code, ruleType, value, description string) (Rule, error) {
	c, err := sheet.ParseCouponCode(code)
	if err != nil {
		return Rule{}, fmt.Errorf("rule code %q: %w", code, err)
	}
	v, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return Rule{}, fmt.Errorf("rule %s value %q: %w", c, value, err)
	}
	r := Rule{Code: c, Type: RuleType(strings.ToLower(ruleType)), Value: v, Description: description}
	return r, r.validate()
}

// RuleBook is an in-memory Pricer backed by a fixed set of coupon rules.
type RuleBook struct {
	rules   map[string]Rule
	latency time.Duration
}

// RuleBookOption configures a RuleBook.
type RuleBookOption func(*RuleBook)

// WithLatency delays every lookup, simulating a remote pricing backend.
func WithLatency(d time.Duration) RuleBookOption {
	return func(b *RuleBook) { b.latency = d }
}

// NewRuleBook creates a RuleBook. Codes are matched by numeric value, so
// "10" and "10.0" are the same coupon.
func NewRuleBook(rules []Rule, opts ...RuleBookOption) (*RuleBook, error) {
	b := &RuleBook{rules: make(map[string]Rule, len(rules))}
	for _, r := range rules {
		if err := r.validate(); err != nil {
			return nil, err
		}
		key := r.Code.String()
		if _, dup := b.rules[key]; dup {
			return nil, fmt.Errorf("duplicate rule for coupon %s", key)
		}
		b.rules[key] = r
	}
	for _, o := range opts {
		o(b)
	}
	return b, nil
}

// Len returns the number of rules.
func (b *RuleBook) Len() int { return len(b.rules) }

func (b *RuleBook) Apply(ctx context.Context, order *sheet.Order, code decimal.Decimal) (*sheet.Order, error) {
	if b.latency > 0 {
		select {
		case <-time.After(b.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	rule, ok := b.rules[code.String()]
	if !ok {
		return nil, domainErrors.NewDomainError("coupon_rejected",
			fmt.Sprintf("coupon %s is not valid for this order", code), domainErrors.ErrCouponRejected)
	}

	return order.WithDiscount(sheet.Discount{
		Label:      rule.label(),
		CouponCode: code.String(),
		Amount:     rule.discount(order.Subtotal()),
	}), nil
}
