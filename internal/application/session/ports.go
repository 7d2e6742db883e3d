package session

import (
	"context"
	"time"

	"github.com/cassiomorais/paysheet/internal/domain/sheet"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Platform answers whether the payer can use the payment sheet at all.
type Platform interface {
	CanMakePayments() bool
	CanMakePaymentsUsingNetworks(networks []sheet.Network) bool
}

// Delegate receives the sheet's lifecycle and coupon events. A Session is the
// only production implementation.
type Delegate interface {
	ID() string
	PaymentRequest() *sheet.PaymentRequest
	CouponCodeChanged(ctx context.Context, code string) sheet.CouponUpdate
	Finish(ctx context.Context)
}

// Presenter shows a payment sheet and routes its events to the delegate until
// the sheet is dismissed.
type Presenter interface {
	Present(ctx context.Context, req *sheet.PaymentRequest, delegate Delegate) error
	Dismiss(ctx context.Context, sessionID string)
}

// Attempt is the audit record of one coupon-change event.
type Attempt struct {
	ID        uuid.UUID
	SessionID string
	Code      string
	Status    sheet.CouponUpdateStatus
	Reason    string
	Total     decimal.Decimal
	Currency  string
	CreatedAt time.Time
}

// AttemptRecorder persists coupon attempts. Recording is best effort and never
// changes the outcome returned to the sheet.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, attempt *Attempt) error
}

// NopRecorder discards attempts.
type NopRecorder struct{}

func (NopRecorder) RecordAttempt(context.Context, *Attempt) error { return nil }
