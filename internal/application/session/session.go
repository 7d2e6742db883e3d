package session

import (
	"context"
	"errors"
	"sync"
	"time"

	domainErrors "github.com/cassiomorais/paysheet/internal/domain/errors"
	"github.com/cassiomorais/paysheet/internal/domain/sheet"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Session is one presented payment sheet. It owns the current payment request
// and the coupon support chosen at start.
//
// Overlapping coupon events follow cancel-and-replace: a new event cancels the
// pricing call still in flight, and a call that is no longer the latest never
// replaces the request.
type Session struct {
	id          string
	coordinator *Coordinator
	coupons     sheet.CouponSupport

	mu         sync.Mutex
	request    *sheet.PaymentRequest
	generation uint64
	cancel     context.CancelFunc
	finished   bool
}

func (s *Session) ID() string { return s.id }

// PaymentRequest returns a copy of the current request.
func (s *Session) PaymentRequest() *sheet.PaymentRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.request.Clone()
}

// Finished reports whether the sheet has finished.
func (s *Session) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// CouponCodeChanged re-prices the order for the code typed into the sheet.
// It always returns exactly one update and only replaces the current request
// when the update is accepted.
func (s *Session) CouponCodeChanged(ctx context.Context, raw string) sheet.CouponUpdate {
	code, parseErr := sheet.ParseCouponCode(raw)

	s.mu.Lock()
	current := s.request
	if s.finished {
		s.mu.Unlock()
		return s.observe(ctx, raw, sheet.Rejected(domainErrors.ErrSessionFinished, current))
	}
	if parseErr != nil {
		s.mu.Unlock()
		return s.observe(ctx, raw, sheet.Rejected(parseErr, current))
	}
	svc, ok := s.coupons.Service()
	if !ok {
		s.mu.Unlock()
		return s.observe(ctx, raw, sheet.Rejected(domainErrors.ErrCouponUnsupported, current))
	}

	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	gen := s.generation
	callCtx, cancel := s.pricingContext(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	repriced, err := s.reprice(callCtx, svc, code)

	s.mu.Lock()
	if s.finished {
		update := sheet.Rejected(domainErrors.ErrSessionFinished, s.request)
		s.mu.Unlock()
		return s.observe(ctx, raw, update)
	}
	if gen != s.generation {
		update := sheet.Rejected(domainErrors.ErrCouponSuperseded, s.request)
		s.mu.Unlock()
		return s.observe(ctx, raw, update)
	}
	s.cancel = nil
	if err != nil {
		s.mu.Unlock()
		return s.observe(ctx, raw, sheet.Rejected(err, current))
	}
	s.request = repriced
	s.mu.Unlock()

	return s.observe(ctx, raw, sheet.Accepted(repriced))
}

// Finish ends the session. Any pricing call in flight is cancelled and later
// coupon events are rejected.
func (s *Session) Finish(ctx context.Context) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	total := s.request.Total()
	s.mu.Unlock()

	c := s.coordinator
	c.presenter.Dismiss(ctx, s.id)
	c.logger.Info().Str("session_id", s.id).Str("total", total.StringFixed(2)).Msg("payment session finished")
	if c.metrics != nil {
		c.metrics.SessionsFinished.Inc()
		c.metrics.ActiveSessions.Dec()
	}
}

func (s *Session) pricingContext(ctx context.Context) (context.Context, context.CancelFunc) {
	// The sheet may abandon its own request context; the session decides
	// when a pricing call is cancelled.
	base := context.WithoutCancel(ctx)
	if timeout := s.coordinator.cfg.PricingTimeout; timeout > 0 {
		return context.WithTimeout(base, timeout)
	}
	return context.WithCancel(base)
}

func (s *Session) reprice(ctx context.Context, svc sheet.CouponService, code decimal.Decimal) (*sheet.PaymentRequest, error) {
	c := s.coordinator
	ctx, span := tracer.Start(ctx, "session.apply_coupon")
	span.SetAttributes(
		attribute.String("session.id", s.id),
		attribute.String("coupon.code", code.String()),
	)
	defer span.End()

	start := time.Now()
	order, err := svc.ApplyCouponCode(ctx, code)
	if err == nil && order == nil {
		err = domainErrors.NewDomainError("pricing_failed", "pricing service returned no order", domainErrors.ErrPricingUnavailable)
	}
	var req *sheet.PaymentRequest
	if err == nil {
		req, err = c.buildRequest(order)
	}
	if errors.Is(err, context.DeadlineExceeded) && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = domainErrors.NewDomainError("pricing_timeout", "pricing call timed out", domainErrors.ErrPricingTimeout)
	}

	result := "success"
	if err != nil {
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if c.metrics != nil {
		c.metrics.PricingDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	}
	return req, err
}

// observe logs, counts and audits an update before it goes back to the sheet.
func (s *Session) observe(ctx context.Context, raw string, update sheet.CouponUpdate) sheet.CouponUpdate {
	c := s.coordinator
	reason := rejectionReason(update)

	evt := c.logger.Info()
	if !update.IsAccepted() {
		evt = c.logger.Warn().Err(update.Err())
	}
	evt.Str("session_id", s.id).
		Str("coupon_code", raw).
		Str("status", string(update.Status)).
		Str("reason", reason).
		Msg("coupon code changed")

	if c.metrics != nil {
		c.metrics.CouponUpdates.WithLabelValues(string(update.Status), reason).Inc()
	}

	total := decimal.Zero
	if n := len(update.SummaryItems); n > 0 {
		total = update.SummaryItems[n-1].Amount
	}
	attempt := &Attempt{
		ID:        uuid.New(),
		SessionID: s.id,
		Code:      raw,
		Status:    update.Status,
		Reason:    reason,
		Total:     total,
		Currency:  s.currency(),
		CreatedAt: time.Now().UTC(),
	}
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.RecordTimeout)
	defer cancel()
	if err := c.recorder.RecordAttempt(recordCtx, attempt); err != nil {
		c.logger.Error().Err(err).Str("session_id", s.id).Msg("failed to record coupon attempt")
	}

	return update
}

func (s *Session) currency() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.request.CurrencyCode
}

func rejectionReason(update sheet.CouponUpdate) string {
	if update.IsAccepted() {
		return "none"
	}
	err := update.Err()
	switch {
	case errors.Is(err, domainErrors.ErrInvalidCouponCode):
		return "invalid_code"
	case errors.Is(err, domainErrors.ErrCouponUnsupported):
		return "unsupported"
	case errors.Is(err, domainErrors.ErrCouponSuperseded):
		return "superseded"
	case errors.Is(err, domainErrors.ErrSessionFinished):
		return "finished"
	case errors.Is(err, domainErrors.ErrCouponRejected):
		return "coupon_rejected"
	case errors.Is(err, domainErrors.ErrPricingTimeout):
		return "pricing_timeout"
	case errors.Is(err, domainErrors.ErrPricingUnavailable):
		return "pricing_unavailable"
	default:
		return "pricing_error"
	}
}
