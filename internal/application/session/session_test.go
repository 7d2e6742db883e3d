package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cassiomorais/paysheet/internal/application/session"
	domainErrors "github.com/cassiomorais/paysheet/internal/domain/errors"
	"github.com/cassiomorais/paysheet/internal/domain/sheet"
	"github.com/cassiomorais/paysheet/internal/infrastructure/observability"
	"github.com/cassiomorais/paysheet/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConfig = session.Config{
	MerchantIdentifier: "merchant.com.kart",
	CountryCode:        "US",
}

type fixture struct {
	coordinator *session.Coordinator
	presenter   *testutil.MockPresenter
	recorder    *testutil.MockAttemptRecorder
	metrics     *observability.Metrics
}

func newFixture(t *testing.T, cfg session.Config) *fixture {
	t.Helper()
	presenter := testutil.NewMockPresenter()
	recorder := &testutil.MockAttemptRecorder{}
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	platform := &testutil.MockPlatform{CanPay: true, CanUseNetworks: true}

	return &fixture{
		coordinator: session.NewCoordinator(platform, presenter, cfg,
			session.WithRecorder(recorder),
			session.WithMetrics(metrics),
		),
		presenter: presenter,
		recorder:  recorder,
		metrics:   metrics,
	}
}

func assertItems(t *testing.T, want, got []sheet.SummaryItem) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Label, got[i].Label)
		assert.True(t, want[i].Amount.Equal(got[i].Amount), "item %d: want %s, got %s", i, want[i].Amount, got[i].Amount)
	}
}

func orderB() testutil.StaticOrder {
	return testutil.NewStaticOrder(
		[]sheet.ShippingMethod{{Identifier: "pickup", Label: "Pickup", Amount: decimal.Zero}},
		"Item A", "5", "Item B", "5",
	)
}

func TestQueryPaymentCapability(t *testing.T) {
	platform := &testutil.MockPlatform{CanPay: true, CanUseNetworks: false}
	c := session.NewCoordinator(platform, testutil.NewMockPresenter(), testConfig)

	got := c.QueryPaymentCapability(context.Background())

	assert.True(t, got.CanMakePayments)
	assert.False(t, got.CanUseSupportedNetworks)
	assert.Equal(t, sheet.SupportedNetworks, platform.RequestedBrands)
}

func TestQueryPaymentCapability_NeverFails(t *testing.T) {
	panicking := session.NewCoordinator(&testutil.MockPlatform{PanicOnProbe: true}, testutil.NewMockPresenter(), testConfig)
	assert.Equal(t, sheet.Capability{}, panicking.QueryPaymentCapability(context.Background()))

	missing := session.NewCoordinator(nil, testutil.NewMockPresenter(), testConfig)
	assert.Equal(t, sheet.Capability{}, missing.QueryPaymentCapability(context.Background()))
}

func TestStartPayment_PresentsStampedRequest(t *testing.T) {
	f := newFixture(t, testConfig)

	s, err := f.coordinator.StartPayment(context.Background(), testutil.NewTestOrder(), sheet.Unsupported())
	require.NoError(t, err)
	require.NotNil(t, s)

	presented := f.presenter.Presented(s.ID())
	require.NotNil(t, presented)
	assert.Equal(t, "merchant.com.kart", presented.MerchantIdentifier)
	assert.Equal(t, "US", presented.CountryCode)
	assert.Equal(t, sheet.SupportedNetworks, presented.SupportedNetworks)
	assert.True(t, decimal.RequireFromString("22.99").Equal(s.PaymentRequest().Total()))
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.ActiveSessions))
}

func TestStartPayment_ConversionFailure(t *testing.T) {
	f := newFixture(t, testConfig)
	order := testutil.NewTestOrder()
	order.Items = nil

	s, err := f.coordinator.StartPayment(context.Background(), order, sheet.Unsupported())

	assert.Nil(t, s)
	assert.ErrorIs(t, err, domainErrors.ErrSessionSetup)
	assert.ErrorIs(t, err, domainErrors.ErrEmptyOrder)
	assert.Equal(t, 0, f.presenter.PresentedCount())
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.SessionsStarted.WithLabelValues("failed")))
}

func TestStartPayment_NilOrder(t *testing.T) {
	f := newFixture(t, testConfig)

	_, err := f.coordinator.StartPayment(context.Background(), nil, sheet.Unsupported())

	var setupErr *domainErrors.SessionSetupError
	require.ErrorAs(t, err, &setupErr)
	assert.Equal(t, "convert order", setupErr.Stage)
}

func TestStartPayment_PresentFailure(t *testing.T) {
	f := newFixture(t, testConfig)
	f.presenter.PresentFunc = func(ctx context.Context, req *sheet.PaymentRequest, d session.Delegate) error {
		return errors.New("sheet already on screen")
	}

	s, err := f.coordinator.StartPayment(context.Background(), testutil.NewTestOrder(), sheet.Unsupported())

	assert.Nil(t, s)
	var setupErr *domainErrors.SessionSetupError
	require.ErrorAs(t, err, &setupErr)
	assert.Equal(t, "present sheet", setupErr.Stage)
}

func TestCouponCodeChanged_NonNumeric(t *testing.T) {
	f := newFixture(t, testConfig)
	svc := &testutil.MockCouponService{}
	s, err := f.coordinator.StartPayment(context.Background(), testutil.NewTestOrder(), sheet.Supported(svc))
	require.NoError(t, err)
	before := s.PaymentRequest()

	for _, code := range []string{"SAVE10", "abc", "", "10%"} {
		update := s.CouponCodeChanged(context.Background(), code)

		assert.False(t, update.IsAccepted(), code)
		assert.ErrorIs(t, update.Err(), domainErrors.ErrInvalidCouponCode)
		assertItems(t, before.SummaryItems, update.SummaryItems)
		assert.Equal(t, before.ShippingMethods, update.ShippingMethods)
		assertItems(t, before.SummaryItems, s.PaymentRequest().SummaryItems)
	}
	assert.Empty(t, svc.Calls())
}

func TestCouponCodeChanged_ServiceSuccess(t *testing.T) {
	f := newFixture(t, testConfig)
	b := orderB()
	svc := &testutil.MockCouponService{
		ApplyFunc: func(ctx context.Context, code decimal.Decimal) (sheet.OrderDescription, error) {
			return b, nil
		},
	}
	s, err := f.coordinator.StartPayment(context.Background(), testutil.NewTestOrder(), sheet.Supported(svc))
	require.NoError(t, err)

	update := s.CouponCodeChanged(context.Background(), "10.0")

	require.True(t, update.IsAccepted())
	assert.NoError(t, update.Err())
	assertItems(t, b.Request.SummaryItems, update.SummaryItems)
	assert.Len(t, update.SummaryItems, 2)
	assert.Empty(t, update.ShippingMethods)

	current := s.PaymentRequest()
	assertItems(t, b.Request.SummaryItems, current.SummaryItems)
	assert.Equal(t, b.Request.ShippingMethods, current.ShippingMethods)
	assert.Equal(t, "merchant.com.kart", current.MerchantIdentifier)

	require.Len(t, svc.Calls(), 1)
	assert.True(t, decimal.NewFromInt(10).Equal(svc.Calls()[0]))
}

func TestCouponCodeChanged_ServiceFailure(t *testing.T) {
	f := newFixture(t, testConfig)
	serviceErr := domainErrors.NewDomainError("coupon_expired", "coupon 10 expired", domainErrors.ErrCouponRejected)
	svc := &testutil.MockCouponService{
		ApplyFunc: func(ctx context.Context, code decimal.Decimal) (sheet.OrderDescription, error) {
			return nil, serviceErr
		},
	}
	s, err := f.coordinator.StartPayment(context.Background(), testutil.NewTestOrder(), sheet.Supported(svc))
	require.NoError(t, err)
	before := s.PaymentRequest()

	update := s.CouponCodeChanged(context.Background(), "10")

	assert.False(t, update.IsAccepted())
	require.Len(t, update.Errors, 1)
	assert.Same(t, serviceErr, update.Errors[0])
	assertItems(t, before.SummaryItems, update.SummaryItems)
	assert.Equal(t, before.ShippingMethods, update.ShippingMethods)
	assertItems(t, before.SummaryItems, s.PaymentRequest().SummaryItems)
}

func TestCouponCodeChanged_InvalidRepricedOrderIsRejected(t *testing.T) {
	f := newFixture(t, testConfig)
	svc := &testutil.MockCouponService{
		ApplyFunc: func(ctx context.Context, code decimal.Decimal) (sheet.OrderDescription, error) {
			return testutil.NewStaticOrder(nil, "Total", "-3"), nil
		},
	}
	s, err := f.coordinator.StartPayment(context.Background(), testutil.NewTestOrder(), sheet.Supported(svc))
	require.NoError(t, err)
	before := s.PaymentRequest()

	update := s.CouponCodeChanged(context.Background(), "99")

	assert.False(t, update.IsAccepted())
	assertItems(t, before.SummaryItems, s.PaymentRequest().SummaryItems)
}

func TestCouponCodeChanged_Unsupported(t *testing.T) {
	f := newFixture(t, testConfig)
	s, err := f.coordinator.StartPayment(context.Background(), testutil.NewTestOrder(), sheet.Unsupported())
	require.NoError(t, err)
	before := s.PaymentRequest()

	update := s.CouponCodeChanged(context.Background(), "10")

	assert.False(t, update.IsAccepted())
	assert.ErrorIs(t, update.Err(), domainErrors.ErrCouponUnsupported)
	assertItems(t, before.SummaryItems, update.SummaryItems)
	assert.Equal(t, before.ShippingMethods, update.ShippingMethods)
}

func TestCouponCodeChanged_Idempotent(t *testing.T) {
	f := newFixture(t, testConfig)
	svc := &testutil.MockCouponService{
		ApplyFunc: func(ctx context.Context, code decimal.Decimal) (sheet.OrderDescription, error) {
			return orderB(), nil
		},
	}
	s, err := f.coordinator.StartPayment(context.Background(), testutil.NewTestOrder(), sheet.Supported(svc))
	require.NoError(t, err)

	first := s.CouponCodeChanged(context.Background(), "5")
	second := s.CouponCodeChanged(context.Background(), "5")

	require.True(t, first.IsAccepted())
	require.True(t, second.IsAccepted())
	assertItems(t, first.SummaryItems, second.SummaryItems)
}

func TestCouponCodeChanged_EndToEnd(t *testing.T) {
	f := newFixture(t, testConfig)
	b := orderB()
	svc := &testutil.MockCouponService{
		ApplyFunc: func(ctx context.Context, code decimal.Decimal) (sheet.OrderDescription, error) {
			return b, nil
		},
	}
	order := testutil.NewTestOrder()
	want, err := order.PaymentRequest()
	require.NoError(t, err)

	s, err := f.coordinator.StartPayment(context.Background(), order, sheet.Supported(svc))
	require.NoError(t, err)
	assertItems(t, want.SummaryItems, s.PaymentRequest().SummaryItems)

	accepted := s.CouponCodeChanged(context.Background(), "5")
	require.True(t, accepted.IsAccepted())
	assertItems(t, b.Request.SummaryItems, accepted.SummaryItems)

	rejected := s.CouponCodeChanged(context.Background(), "abc")
	assert.ErrorIs(t, rejected.Err(), domainErrors.ErrInvalidCouponCode)
	assertItems(t, b.Request.SummaryItems, rejected.SummaryItems)
	assert.Equal(t, b.Request.ShippingMethods, rejected.ShippingMethods)
	assertItems(t, b.Request.SummaryItems, s.PaymentRequest().SummaryItems)

	attempts := f.recorder.Attempts()
	require.Len(t, attempts, 2)
	assert.Equal(t, sheet.CouponAccepted, attempts[0].Status)
	assert.Equal(t, "invalid_code", attempts[1].Reason)
	assert.Equal(t, s.ID(), attempts[1].SessionID)
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.CouponUpdates.WithLabelValues("accepted", "none")))
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.CouponUpdates.WithLabelValues("rejected", "invalid_code")))
}

func TestCouponCodeChanged_NewerEntrySupersedesInFlight(t *testing.T) {
	f := newFixture(t, testConfig)
	started := make(chan struct{})
	b := orderB()
	svc := &testutil.MockCouponService{
		ApplyFunc: func(ctx context.Context, code decimal.Decimal) (sheet.OrderDescription, error) {
			if code.Equal(decimal.NewFromInt(1)) {
				close(started)
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return b, nil
		},
	}
	s, err := f.coordinator.StartPayment(context.Background(), testutil.NewTestOrder(), sheet.Supported(svc))
	require.NoError(t, err)

	firstResult := make(chan sheet.CouponUpdate, 1)
	go func() {
		firstResult <- s.CouponCodeChanged(context.Background(), "1")
	}()
	<-started

	second := s.CouponCodeChanged(context.Background(), "2")
	require.True(t, second.IsAccepted())

	select {
	case first := <-firstResult:
		assert.ErrorIs(t, first.Err(), domainErrors.ErrCouponSuperseded)
		assert.False(t, first.IsAccepted())
	case <-time.After(2 * time.Second):
		t.Fatal("superseded call never returned")
	}
	assertItems(t, b.Request.SummaryItems, s.PaymentRequest().SummaryItems)
}

func TestCouponCodeChanged_PricingTimeout(t *testing.T) {
	cfg := testConfig
	cfg.PricingTimeout = 20 * time.Millisecond
	f := newFixture(t, cfg)
	svc := &testutil.MockCouponService{
		ApplyFunc: func(ctx context.Context, code decimal.Decimal) (sheet.OrderDescription, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	s, err := f.coordinator.StartPayment(context.Background(), testutil.NewTestOrder(), sheet.Supported(svc))
	require.NoError(t, err)

	update := s.CouponCodeChanged(context.Background(), "10")

	assert.ErrorIs(t, update.Err(), domainErrors.ErrPricingTimeout)
}

func TestFinish_RejectsLaterEventsAndDismisses(t *testing.T) {
	f := newFixture(t, testConfig)
	svc := &testutil.MockCouponService{
		ApplyFunc: func(ctx context.Context, code decimal.Decimal) (sheet.OrderDescription, error) {
			return orderB(), nil
		},
	}
	s, err := f.coordinator.StartPayment(context.Background(), testutil.NewTestOrder(), sheet.Supported(svc))
	require.NoError(t, err)
	before := s.PaymentRequest()

	s.Finish(context.Background())
	s.Finish(context.Background())

	assert.True(t, s.Finished())
	assert.Equal(t, []string{s.ID()}, f.presenter.Dismissed())
	assert.Equal(t, 0.0, promtest.ToFloat64(f.metrics.ActiveSessions))

	update := s.CouponCodeChanged(context.Background(), "10")
	assert.ErrorIs(t, update.Err(), domainErrors.ErrSessionFinished)
	assertItems(t, before.SummaryItems, update.SummaryItems)
	assert.Empty(t, svc.Calls())
}

func TestFinish_CancelsInFlightPricing(t *testing.T) {
	f := newFixture(t, testConfig)
	started := make(chan struct{})
	svc := &testutil.MockCouponService{
		ApplyFunc: func(ctx context.Context, code decimal.Decimal) (sheet.OrderDescription, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	s, err := f.coordinator.StartPayment(context.Background(), testutil.NewTestOrder(), sheet.Supported(svc))
	require.NoError(t, err)

	result := make(chan sheet.CouponUpdate, 1)
	go func() {
		result <- s.CouponCodeChanged(context.Background(), "10")
	}()
	<-started
	s.Finish(context.Background())

	select {
	case update := <-result:
		assert.ErrorIs(t, update.Err(), domainErrors.ErrSessionFinished)
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight pricing call was not cancelled")
	}
}

func TestCouponCodeChanged_RecorderFailureDoesNotChangeOutcome(t *testing.T) {
	f := newFixture(t, testConfig)
	f.recorder.RecordAttemptFunc = func(ctx context.Context, a *session.Attempt) error {
		return errors.New("database down")
	}
	svc := &testutil.MockCouponService{
		ApplyFunc: func(ctx context.Context, code decimal.Decimal) (sheet.OrderDescription, error) {
			return orderB(), nil
		},
	}
	s, err := f.coordinator.StartPayment(context.Background(), testutil.NewTestOrder(), sheet.Supported(svc))
	require.NoError(t, err)

	update := s.CouponCodeChanged(context.Background(), "5")

	assert.True(t, update.IsAccepted())
}

func TestCouponCodeChanged_StalledRecorderIsBounded(t *testing.T) {
	cfg := testConfig
	cfg.RecordTimeout = 20 * time.Millisecond
	f := newFixture(t, cfg)
	f.recorder.RecordAttemptFunc = func(ctx context.Context, a *session.Attempt) error {
		<-ctx.Done()
		return ctx.Err()
	}
	svc := &testutil.MockCouponService{
		ApplyFunc: func(ctx context.Context, code decimal.Decimal) (sheet.OrderDescription, error) {
			return orderB(), nil
		},
	}
	s, err := f.coordinator.StartPayment(context.Background(), testutil.NewTestOrder(), sheet.Supported(svc))
	require.NoError(t, err)

	done := make(chan sheet.CouponUpdate, 1)
	go func() { done <- s.CouponCodeChanged(context.Background(), "5") }()

	select {
	case update := <-done:
		assert.True(t, update.IsAccepted())
	case <-time.After(2 * time.Second):
		t.Fatal("coupon update blocked on the audit recorder")
	}
}

func TestCouponCodeChanged_HugeExponentRejectedPromptly(t *testing.T) {
	f := newFixture(t, testConfig)
	svc := &testutil.MockCouponService{}
	s, err := f.coordinator.StartPayment(context.Background(), testutil.NewTestOrder(), sheet.Supported(svc))
	require.NoError(t, err)
	before := s.PaymentRequest()

	for _, code := range []string{"1e9999999", "1e-9999999", "1E99999999"} {
		done := make(chan sheet.CouponUpdate, 1)
		go func() { done <- s.CouponCodeChanged(context.Background(), code) }()

		select {
		case update := <-done:
			assert.False(t, update.IsAccepted(), code)
			assert.ErrorIs(t, update.Err(), domainErrors.ErrInvalidCouponCode)
			assertItems(t, before.SummaryItems, update.SummaryItems)
		case <-time.After(time.Second):
			t.Fatalf("coupon %q was not rejected promptly", code)
		}
	}
	assert.Empty(t, svc.Calls())
}
