package session

import (
	"context"
	"slices"
	"time"

	domainErrors "github.com/cassiomorais/paysheet/internal/domain/errors"
	"github.com/cassiomorais/paysheet/internal/domain/sheet"
	"github.com/cassiomorais/paysheet/internal/infrastructure/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/cassiomorais/paysheet/internal/application/session")

// Config describes the merchant stamped onto every payment request.
type Config struct {
	MerchantIdentifier string
	CountryCode        string
	// Networks defaults to sheet.SupportedNetworks.
	Networks []sheet.Network
	// PricingTimeout bounds a single coupon pricing call. Zero means no bound
	// beyond the caller's context.
	PricingTimeout time.Duration
	// RecordTimeout bounds writing one coupon attempt to the audit trail.
	// Defaults to defaultRecordTimeout.
	RecordTimeout time.Duration
}

const defaultRecordTimeout = 2 * time.Second

// Coordinator bridges orders and coupon pricing services to the payment sheet.
type Coordinator struct {
	platform  Platform
	presenter Presenter
	recorder  AttemptRecorder
	logger    zerolog.Logger
	metrics   *observability.Metrics
	cfg       Config
}

// Option configures a Coordinator.
type Option func(*Coordinator)

func WithLogger(l zerolog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

func WithRecorder(r AttemptRecorder) Option {
	return func(c *Coordinator) {
		if r != nil {
			c.recorder = r
		}
	}
}

// NewCoordinator creates a new Coordinator.
func NewCoordinator(platform Platform, presenter Presenter, cfg Config, opts ...Option) *Coordinator {
	if len(cfg.Networks) == 0 {
		cfg.Networks = sheet.SupportedNetworks
	}
	if cfg.RecordTimeout <= 0 {
		cfg.RecordTimeout = defaultRecordTimeout
	}
	c := &Coordinator{
		platform:  platform,
		presenter: presenter,
		recorder:  NopRecorder{},
		logger:    zerolog.Nop(),
		cfg:       cfg,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// QueryPaymentCapability probes the platform. It never fails: a missing or
// misbehaving platform reports that nothing is possible.
func (c *Coordinator) QueryPaymentCapability(ctx context.Context) (capability sheet.Capability) {
	if c.platform == nil {
		return sheet.Capability{}
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Msg("payment capability probe panicked")
			capability = sheet.Capability{}
		}
	}()

	return sheet.Capability{
		CanMakePayments:         c.platform.CanMakePayments(),
		CanUseSupportedNetworks: c.platform.CanMakePaymentsUsingNetworks(slices.Clone(c.cfg.Networks)),
	}
}

// StartPayment prices order, presents the sheet and returns the live session.
// No session exists unless the request was built and the sheet presented.
func (c *Coordinator) StartPayment(ctx context.Context, order sheet.OrderDescription, coupons sheet.CouponSupport) (*Session, error) {
	ctx, span := tracer.Start(ctx, "session.start")
	defer span.End()

	if order == nil {
		return nil, c.setupFailed("convert order", domainErrors.NewValidationError("order", "is required"))
	}

	req, err := c.buildRequest(order)
	if err != nil {
		return nil, c.setupFailed("convert order", err)
	}

	s := &Session{
		id:          uuid.New().String(),
		coordinator: c,
		coupons:     coupons,
		request:     req,
	}

	if err := c.presenter.Present(ctx, req.Clone(), s); err != nil {
		return nil, c.setupFailed("present sheet", err)
	}

	_, couponsEnabled := coupons.Service()
	c.logger.Info().
		Str("session_id", s.id).
		Bool("coupons_enabled", couponsEnabled).
		Str("total", req.Total().StringFixed(2)).
		Str("currency", req.CurrencyCode).
		Msg("payment session started")
	if c.metrics != nil {
		c.metrics.SessionsStarted.WithLabelValues("success").Inc()
		c.metrics.ActiveSessions.Inc()
	}

	return s, nil
}

// buildRequest converts an order and stamps the merchant configuration.
func (c *Coordinator) buildRequest(order sheet.OrderDescription) (*sheet.PaymentRequest, error) {
	req, err := order.PaymentRequest()
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, domainErrors.NewValidationError("payment_request", "order produced no request")
	}

	req = req.Clone()
	req.MerchantIdentifier = c.cfg.MerchantIdentifier
	req.CountryCode = c.cfg.CountryCode
	req.SupportedNetworks = slices.Clone(c.cfg.Networks)

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func (c *Coordinator) setupFailed(stage string, err error) error {
	c.logger.Warn().Err(err).Str("stage", stage).Msg("payment session setup failed")
	if c.metrics != nil {
		c.metrics.SessionsStarted.WithLabelValues("failed").Inc()
	}
	return domainErrors.NewSessionSetupError(stage, err)
}
