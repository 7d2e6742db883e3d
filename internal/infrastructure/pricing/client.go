package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	domainErrors "github.com/cassiomorais/paysheet/internal/domain/errors"
	"github.com/cassiomorais/paysheet/internal/domain/sheet"
	"github.com/cassiomorais/paysheet/internal/infrastructure/observability"
	"github.com/cassiomorais/paysheet/pkg/retry"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const breakerName = "merchant-pricing"

// ClientConfig configures the merchant pricing client.
type ClientConfig struct {
	BaseURL          string
	Timeout          time.Duration
	Retry            retry.Config
	BreakerThreshold uint32
	BreakerTimeout   time.Duration
}

// Client prices coupons on the merchant backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*sheet.Order]
	retry      retry.Config
	metrics    *observability.Metrics
	logger     zerolog.Logger
}

type applyRequest struct {
	Order      *sheet.Order    `json:"order"`
	CouponCode decimal.Decimal `json:"coupon_code"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusError is a non-2xx answer from the merchant backend.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("merchant pricing returned %d: %s", e.status, e.body)
}

func (e *statusError) retryable() bool {
	return e.status >= 500 || e.status == http.StatusTooManyRequests
}

// NewClient creates a new Client. metrics may be nil.
func NewClient(cfg ClientConfig, metrics *observability.Metrics, logger zerolog.Logger) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		retry:   cfg.Retry,
		metrics: metrics,
		logger:  logger,
	}

	threshold := cfg.BreakerThreshold
	if threshold == 0 {
		threshold = 5
	}
	c.breaker = gobreaker.NewCircuitBreaker[*sheet.Order](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// A rejected coupon or an abandoned call says nothing about the
			// backend's health.
			return err == nil ||
				errors.Is(err, domainErrors.ErrCouponRejected) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
			if c.metrics != nil {
				c.metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})

	c.retry.RetryIf = func(err error) bool {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return false
		}
		if errors.Is(err, domainErrors.ErrCouponRejected) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		var se *statusError
		if errors.As(err, &se) {
			return se.retryable()
		}
		return true
	}
	c.retry.OnRetry = func(n uint, err error) {
		c.logger.Debug().Err(err).Uint("attempt", n+1).Msg("retrying merchant pricing call")
	}

	return c
}

func (c *Client) Apply(ctx context.Context, order *sheet.Order, code decimal.Decimal) (*sheet.Order, error) {
	priced, err := retry.DoWithResult(ctx, c.retry, func() (*sheet.Order, error) {
		result, cbErr := c.breaker.Execute(func() (*sheet.Order, error) {
			return c.post(ctx, order, code)
		})
		c.countRequest(cbErr)
		return result, cbErr
	})
	if err == nil {
		return priced, nil
	}

	switch {
	case errors.Is(err, domainErrors.ErrCouponRejected):
		return nil, err
	case ctx.Err() != nil:
		return nil, fmt.Errorf("merchant pricing: %w", ctx.Err())
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, domainErrors.NewDomainError("pricing_unavailable", "merchant pricing circuit open", domainErrors.ErrPricingUnavailable)
	default:
		return nil, fmt.Errorf("%w: %w", domainErrors.ErrPricingUnavailable, err)
	}
}

func (c *Client) post(ctx context.Context, order *sheet.Order, code decimal.Decimal) (*sheet.Order, error) {
	body, err := json.Marshal(applyRequest{Order: order, CouponCode: code})
	if err != nil {
		return nil, fmt.Errorf("encode pricing request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/coupons/apply", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build pricing request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call merchant pricing: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var priced sheet.Order
		if err := json.NewDecoder(resp.Body).Decode(&priced); err != nil {
			return nil, fmt.Errorf("decode pricing response: %w", err)
		}
		return &priced, nil
	case resp.StatusCode == http.StatusUnprocessableEntity:
		var e errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		msg := e.Message
		if msg == "" {
			msg = fmt.Sprintf("coupon %s was rejected", code)
		}
		return nil, domainErrors.NewDomainError("coupon_rejected", msg, domainErrors.ErrCouponRejected)
	default:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(raw))}
	}
}

func (c *Client) countRequest(err error) {
	if c.metrics == nil {
		return
	}
	result := "success"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		result = "rejected"
	case errors.Is(err, domainErrors.ErrCouponRejected):
		result = "coupon_rejected"
	case err != nil:
		result = "failure"
	}
	c.metrics.CircuitBreakerRequests.WithLabelValues(breakerName, result).Inc()
}
