package bootstrap

import (
	"errors"
	"fmt"

	"github.com/cassiomorais/paysheet/internal/domain/sheet"
	"github.com/cassiomorais/paysheet/internal/infrastructure/config"
	"github.com/cassiomorais/paysheet/internal/infrastructure/observability"
	"github.com/cassiomorais/paysheet/internal/infrastructure/pricing"
	"github.com/cassiomorais/paysheet/pkg/retry"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Networks resolves configured network names.
func Networks(names []string) ([]sheet.Network, error) {
	var errs []error
	networks := make([]sheet.Network, 0, len(names))
	for _, name := range names {
		n, ok := sheet.ParseNetwork(name)
		if !ok {
			errs = append(errs, fmt.Errorf("unknown card network %q", name))
			continue
		}
		networks = append(networks, n)
	}
	return networks, errors.Join(errs...)
}

// NewPricer builds the coupon pricer for the configured mode. Mode "none"
// yields a nil Pricer, so sessions never accept coupons. A non-nil rdb wraps
// the pricer in the Redis result cache.
func NewPricer(cfg config.PricingConfig, rdb *redis.Client, metrics *observability.Metrics, logger zerolog.Logger) (pricing.Pricer, error) {
	var p pricing.Pricer

	switch cfg.Mode {
	case config.PricingModeNone:
		return nil, nil
	case config.PricingModeRules:
		rules := make([]pricing.Rule, 0, len(cfg.Rules))
		for _, r := range cfg.Rules {
			rule, err := pricing.ParseRule(r.Code, r.Type, r.Value, r.Description)
			if err != nil {
				return nil, fmt.Errorf("pricing rules: %w", err)
			}
			rules = append(rules, rule)
		}
		book, err := pricing.NewRuleBook(rules)
		if err != nil {
			return nil, fmt.Errorf("pricing rules: %w", err)
		}
		logger.Info().Int("rules", book.Len()).Msg("Coupon rule book loaded")
		p = book
	case config.PricingModeHTTP:
		p = pricing.NewClient(pricing.ClientConfig{
			BaseURL:          cfg.BaseURL,
			Timeout:          cfg.Timeout,
			Retry:            pricingRetry(cfg),
			BreakerThreshold: uint32(max(cfg.CircuitBreakerThreshold, 0)),
			BreakerTimeout:   cfg.CircuitBreakerTimeout,
		}, metrics, logger)
		logger.Info().Str("base_url", cfg.BaseURL).Msg("Using merchant pricing service")
	default:
		return nil, fmt.Errorf("unknown pricing mode %q", cfg.Mode)
	}

	if rdb != nil && cfg.CacheTTL > 0 {
		p = pricing.NewCachedPricer(p, rdb, cfg.CacheTTL, metrics, logger)
	}
	return p, nil
}

// pricingRetry turns the configured retry count into attempts: the first call
// plus max_retries retries.
func pricingRetry(cfg config.PricingConfig) retry.Config {
	return retry.Config{
		MaxAttempts:  uint(max(cfg.MaxRetries, 0)) + 1,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     cfg.Timeout,
	}
}
