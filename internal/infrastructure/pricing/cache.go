package pricing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cassiomorais/paysheet/internal/domain/sheet"
	"github.com/cassiomorais/paysheet/internal/infrastructure/observability"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const cacheKeyPrefix = "paysheet:coupon:"

// CachedPricer remembers successful pricings in Redis. Rejections and errors
// are never cached. Redis failures degrade to calling the wrapped Pricer.
type CachedPricer struct {
	next    Pricer
	client  *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// NewCachedPricer creates a new CachedPricer. metrics may be nil.
func NewCachedPricer(next Pricer, client *redis.Client, ttl time.Duration, metrics *observability.Metrics, logger zerolog.Logger) *CachedPricer {
	return &CachedPricer{next: next, client: client, ttl: ttl, metrics: metrics, logger: logger}
}

func (p *CachedPricer) Apply(ctx context.Context, order *sheet.Order, code decimal.Decimal) (*sheet.Order, error) {
	key, err := cacheKey(order, code)
	if err != nil {
		return nil, err
	}

	raw, err := p.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached sheet.Order
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			p.count("hit")
			cached.ID = order.ID
			return &cached, nil
		}
		p.logger.Warn().Str("key", key).Msg("discarding undecodable pricing cache entry")
		p.count("miss")
	case errors.Is(err, redis.Nil):
		p.count("miss")
	default:
		p.logger.Warn().Err(err).Msg("pricing cache read failed")
		p.count("error")
	}

	priced, err := p.next.Apply(ctx, order, code)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(priced); err == nil {
		if err := p.client.Set(context.WithoutCancel(ctx), key, data, p.ttl).Err(); err != nil {
			p.logger.Warn().Err(err).Msg("pricing cache write failed")
		}
	}
	return priced, nil
}

func (p *CachedPricer) count(result string) {
	if p.metrics != nil {
		p.metrics.PricingCache.WithLabelValues(result).Inc()
	}
}

// cacheKey identifies the priced contents of an order and the numeric coupon
// value. The order ID is left out so identical carts share entries.
func cacheKey(order *sheet.Order, code decimal.Decimal) (string, error) {
	content := order.Clone()
	content.ID = ""
	data, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("encode order for cache key: %w", err)
	}
	sum := sha256.Sum256(data)
	return cacheKeyPrefix + hex.EncodeToString(sum[:]) + ":" + code.String(), nil
}
