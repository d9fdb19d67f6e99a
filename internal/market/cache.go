package market

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// CachedProvider wraps another Provider and serves recent quotes from
// Redis. History requests always pass through; signal evaluation wants
// fresh bars.
type CachedProvider struct {
	next   Provider
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedProvider wraps next with a Redis quote cache. A nil client
// degrades to a transparent pass-through.
func NewCachedProvider(next Provider, client *redis.Client, ttl time.Duration, logger zerolog.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &CachedProvider{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "market_cache").Logger(),
	}
}

func quoteKey(symbol string) string {
	return fmt.Sprintf("quote:%s", symbol)
}

// GetCurrentPrice returns a cached quote when one is fresh, otherwise
// fetches from the wrapped provider and caches the result.
func (c *CachedProvider) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	if c.client != nil {
		price, err := c.client.Get(ctx, quoteKey(symbol)).Float64()
		if err == nil && price > 0 {
			return price, nil
		}
		if err != nil && err != redis.Nil {
			c.logger.Debug().Err(err).Str("symbol", symbol).Msg("quote cache read failed")
		}
	}

	price, err := c.next.GetCurrentPrice(ctx, symbol)
	if err != nil {
		return 0, err
	}

	if c.client != nil {
		if err := c.client.Set(ctx, quoteKey(symbol), price, c.ttl).Err(); err != nil {
			c.logger.Debug().Err(err).Str("symbol", symbol).Msg("quote cache write failed")
		}
	}
	return price, nil
}

// GetKlines always delegates to the wrapped provider.
func (c *CachedProvider) GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]Kline, error) {
	return c.next.GetKlines(ctx, symbol, interval, limit)
}
