package market

import (
	"context"
	"errors"
)

// ErrNoData is returned when a provider responds but carries no usable quotes.
var ErrNoData = errors.New("market: no data for symbol")

// Provider supplies quotes and price history for stock symbols.
type Provider interface {
	// GetCurrentPrice returns the latest traded price for symbol.
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)

	// GetKlines returns up to limit most recent bars at the given interval
	// (e.g. "1m", "5m", "1d"), oldest first.
	GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]Kline, error)
}
