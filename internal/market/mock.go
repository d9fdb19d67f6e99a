package market

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// MockProvider serves simulated quotes and history for development and
// for running the bot outside market hours.
type MockProvider struct {
	mu         sync.RWMutex
	prices     map[string]float64
	lastUpdate time.Time
	rng        *rand.Rand
	logger     zerolog.Logger
}

// NewMockProvider creates a mock provider seeded with realistic base
// prices for common symbols.
func NewMockProvider(logger zerolog.Logger) *MockProvider {
	return &MockProvider{
		prices: map[string]float64{
			"AAPL":  232.00,
			"MSFT":  428.00,
			"GOOGL": 186.00,
			"AMZN":  218.00,
			"NVDA":  134.00,
			"META":  590.00,
			"TSLA":  250.00,
			"AMD":   155.00,
			"NFLX":  720.00,
			"SPY":   565.00,
			"QQQ":   480.00,
		},
		lastUpdate: time.Now(),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:     logger.With().Str("component", "mock_market").Logger(),
	}
}

// updatePrices applies a small random walk, at most once per second.
func (m *MockProvider) updatePrices() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.lastUpdate) < time.Second {
		return
	}

	for symbol, price := range m.prices {
		change := (m.rng.Float64() - 0.5) * 0.01
		m.prices[symbol] = price * (1 + change)
	}
	m.lastUpdate = time.Now()
}

func (m *MockProvider) basePrice(symbol string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if price, ok := m.prices[symbol]; ok {
		return price
	}
	return 100.0
}

// GetCurrentPrice returns the simulated latest price for symbol.
func (m *MockProvider) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.updatePrices()
	return m.basePrice(symbol), nil
}

// GetKlines generates limit bars of simulated history ending at the
// current simulated price, oldest first.
func (m *MockProvider) GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]Kline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.updatePrices()

	basePrice := m.basePrice(symbol)
	step := intervalDuration(interval)

	if limit <= 0 {
		limit = 50
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	klines := make([]Kline, limit)
	now := time.Now()

	// Walk backwards from the current price so the newest bar closes
	// near the live quote.
	price := basePrice
	for i := limit - 1; i >= 0; i-- {
		openTime := now.Add(-time.Duration(limit-i) * step)
		closeTime := openTime.Add(step)

		volatility := 0.02
		close := price
		change := (m.rng.Float64() - 0.5) * volatility
		open := close / (1 + change)

		high := math.Max(open, close) * (1 + m.rng.Float64()*volatility*0.5)
		low := math.Min(open, close) * (1 - m.rng.Float64()*volatility*0.5)
		volume := 10000 + m.rng.Float64()*50000

		klines[i] = Kline{
			OpenTime:  openTime.UnixMilli(),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    volume,
			CloseTime: closeTime.UnixMilli(),
		}
		price = open
	}

	return klines, nil
}

func intervalDuration(interval string) time.Duration {
	switch interval {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1h":
		return time.Hour
	case "1d":
		return 24 * time.Hour
	default:
		return time.Minute
	}
}
