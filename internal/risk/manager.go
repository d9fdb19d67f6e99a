package risk

import (
	"math"

	"github.com/rs/zerolog"
)

// Config holds the risk limits applied to every trade and to the
// account as a whole. Fractions are of current equity unless noted.
type Config struct {
	MaxRiskPerTrade   float64 // equity fraction risked between entry and stop
	MaxPositionSize   float64 // equity fraction cap on position value
	ConservativeLimit float64 // hard equity fraction cap on position value
	MaxDrawdown       float64 // fraction of initial equity
	MaxDailyLoss      float64 // fraction of current equity
	MaxPositions      int
}

// Manager sizes positions and enforces account-level limits. It keeps
// no state; callers pass current account figures on every check.
type Manager struct {
	config Config
	logger zerolog.Logger
}

// NewManager creates a risk manager with the given limits.
func NewManager(config Config, logger zerolog.Logger) *Manager {
	return &Manager{
		config: config,
		logger: logger.With().Str("component", "risk").Logger(),
	}
}

// PositionSize returns the quantity to buy at entryPrice with a
// protective stop at stopPrice. The result is the most conservative of
// the risk-based size, the position-value cap, and the hard
// conservative cap. Degenerate inputs yield 0.
func (m *Manager) PositionSize(equity, entryPrice, stopPrice float64) float64 {
	if equity <= 0 || entryPrice <= 0 || stopPrice <= 0 {
		m.logger.Warn().
			Float64("equity", equity).
			Float64("entry", entryPrice).
			Float64("stop", stopPrice).
			Msg("position sizing skipped: non-positive input")
		return 0
	}
	if stopPrice >= entryPrice {
		m.logger.Warn().
			Float64("entry", entryPrice).
			Float64("stop", stopPrice).
			Msg("position sizing skipped: stop not below entry")
		return 0
	}

	riskAmount := equity * m.config.MaxRiskPerTrade
	stopDistance := (entryPrice - stopPrice) / entryPrice

	riskBased := riskAmount / (entryPrice * stopDistance)
	valueCap := equity * m.config.MaxPositionSize / entryPrice
	conservative := equity * m.config.ConservativeLimit / entryPrice

	quantity := math.Min(riskBased, math.Min(valueCap, conservative))
	if quantity < 0 {
		quantity = 0
	}

	m.logger.Debug().
		Float64("risk_based", riskBased).
		Float64("value_cap", valueCap).
		Float64("conservative", conservative).
		Float64("quantity", quantity).
		Msg("position sized")

	return quantity
}

// CanOpenPosition reports whether another position may be opened given
// the current open count.
func (m *Manager) CanOpenPosition(openPositions int) bool {
	return openPositions < m.config.MaxPositions
}

// CheckLimits verifies account-level limits. It returns false with a
// reason when drawdown from initial equity exceeds the maximum, or
// when the day's loss exceeds the daily loss limit.
func (m *Manager) CheckLimits(equity, initialEquity, dailyPnL float64) (bool, string) {
	if initialEquity <= 0 {
		return false, "initial equity must be positive"
	}

	drawdown := (initialEquity - equity) / initialEquity
	if drawdown > m.config.MaxDrawdown {
		return false, "max drawdown exceeded"
	}

	if equity > 0 && dailyPnL < 0 && math.Abs(dailyPnL)/equity > m.config.MaxDailyLoss {
		return false, "daily loss limit exceeded"
	}

	return true, ""
}
