package strategy

import (
	"fmt"

	"stock-trading-bot/internal/market"
)

// Signal is a trading decision derived from price history.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// Params configures the moving-average windows and oscillator bounds
// of a strategy.
type Params struct {
	FastWindow int
	SlowWindow int
	RSIPeriod  int
	RSILower   float64
	RSIUpper   float64
}

// Strategy evaluates price history into a trading signal. hasPosition
// selects between entry and exit rules for the symbol under
// evaluation.
type Strategy interface {
	Name() string
	Evaluate(klines []market.Kline, hasPosition bool) Signal
}

// SMARSIStrategy combines a moving-average crossover with an RSI
// overbought filter. Entries need a bullish crossover or sustained
// momentum while the oscillator stays below its upper bound; exits
// trigger on the bearish mirror or on overbought weakness.
type SMARSIStrategy struct {
	params Params
}

// NewSMARSIStrategy creates a strategy with the given parameters.
func NewSMARSIStrategy(params Params) *SMARSIStrategy {
	return &SMARSIStrategy{params: params}
}

func (s *SMARSIStrategy) Name() string {
	return fmt.Sprintf("SMA%d/%d+RSI%d", s.params.FastWindow, s.params.SlowWindow, s.params.RSIPeriod)
}

// Evaluate derives a signal from klines. With fewer bars than the
// largest window needs it always holds.
func (s *SMARSIStrategy) Evaluate(klines []market.Kline, hasPosition bool) Signal {
	need := s.params.SlowWindow + 1
	if s.params.RSIPeriod+1 > need {
		need = s.params.RSIPeriod + 1
	}
	if len(klines) < need {
		return SignalHold
	}

	last := len(klines) - 1
	fast := SMAAt(klines, last, s.params.FastWindow)
	slow := SMAAt(klines, last, s.params.SlowWindow)
	prevFast := SMAAt(klines, last-1, s.params.FastWindow)
	prevSlow := SMAAt(klines, last-1, s.params.SlowWindow)
	if fast == 0 || slow == 0 || prevFast == 0 || prevSlow == 0 {
		return SignalHold
	}

	rsi := RSI(klines, s.params.RSIPeriod)
	close := klines[last].Close
	prevClose := klines[last-1].Close

	if !hasPosition {
		bullishCross := fast >= slow && prevFast < prevSlow
		momentum := close > fast && close > slow && close > prevClose
		if (bullishCross || momentum) && rsi < s.params.RSIUpper {
			return SignalBuy
		}
		return SignalHold
	}

	bearishCross := fast <= slow && prevFast > prevSlow
	overboughtFade := rsi > s.params.RSIUpper && close < slow
	if bearishCross || overboughtFade {
		return SignalSell
	}
	return SignalHold
}
