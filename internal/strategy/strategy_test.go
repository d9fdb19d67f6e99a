package strategy

import (
	"math"
	"testing"

	"stock-trading-bot/internal/market"
)

func klinesFromCloses(closes ...float64) []market.Kline {
	klines := make([]market.Kline, len(closes))
	for i, c := range closes {
		klines[i] = market.Kline{
			OpenTime:  int64(i) * 60000,
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			CloseTime: int64(i+1) * 60000,
		}
	}
	return klines
}

func TestSMAAt(t *testing.T) {
	klines := klinesFromCloses(1, 2, 3, 4, 5)

	if got := SMAAt(klines, 4, 3); math.Abs(got-4) > 1e-9 {
		t.Errorf("SMAAt(last, 3) = %v, want 4", got)
	}
	if got := SMAAt(klines, 3, 2); math.Abs(got-3.5) > 1e-9 {
		t.Errorf("SMAAt(3, 2) = %v, want 3.5", got)
	}
	if got := SMAAt(klines, 1, 3); got != 0 {
		t.Errorf("SMAAt with insufficient history = %v, want 0", got)
	}
	if got := SMAAt(klines, 7, 2); got != 0 {
		t.Errorf("SMAAt past end = %v, want 0", got)
	}
}

func TestRSI(t *testing.T) {
	t.Run("insufficient history is neutral", func(t *testing.T) {
		if got := RSI(klinesFromCloses(1, 2), 14); got != 50 {
			t.Errorf("RSI = %v, want 50", got)
		}
	})

	t.Run("all gains saturate high", func(t *testing.T) {
		got := RSI(klinesFromCloses(1, 2, 3, 4, 5), 4)
		if got < 99.9 {
			t.Errorf("RSI = %v, want near 100", got)
		}
	})

	t.Run("all losses saturate low", func(t *testing.T) {
		got := RSI(klinesFromCloses(5, 4, 3, 2, 1), 4)
		if got > 0.1 {
			t.Errorf("RSI = %v, want near 0", got)
		}
	})

	t.Run("mixed window", func(t *testing.T) {
		// Changes: -1, +3, -1 over period 3: avgGain=1, avgLoss=2/3.
		got := RSI(klinesFromCloses(8, 7, 6, 9, 8), 3)
		want := 100 - 100/(1+1.0/(2.0/3.0))
		if math.Abs(got-want) > 0.01 {
			t.Errorf("RSI = %v, want %v", got, want)
		}
	})
}

func TestEvaluateEntries(t *testing.T) {
	params := Params{FastWindow: 2, SlowWindow: 3, RSIPeriod: 3, RSILower: 25, RSIUpper: 75}
	strat := NewSMARSIStrategy(params)

	t.Run("bullish crossover buys", func(t *testing.T) {
		// Fast crosses above slow on the last bar while the pullback
		// keeps RSI below the upper bound.
		klines := klinesFromCloses(10, 9, 8, 7, 6, 9)
		if got := strat.Evaluate(klines, false); got != SignalBuy {
			t.Errorf("Evaluate = %v, want BUY", got)
		}
	})

	t.Run("overbought rally holds", func(t *testing.T) {
		// Pure rally: momentum condition is met but RSI saturates
		// above the upper bound.
		klines := klinesFromCloses(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
		if got := strat.Evaluate(klines, false); got != SignalHold {
			t.Errorf("Evaluate = %v, want HOLD", got)
		}
	})

	t.Run("downtrend holds", func(t *testing.T) {
		klines := klinesFromCloses(10, 9, 8, 7, 6, 5)
		if got := strat.Evaluate(klines, false); got != SignalHold {
			t.Errorf("Evaluate = %v, want HOLD", got)
		}
	})

	t.Run("insufficient history holds", func(t *testing.T) {
		klines := klinesFromCloses(10, 11, 12)
		if got := strat.Evaluate(klines, false); got != SignalHold {
			t.Errorf("Evaluate = %v, want HOLD", got)
		}
	})

	t.Run("empty history holds", func(t *testing.T) {
		if got := strat.Evaluate(nil, false); got != SignalHold {
			t.Errorf("Evaluate = %v, want HOLD", got)
		}
	})
}

func TestEvaluateExits(t *testing.T) {
	params := Params{FastWindow: 2, SlowWindow: 3, RSIPeriod: 3, RSILower: 25, RSIUpper: 75}
	strat := NewSMARSIStrategy(params)

	t.Run("bearish crossover sells", func(t *testing.T) {
		klines := klinesFromCloses(6, 7, 8, 9, 10, 7)
		if got := strat.Evaluate(klines, true); got != SignalSell {
			t.Errorf("Evaluate = %v, want SELL", got)
		}
	})

	t.Run("overbought fade sells", func(t *testing.T) {
		// Strong run-up keeps RSI high while the close slips under
		// the slow average.
		klines := klinesFromCloses(10, 20, 30, 29, 28)
		if got := strat.Evaluate(klines, true); got != SignalSell {
			t.Errorf("Evaluate = %v, want SELL", got)
		}
	})

	t.Run("healthy uptrend keeps position", func(t *testing.T) {
		// Fast stays above slow and the close stays above it too, so
		// neither exit condition fires.
		klines := klinesFromCloses(10, 10.5, 10.2, 10.8, 11, 11.2)
		if got := strat.Evaluate(klines, true); got != SignalHold {
			t.Errorf("Evaluate = %v, want HOLD", got)
		}
	})

	t.Run("same bars without position buys not sells", func(t *testing.T) {
		klines := klinesFromCloses(10, 9, 8, 7, 6, 9)
		if got := strat.Evaluate(klines, true); got == SignalBuy {
			t.Errorf("Evaluate with open position must never BUY")
		}
	})
}

func TestStrategyName(t *testing.T) {
	strat := NewSMARSIStrategy(Params{FastWindow: 10, SlowWindow: 25, RSIPeriod: 14})
	if got := strat.Name(); got != "SMA10/25+RSI14" {
		t.Errorf("Name = %q", got)
	}
}
