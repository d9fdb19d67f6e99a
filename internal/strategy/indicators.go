package strategy

import "stock-trading-bot/internal/market"

// SMA calculates the simple moving average of the last period closes.
// Returns 0 when there is not enough history.
func SMA(klines []market.Kline, period int) float64 {
	return SMAAt(klines, len(klines)-1, period)
}

// SMAAt calculates the simple moving average of the period closes
// ending at index idx. Returns 0 when there is not enough history.
func SMAAt(klines []market.Kline, idx int, period int) float64 {
	if period <= 0 || idx < 0 || idx >= len(klines) || idx+1 < period {
		return 0
	}
	sum := 0.0
	for i := idx - period + 1; i <= idx; i++ {
		sum += klines[i].Close
	}
	return sum / float64(period)
}

// RSI calculates the Relative Strength Index over the last period
// bar-to-bar changes. Returns 50 (neutral) when there is not enough
// history.
func RSI(klines []market.Kline, period int) float64 {
	if period <= 0 || len(klines) < period+1 {
		return 50
	}

	gains := 0.0
	losses := 0.0
	for i := len(klines) - period; i < len(klines); i++ {
		change := klines[i].Close - klines[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	// Epsilon keeps the ratio finite on loss-free windows.
	rs := avgGain / (avgLoss + 1e-10)
	return 100 - 100/(1+rs)
}
