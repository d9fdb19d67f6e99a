package market

import "time"

// Kline represents a single OHLCV bar of price history.
type Kline struct {
	OpenTime  int64   `json:"open_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	CloseTime int64   `json:"close_time"`
}

// OpenedAt returns the bar open time as a time.Time.
func (k Kline) OpenedAt() time.Time {
	return time.Unix(k.OpenTime/1000, 0)
}
