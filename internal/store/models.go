package store

import "time"

// PositionRecord is a persisted position row.
type PositionRecord struct {
	ID         int        `json:"id"`
	Symbol     string     `json:"symbol"`
	Quantity   float64    `json:"quantity"`
	EntryPrice float64    `json:"entry_price"`
	EntryTime  time.Time  `json:"entry_time"`
	ExitPrice  *float64   `json:"exit_price,omitempty"`
	ExitTime   *time.Time `json:"exit_time,omitempty"`
	StopLoss   float64    `json:"stop_loss"`
	TakeProfit float64    `json:"take_profit"`
	PnL        *float64   `json:"pnl,omitempty"`
	ExitReason *string    `json:"exit_reason,omitempty"`
	Status     string     `json:"status"`
}

// OrderRecord is a persisted order row.
type OrderRecord struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Side      string    `json:"side"`
	Quantity  float64   `json:"quantity"`
	Price     float64   `json:"price"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// DailyStat is one end-of-day account snapshot.
type DailyStat struct {
	Date        time.Time `json:"date"`
	TotalEquity float64   `json:"total_equity"`
	DailyPnL    float64   `json:"daily_pnl"`
	TradesCount int       `json:"trades_count"`
}
