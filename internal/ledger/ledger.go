package ledger

import (
	"errors"
	"sync"
	"time"
)

// ErrPositionExists is returned when opening a symbol that already has
// an open position.
var ErrPositionExists = errors.New("ledger: position already open for symbol")

// ErrInsufficientEquity is returned when a position's cost exceeds the
// account equity.
var ErrInsufficientEquity = errors.New("ledger: insufficient equity")

// Position is an open holding in one symbol.
type Position struct {
	Symbol        string    `json:"symbol"`
	Quantity      float64   `json:"quantity"`
	EntryPrice    float64   `json:"entry_price"`
	EntryTime     time.Time `json:"entry_time"`
	StopLoss      float64   `json:"stop_loss"`
	TakeProfit    float64   `json:"take_profit"`
	CurrentPrice  float64   `json:"current_price"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
}

// Account is a snapshot of the simulated cash account.
type Account struct {
	Equity        float64 `json:"equity"`
	InitialEquity float64 `json:"initial_equity"`
	RealizedPnL   float64 `json:"realized_pnl"`
}

// Ledger tracks open positions and the cash account. All methods are
// safe for concurrent use.
type Ledger struct {
	mu        sync.RWMutex
	positions map[string]*Position
	account   Account
}

// NewLedger creates a ledger with the given starting equity.
func NewLedger(initialEquity float64) *Ledger {
	return &Ledger{
		positions: make(map[string]*Position),
		account: Account{
			Equity:        initialEquity,
			InitialEquity: initialEquity,
		},
	}
}

// Open registers a position and debits its cost from equity.
func (l *Ledger) Open(p Position) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.positions[p.Symbol]; exists {
		return ErrPositionExists
	}
	cost := p.Quantity * p.EntryPrice
	if cost > l.account.Equity {
		return ErrInsufficientEquity
	}

	p.CurrentPrice = p.EntryPrice
	l.positions[p.Symbol] = &p
	l.account.Equity -= cost
	return nil
}

// Close removes the position for symbol at exitPrice, credits the
// proceeds and books the realized PnL. Closing a symbol with no open
// position is a no-op; the second return value reports whether a
// position was actually closed.
func (l *Ledger) Close(symbol string, exitPrice float64) (Position, float64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.positions[symbol]
	if !ok {
		return Position{}, 0, false
	}

	pnl := (exitPrice - p.EntryPrice) * p.Quantity
	l.account.Equity += p.Quantity * exitPrice
	l.account.RealizedPnL += pnl
	delete(l.positions, symbol)

	closed := *p
	closed.CurrentPrice = exitPrice
	closed.UnrealizedPnL = 0
	return closed, pnl, true
}

// MarkPrice updates the position's current price and unrealized PnL
// and returns the updated snapshot.
func (l *Ledger) MarkPrice(symbol string, price float64) (Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.positions[symbol]
	if !ok {
		return Position{}, false
	}
	p.CurrentPrice = price
	p.UnrealizedPnL = (price - p.EntryPrice) * p.Quantity
	return *p, true
}

// Get returns a snapshot of the open position for symbol.
func (l *Ledger) Get(symbol string) (Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Has reports whether symbol has an open position.
func (l *Ledger) Has(symbol string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.positions[symbol]
	return ok
}

// OpenCount returns the number of open positions.
func (l *Ledger) OpenCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.positions)
}

// Positions returns snapshots of all open positions.
func (l *Ledger) Positions() []Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p)
	}
	return out
}

// TotalUnrealizedPnL sums the unrealized PnL across open positions.
func (l *Ledger) TotalUnrealizedPnL() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := 0.0
	for _, p := range l.positions {
		total += p.UnrealizedPnL
	}
	return total
}

// Equity returns the current cash equity.
func (l *Ledger) Equity() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.account.Equity
}

// Account returns a snapshot of the cash account.
func (l *Ledger) Account() Account {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.account
}

// Reset clears all positions and restores the account to
// initialEquity.
func (l *Ledger) Reset(initialEquity float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.positions = make(map[string]*Position)
	l.account = Account{
		Equity:        initialEquity,
		InitialEquity: initialEquity,
	}
}
