package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stock-trading-bot/internal/broker"
	"stock-trading-bot/internal/events"
	"stock-trading-bot/internal/ledger"
	"stock-trading-bot/internal/market"
	"stock-trading-bot/internal/risk"
	"stock-trading-bot/internal/store"
	"stock-trading-bot/internal/strategy"
)

var (
	ErrAlreadyRunning = errors.New("engine: already running")
	ErrHalted         = errors.New("engine: halted by risk limits, restart required")
	ErrRunning        = errors.New("engine: must be stopped first")
)

// Config holds the engine's trading parameters.
type Config struct {
	Symbols       []string
	InitialEquity float64
	Interval      string // bar interval for history fetches
	HistoryBars   int
	StopLossPct   float64
	TakeProfitPct float64
	CapitalBuffer float64 // fraction of equity a new position may consume

	CheckInterval        time.Duration
	MarketClosedInterval time.Duration
	ErrorBackoff         time.Duration

	MarketOpen     string // "09:30"
	MarketClose    string // "16:00"
	IgnoreWeekends bool
	TestMode       bool // bypass the market-hours gate
}

// Store persists positions and orders. A nil Store disables
// persistence without changing trading behavior.
type Store interface {
	SavePosition(ctx context.Context, rec *store.PositionRecord) error
	ClosePosition(ctx context.Context, symbol string, exitPrice, pnl float64, reason string, exitTime time.Time) error
	SaveOrder(ctx context.Context, rec *store.OrderRecord) error
}

// Engine runs the periodic evaluate-and-trade loop. At most one
// evaluation pass runs at a time; the next pass is scheduled only
// after the current one finishes.
type Engine struct {
	cfg      Config
	strategy strategy.Strategy
	riskMgr  *risk.Manager
	provider market.Provider
	gateway  broker.Gateway
	book     *ledger.Ledger
	store    Store
	bus      *events.EventBus
	logger   zerolog.Logger

	marketOpenMins  int
	marketCloseMins int

	mu         sync.Mutex
	running    bool
	halted     bool
	haltReason string
	stopChan   chan struct{}
	wg         sync.WaitGroup
	tradeCount int

	now func() time.Time
}

// Status is a point-in-time snapshot of the engine and account.
type Status struct {
	Running       bool              `json:"running"`
	Halted        bool              `json:"halted"`
	HaltReason    string            `json:"halt_reason,omitempty"`
	Equity        float64           `json:"equity"`
	InitialEquity float64           `json:"initial_equity"`
	RealizedPnL   float64           `json:"realized_pnl"`
	UnrealizedPnL float64           `json:"unrealized_pnl"`
	TotalEquity   float64           `json:"total_equity"`
	TradeCount    int               `json:"trade_count"`
	PositionCount int               `json:"position_count"`
	Positions     []ledger.Position `json:"positions"`
	Strategy      string            `json:"strategy"`
	Symbols       []string          `json:"symbols"`
}

// NewEngine creates an engine. The store and bus may be nil.
func NewEngine(cfg Config, strat strategy.Strategy, riskMgr *risk.Manager, provider market.Provider,
	gateway broker.Gateway, book *ledger.Ledger, st Store, bus *events.EventBus, logger zerolog.Logger) (*Engine, error) {

	if len(cfg.Symbols) == 0 {
		return nil, errors.New("engine: at least one symbol required")
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Minute
	}
	if cfg.MarketClosedInterval <= 0 {
		cfg.MarketClosedInterval = 5 * time.Minute
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Minute
	}
	if cfg.HistoryBars <= 0 {
		cfg.HistoryBars = 50
	}
	if cfg.CapitalBuffer <= 0 || cfg.CapitalBuffer > 1 {
		cfg.CapitalBuffer = 0.95
	}

	openMins, err := parseClockMinutes(cfg.MarketOpen)
	if err != nil {
		return nil, fmt.Errorf("engine: bad market open time %q: %w", cfg.MarketOpen, err)
	}
	closeMins, err := parseClockMinutes(cfg.MarketClose)
	if err != nil {
		return nil, fmt.Errorf("engine: bad market close time %q: %w", cfg.MarketClose, err)
	}
	if closeMins <= openMins {
		return nil, errors.New("engine: market close must be after market open")
	}

	return &Engine{
		cfg:             cfg,
		strategy:        strat,
		riskMgr:         riskMgr,
		provider:        provider,
		gateway:         gateway,
		book:            book,
		store:           st,
		bus:             bus,
		logger:          logger.With().Str("component", "engine").Logger(),
		marketOpenMins:  openMins,
		marketCloseMins: closeMins,
		now:             time.Now,
	}, nil
}

// Start launches the trading loop. It fails when the loop is already
// running or when a risk halt is pending; a halted engine requires an
// explicit Restart.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	if e.halted {
		e.mu.Unlock()
		return ErrHalted
	}
	e.running = true
	e.stopChan = make(chan struct{})
	e.mu.Unlock()

	e.wg.Add(1)
	go e.run()

	e.logger.Info().
		Strs("symbols", e.cfg.Symbols).
		Str("strategy", e.strategy.Name()).
		Dur("interval", e.cfg.CheckInterval).
		Msg("engine started")
	if e.bus != nil {
		e.bus.Publish(events.Event{Type: events.EventEngineStarted, Data: map[string]interface{}{
			"strategy": e.strategy.Name(),
		}})
	}
	return nil
}

// Stop signals the loop to exit at the next tick boundary and waits
// for it. Stopping a stopped engine is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	select {
	case <-e.stopChan:
	default:
		close(e.stopChan)
	}
	e.mu.Unlock()

	e.wg.Wait()
	e.logger.Info().Msg("engine stopped")
	if e.bus != nil {
		e.bus.Publish(events.Event{Type: events.EventEngineStopped, Data: map[string]interface{}{}})
	}
}

// Restart clears a risk halt and starts the loop again. Open positions
// are kept; only the halt latch is released.
func (e *Engine) Restart() error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	e.halted = false
	e.haltReason = ""
	e.mu.Unlock()

	return e.Start()
}

// Reset restores the account to its initial equity and clears all
// positions and the halt latch. The engine must be stopped.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrRunning
	}
	e.book.Reset(e.cfg.InitialEquity)
	e.halted = false
	e.haltReason = ""
	e.tradeCount = 0
	e.logger.Info().Float64("equity", e.cfg.InitialEquity).Msg("account reset")
	return nil
}

// Halted reports the halt latch and its reason.
func (e *Engine) Halted() (bool, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.halted, e.haltReason
}

// Status returns a snapshot of the engine and account.
func (e *Engine) Status() Status {
	e.mu.Lock()
	running := e.running
	halted := e.halted
	haltReason := e.haltReason
	trades := e.tradeCount
	e.mu.Unlock()

	acct := e.book.Account()
	positions := e.book.Positions()
	unrealized := e.book.TotalUnrealizedPnL()

	return Status{
		Running:       running,
		Halted:        halted,
		HaltReason:    haltReason,
		Equity:        acct.Equity,
		InitialEquity: acct.InitialEquity,
		RealizedPnL:   acct.RealizedPnL,
		UnrealizedPnL: unrealized,
		TotalEquity:   acct.Equity + positionsValue(positions),
		TradeCount:    trades,
		PositionCount: len(positions),
		Positions:     positions,
		Strategy:      e.strategy.Name(),
		Symbols:       e.cfg.Symbols,
	}
}

func positionsValue(positions []ledger.Position) float64 {
	total := 0.0
	for _, p := range positions {
		price := p.CurrentPrice
		if price <= 0 {
			price = p.EntryPrice
		}
		total += p.Quantity * price
	}
	return total
}

func (e *Engine) run() {
	defer e.wg.Done()
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-timer.C:
		}

		delay := e.cfg.CheckInterval
		if !e.marketOpen(e.now()) {
			e.logger.Debug().Msg("market closed, sleeping")
			delay = e.cfg.MarketClosedInterval
		} else {
			halted, err := e.tick()
			if halted {
				return
			}
			if err != nil {
				e.logger.Error().Err(err).Msg("tick failed, backing off")
				if e.bus != nil {
					e.bus.PublishError("engine", "tick failed", err)
				}
				delay = e.cfg.ErrorBackoff
			}
		}

		timer.Reset(delay)
	}
}

// tick runs one full evaluation pass. It returns halted=true when a
// risk limit tripped, and an error only for pass-level failures that
// warrant a backoff.
func (e *Engine) tick() (halted bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.CheckInterval)
	defer cancel()

	// Exits first: refresh marks and honor stops and targets before
	// any new risk is taken.
	e.updatePositions(ctx)

	acct := e.book.Account()
	dailyPnL := e.book.TotalUnrealizedPnL()
	if ok, reason := e.riskMgr.CheckLimits(acct.Equity, acct.InitialEquity, dailyPnL); !ok {
		e.halt(reason, acct)
		return true, nil
	}

	for _, symbol := range e.cfg.Symbols {
		if err := e.evaluateSymbol(ctx, symbol); err != nil {
			e.logger.Warn().Err(err).Str("symbol", symbol).Msg("symbol evaluation failed")
		}
	}
	return false, nil
}

// halt latches the halted state. Open positions are left untouched;
// liquidation under a tripped limit is an operator decision.
func (e *Engine) halt(reason string, acct ledger.Account) {
	e.mu.Lock()
	e.halted = true
	e.haltReason = reason
	e.mu.Unlock()

	drawdown := 0.0
	if acct.InitialEquity > 0 {
		drawdown = (acct.InitialEquity - acct.Equity) / acct.InitialEquity
	}
	e.logger.Error().
		Str("reason", reason).
		Float64("equity", acct.Equity).
		Float64("drawdown", drawdown).
		Msg("risk limit breached, trading halted")
	if e.bus != nil {
		e.bus.PublishRiskHalt(reason, acct.Equity, drawdown)
	}
}

// updatePositions refreshes marks on all open positions and closes any
// that hit their stop loss or take profit. A failed quote leaves that
// position untouched until the next pass.
func (e *Engine) updatePositions(ctx context.Context) {
	for _, pos := range e.book.Positions() {
		price, err := e.provider.GetCurrentPrice(ctx, pos.Symbol)
		if err != nil || price <= 0 {
			e.logger.Warn().Err(err).Str("symbol", pos.Symbol).Msg("mark price unavailable")
			continue
		}

		updated, ok := e.book.MarkPrice(pos.Symbol, price)
		if !ok {
			continue
		}
		if e.bus != nil {
			e.bus.PublishPositionUpdate(updated.Symbol, updated.EntryPrice, price, updated.Quantity, updated.UnrealizedPnL)
		}

		switch {
		case price <= updated.StopLoss:
			e.closePosition(ctx, updated.Symbol, price, "stop_loss")
		case price >= updated.TakeProfit:
			e.closePosition(ctx, updated.Symbol, price, "take_profit")
		}
	}
}

// evaluateSymbol derives a signal for one symbol and acts on it. A
// failure here skips only this symbol for this pass.
func (e *Engine) evaluateSymbol(ctx context.Context, symbol string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluate panic: %v", r)
		}
	}()

	klines, err := e.provider.GetKlines(ctx, symbol, e.cfg.Interval, e.cfg.HistoryBars)
	if err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}

	hasPosition := e.book.Has(symbol)
	signal := e.strategy.Evaluate(klines, hasPosition)
	if signal == strategy.SignalHold {
		return nil
	}

	price, err := e.provider.GetCurrentPrice(ctx, symbol)
	if err != nil {
		return fmt.Errorf("fetch quote: %w", err)
	}
	if price <= 0 {
		return fmt.Errorf("bad quote %v", price)
	}

	e.logger.Info().
		Str("symbol", symbol).
		Str("signal", string(signal)).
		Float64("price", price).
		Msg("signal generated")
	if e.bus != nil {
		e.bus.PublishSignal(e.strategy.Name(), symbol, string(signal), price)
	}

	switch {
	case signal == strategy.SignalBuy && !hasPosition:
		return e.openPosition(ctx, symbol, price)
	case signal == strategy.SignalSell && hasPosition:
		return e.closePosition(ctx, symbol, price, "signal")
	}
	return nil
}

// openPosition sizes, submits and books a new long position. Rejected
// or zero-sized entries leave the account untouched.
func (e *Engine) openPosition(ctx context.Context, symbol string, price float64) error {
	if !e.riskMgr.CanOpenPosition(e.book.OpenCount()) {
		e.logger.Debug().Str("symbol", symbol).Msg("position limit reached, entry skipped")
		return nil
	}

	stopLoss := price * (1 - e.cfg.StopLossPct)
	takeProfit := price * (1 + e.cfg.TakeProfitPct)

	quantity := e.riskMgr.PositionSize(e.book.Equity(), price, stopLoss)
	if quantity <= 0 {
		e.logger.Debug().Str("symbol", symbol).Msg("position sized to zero, entry skipped")
		return nil
	}

	if cost := quantity * price; cost > e.book.Equity()*e.cfg.CapitalBuffer {
		e.logger.Warn().
			Str("symbol", symbol).
			Float64("cost", cost).
			Float64("equity", e.book.Equity()).
			Msg("insufficient free capital, entry skipped")
		return nil
	}

	order, err := e.gateway.Submit(ctx, symbol, broker.SideBuy, quantity, price)
	if order != nil {
		e.persistOrder(order)
	}
	if err != nil {
		e.logger.Warn().Err(err).Str("symbol", symbol).Msg("entry order rejected")
		return nil
	}

	position := ledger.Position{
		Symbol:     symbol,
		Quantity:   order.Quantity,
		EntryPrice: order.Price,
		EntryTime:  order.Timestamp,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
	}
	if err := e.book.Open(position); err != nil {
		e.logger.Error().Err(err).Str("symbol", symbol).Msg("failed to book filled entry")
		return err
	}

	e.mu.Lock()
	e.tradeCount++
	e.mu.Unlock()

	e.persistOpen(&position)
	e.logger.Info().
		Str("symbol", symbol).
		Float64("price", order.Price).
		Float64("quantity", order.Quantity).
		Float64("stop_loss", stopLoss).
		Float64("take_profit", takeProfit).
		Msg("position opened")
	if e.bus != nil {
		e.bus.PublishTradeOpened(symbol, order.Price, order.Quantity, stopLoss, takeProfit)
	}
	return nil
}

// closePosition exits the open position for symbol at price. Closing a
// symbol with no position is a no-op.
func (e *Engine) closePosition(ctx context.Context, symbol string, price float64, reason string) error {
	position, ok := e.book.Get(symbol)
	if !ok {
		return nil
	}

	order, err := e.gateway.Submit(ctx, symbol, broker.SideSell, position.Quantity, price)
	if order != nil {
		e.persistOrder(order)
	}
	if err != nil {
		e.logger.Warn().Err(err).Str("symbol", symbol).Msg("exit order rejected, position retained")
		return nil
	}

	closed, pnl, ok := e.book.Close(symbol, price)
	if !ok {
		return nil
	}

	e.mu.Lock()
	e.tradeCount++
	e.mu.Unlock()

	e.persistClose(symbol, price, pnl, reason)
	e.logger.Info().
		Str("symbol", symbol).
		Str("reason", reason).
		Float64("entry_price", closed.EntryPrice).
		Float64("exit_price", price).
		Float64("pnl", pnl).
		Msg("position closed")
	if e.bus != nil {
		e.bus.PublishTradeClosed(symbol, reason, closed.EntryPrice, price, closed.Quantity, pnl)
	}
	return nil
}

// Persistence is best effort: a dead database must never stop the
// trading loop.

func (e *Engine) persistOpen(p *ledger.Position) {
	if e.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rec := &store.PositionRecord{
		Symbol:     p.Symbol,
		Quantity:   p.Quantity,
		EntryPrice: p.EntryPrice,
		EntryTime:  p.EntryTime,
		StopLoss:   p.StopLoss,
		TakeProfit: p.TakeProfit,
		Status:     "OPEN",
	}
	if err := e.store.SavePosition(ctx, rec); err != nil {
		e.logger.Error().Err(err).Str("symbol", p.Symbol).Msg("failed to persist position")
	}
}

func (e *Engine) persistClose(symbol string, exitPrice, pnl float64, reason string) {
	if e.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.store.ClosePosition(ctx, symbol, exitPrice, pnl, reason, time.Now()); err != nil {
		e.logger.Error().Err(err).Str("symbol", symbol).Msg("failed to persist position close")
	}
}

func (e *Engine) persistOrder(order *broker.Order) {
	if e.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rec := &store.OrderRecord{
		ID:        order.ID,
		Symbol:    order.Symbol,
		Side:      string(order.Side),
		Quantity:  order.Quantity,
		Price:     order.Price,
		Status:    string(order.Status),
		CreatedAt: order.Timestamp,
	}
	if err := e.store.SaveOrder(ctx, rec); err != nil {
		e.logger.Error().Err(err).Str("order_id", order.ID).Msg("failed to persist order")
	}
}
