package engine

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stock-trading-bot/internal/broker"
	"stock-trading-bot/internal/ledger"
	"stock-trading-bot/internal/market"
	"stock-trading-bot/internal/risk"
	"stock-trading-bot/internal/strategy"
)

type fakeProvider struct {
	mu       sync.Mutex
	prices   map[string]float64
	klines   map[string][]market.Kline
	priceErr map[string]error
	klineErr map[string]error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		prices:   make(map[string]float64),
		klines:   make(map[string][]market.Kline),
		priceErr: make(map[string]error),
		klineErr: make(map[string]error),
	}
}

func (f *fakeProvider) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.priceErr[symbol]; err != nil {
		return 0, err
	}
	return f.prices[symbol], nil
}

func (f *fakeProvider) GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]market.Kline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.klineErr[symbol]; err != nil {
		return nil, err
	}
	return f.klines[symbol], nil
}

type fakeGateway struct {
	mu     sync.Mutex
	orders []*broker.Order
	reject bool
}

func (f *fakeGateway) Submit(ctx context.Context, symbol string, side broker.Side, quantity, price float64) (*broker.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	order := &broker.Order{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Side:      side,
		Quantity:  quantity,
		Price:     price,
		Timestamp: time.Now(),
	}
	if f.reject {
		order.Status = broker.StatusCancelled
		f.orders = append(f.orders, order)
		return order, broker.ErrRejected
	}
	order.Status = broker.StatusFilled
	f.orders = append(f.orders, order)
	return order, nil
}

func (f *fakeGateway) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

// buySeries produces a bullish crossover with a moderate RSI for
// fast=2, slow=3, rsiPeriod=3 parameters.
func buySeries(scale float64) []market.Kline {
	closes := []float64{10, 9, 8, 7, 6, 9}
	klines := make([]market.Kline, len(closes))
	for i, c := range closes {
		klines[i] = market.Kline{Close: c * scale}
	}
	return klines
}

// holdSeries never produces an entry signal.
func holdSeries(scale float64) []market.Kline {
	closes := []float64{10, 9, 8, 7, 6, 5}
	klines := make([]market.Kline, len(closes))
	for i, c := range closes {
		klines[i] = market.Kline{Close: c * scale}
	}
	return klines
}

type testRig struct {
	engine   *Engine
	provider *fakeProvider
	gateway  *fakeGateway
	book     *ledger.Ledger
}

func newTestRig(t *testing.T, symbols []string, maxPositions int) *testRig {
	t.Helper()

	provider := newFakeProvider()
	gateway := &fakeGateway{}
	book := ledger.NewLedger(10000)

	strat := strategy.NewSMARSIStrategy(strategy.Params{
		FastWindow: 2,
		SlowWindow: 3,
		RSIPeriod:  3,
		RSILower:   25,
		RSIUpper:   75,
	})
	riskMgr := risk.NewManager(risk.Config{
		MaxRiskPerTrade:   0.005,
		MaxPositionSize:   0.10,
		ConservativeLimit: 0.05,
		MaxDrawdown:       0.15,
		MaxDailyLoss:      0.03,
		MaxPositions:      maxPositions,
	}, zerolog.Nop())

	eng, err := NewEngine(Config{
		Symbols:       symbols,
		InitialEquity: 10000,
		Interval:      "5m",
		HistoryBars:   50,
		StopLossPct:   0.05,
		TakeProfitPct: 0.10,
		CapitalBuffer: 0.95,
		CheckInterval: time.Hour,
		MarketOpen:    "09:30",
		MarketClose:   "16:00",
		TestMode:      true,
	}, strat, riskMgr, provider, gateway, book, nil, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	return &testRig{engine: eng, provider: provider, gateway: gateway, book: book}
}

func TestTickOpensOnBuySignal(t *testing.T) {
	rig := newTestRig(t, []string{"AAPL"}, 2)
	rig.provider.klines["AAPL"] = buySeries(1)
	rig.provider.prices["AAPL"] = 9

	halted, err := rig.engine.tick()
	if halted || err != nil {
		t.Fatalf("tick = (%v, %v)", halted, err)
	}

	pos, ok := rig.book.Get("AAPL")
	if !ok {
		t.Fatal("expected an open position")
	}
	if pos.EntryPrice != 9 {
		t.Errorf("EntryPrice = %v, want 9", pos.EntryPrice)
	}
	if math.Abs(pos.StopLoss-9*0.95) > 1e-9 {
		t.Errorf("StopLoss = %v", pos.StopLoss)
	}
	if math.Abs(pos.TakeProfit-9*1.10) > 1e-9 {
		t.Errorf("TakeProfit = %v", pos.TakeProfit)
	}

	// Sizing caps position value at 5% of equity.
	if value := pos.Quantity * pos.EntryPrice; value > 10000*0.05+1e-9 {
		t.Errorf("position value %v exceeds conservative cap", value)
	}
	wantEquity := 10000 - pos.Quantity*9
	if got := rig.book.Equity(); math.Abs(got-wantEquity) > 1e-9 {
		t.Errorf("Equity = %v, want %v", got, wantEquity)
	}
	if rig.gateway.count() != 1 {
		t.Errorf("orders = %d, want 1", rig.gateway.count())
	}
}

func TestTickClosesOnStopLoss(t *testing.T) {
	rig := newTestRig(t, []string{"AAPL"}, 2)
	if err := rig.book.Open(ledger.Position{
		Symbol: "AAPL", Quantity: 5, EntryPrice: 100, StopLoss: 95, TakeProfit: 110,
	}); err != nil {
		t.Fatal(err)
	}
	rig.provider.prices["AAPL"] = 94
	rig.provider.klines["AAPL"] = holdSeries(10)

	if halted, err := rig.engine.tick(); halted || err != nil {
		t.Fatalf("tick = (%v, %v)", halted, err)
	}

	if rig.book.Has("AAPL") {
		t.Error("position must be closed at the stop")
	}
	// 10000 - 500 at open, + 5*94 on exit.
	if got := rig.book.Equity(); math.Abs(got-9970) > 1e-9 {
		t.Errorf("Equity = %v, want 9970", got)
	}
	if got := rig.book.Account().RealizedPnL; math.Abs(got+30) > 1e-9 {
		t.Errorf("RealizedPnL = %v, want -30", got)
	}
}

func TestTickClosesOnTakeProfit(t *testing.T) {
	rig := newTestRig(t, []string{"AAPL"}, 2)
	if err := rig.book.Open(ledger.Position{
		Symbol: "AAPL", Quantity: 5, EntryPrice: 100, StopLoss: 95, TakeProfit: 110,
	}); err != nil {
		t.Fatal(err)
	}
	rig.provider.prices["AAPL"] = 112
	rig.provider.klines["AAPL"] = holdSeries(10)

	if halted, err := rig.engine.tick(); halted || err != nil {
		t.Fatalf("tick = (%v, %v)", halted, err)
	}

	if rig.book.Has("AAPL") {
		t.Error("position must be closed at the target")
	}
	if got := rig.book.Account().RealizedPnL; math.Abs(got-60) > 1e-9 {
		t.Errorf("RealizedPnL = %v, want 60", got)
	}
}

func TestTickFreesSlotBeforeNewEntry(t *testing.T) {
	// One slot total: the take-profit exit early in the pass must free
	// it for an entry later in the same pass.
	rig := newTestRig(t, []string{"AAPL", "MSFT"}, 1)
	if err := rig.book.Open(ledger.Position{
		Symbol: "AAPL", Quantity: 5, EntryPrice: 100, StopLoss: 95, TakeProfit: 110,
	}); err != nil {
		t.Fatal(err)
	}
	rig.provider.prices["AAPL"] = 112
	rig.provider.klines["AAPL"] = holdSeries(10)
	rig.provider.prices["MSFT"] = 9
	rig.provider.klines["MSFT"] = buySeries(1)

	if halted, err := rig.engine.tick(); halted || err != nil {
		t.Fatalf("tick = (%v, %v)", halted, err)
	}

	if rig.book.Has("AAPL") {
		t.Error("AAPL must be closed")
	}
	if !rig.book.Has("MSFT") {
		t.Error("MSFT entry must use the freed slot")
	}
	if got := rig.book.OpenCount(); got != 1 {
		t.Errorf("OpenCount = %d, want 1", got)
	}
}

func TestTickHaltsOnDrawdown(t *testing.T) {
	rig := newTestRig(t, []string{"AAPL"}, 2)

	// Book a realized loss taking equity to 8400: 16% drawdown against
	// the 15% limit.
	if err := rig.book.Open(ledger.Position{Symbol: "XXXX", Quantity: 16, EntryPrice: 100}); err != nil {
		t.Fatal(err)
	}
	rig.book.Close("XXXX", 0)

	// A valid entry signal must not fire once the halt trips.
	rig.provider.prices["AAPL"] = 9
	rig.provider.klines["AAPL"] = buySeries(1)

	halted, err := rig.engine.tick()
	if err != nil {
		t.Fatalf("tick error: %v", err)
	}
	if !halted {
		t.Fatal("expected risk halt")
	}

	if isHalted, reason := rig.engine.Halted(); !isHalted || reason != "max drawdown exceeded" {
		t.Errorf("Halted = (%v, %q)", isHalted, reason)
	}
	if rig.book.Has("AAPL") {
		t.Error("no entry may open after the halt")
	}
	if err := rig.engine.Start(); err != ErrHalted {
		t.Errorf("Start after halt = %v, want ErrHalted", err)
	}
}

func TestTickIsolatesSymbolFailures(t *testing.T) {
	rig := newTestRig(t, []string{"AAPL", "MSFT"}, 2)
	rig.provider.klineErr["AAPL"] = context.DeadlineExceeded
	rig.provider.prices["MSFT"] = 9
	rig.provider.klines["MSFT"] = buySeries(1)

	halted, err := rig.engine.tick()
	if halted || err != nil {
		t.Fatalf("tick = (%v, %v), one bad symbol must not fail the pass", halted, err)
	}

	if rig.book.Has("AAPL") {
		t.Error("failed symbol must be skipped")
	}
	if !rig.book.Has("MSFT") {
		t.Error("healthy symbol must still trade")
	}
}

func TestRejectedEntryLeavesAccountUnchanged(t *testing.T) {
	rig := newTestRig(t, []string{"AAPL"}, 2)
	rig.gateway.reject = true
	rig.provider.prices["AAPL"] = 9
	rig.provider.klines["AAPL"] = buySeries(1)

	if halted, err := rig.engine.tick(); halted || err != nil {
		t.Fatalf("tick = (%v, %v)", halted, err)
	}

	if rig.book.OpenCount() != 0 {
		t.Error("rejected order must not create a position")
	}
	if got := rig.book.Equity(); got != 10000 {
		t.Errorf("Equity = %v, want untouched 10000", got)
	}
}

func TestRejectedExitRetainsPosition(t *testing.T) {
	rig := newTestRig(t, []string{"AAPL"}, 2)
	if err := rig.book.Open(ledger.Position{
		Symbol: "AAPL", Quantity: 5, EntryPrice: 100, StopLoss: 95, TakeProfit: 110,
	}); err != nil {
		t.Fatal(err)
	}
	rig.gateway.reject = true
	rig.provider.prices["AAPL"] = 94
	rig.provider.klines["AAPL"] = holdSeries(10)

	if halted, err := rig.engine.tick(); halted || err != nil {
		t.Fatalf("tick = (%v, %v)", halted, err)
	}

	if !rig.book.Has("AAPL") {
		t.Error("position must be retained when the exit is rejected")
	}
	if got := rig.book.Account().RealizedPnL; got != 0 {
		t.Errorf("RealizedPnL = %v, want 0", got)
	}
}

func TestClosePositionWithoutPositionIsNoOp(t *testing.T) {
	rig := newTestRig(t, []string{"AAPL"}, 2)

	if err := rig.engine.closePosition(context.Background(), "AAPL", 100, "signal"); err != nil {
		t.Fatalf("closePosition = %v", err)
	}
	if rig.gateway.count() != 0 {
		t.Error("no order may be submitted for a missing position")
	}
}

func TestStartStopLifecycle(t *testing.T) {
	rig := newTestRig(t, []string{"AAPL"}, 2)
	rig.provider.klines["AAPL"] = holdSeries(1)
	rig.provider.prices["AAPL"] = 10

	if err := rig.engine.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := rig.engine.Start(); err != ErrAlreadyRunning {
		t.Errorf("second Start = %v, want ErrAlreadyRunning", err)
	}

	rig.engine.Stop()
	if rig.engine.Status().Running {
		t.Error("engine must report stopped")
	}
	rig.engine.Stop() // second stop is a no-op

	if err := rig.engine.Start(); err != nil {
		t.Fatalf("restart after stop failed: %v", err)
	}
	rig.engine.Stop()
}

func TestRestartClearsHalt(t *testing.T) {
	rig := newTestRig(t, []string{"AAPL"}, 2)
	rig.provider.klines["AAPL"] = holdSeries(1)
	rig.provider.prices["AAPL"] = 10

	rig.engine.mu.Lock()
	rig.engine.halted = true
	rig.engine.haltReason = "max drawdown exceeded"
	rig.engine.mu.Unlock()

	if err := rig.engine.Start(); err != ErrHalted {
		t.Fatalf("Start = %v, want ErrHalted", err)
	}
	if err := rig.engine.Restart(); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	if halted, _ := rig.engine.Halted(); halted {
		t.Error("Restart must clear the halt latch")
	}
	rig.engine.Stop()
}

func TestResetRequiresStoppedEngine(t *testing.T) {
	rig := newTestRig(t, []string{"AAPL"}, 2)
	rig.provider.klines["AAPL"] = holdSeries(1)
	rig.provider.prices["AAPL"] = 10

	if err := rig.engine.Start(); err != nil {
		t.Fatal(err)
	}
	if err := rig.engine.Reset(); err != ErrRunning {
		t.Errorf("Reset while running = %v, want ErrRunning", err)
	}
	rig.engine.Stop()

	if err := rig.book.Open(ledger.Position{Symbol: "AAPL", Quantity: 1, EntryPrice: 100}); err != nil {
		t.Fatal(err)
	}
	if err := rig.engine.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if rig.book.OpenCount() != 0 || rig.book.Equity() != 10000 {
		t.Errorf("account not restored: count=%d equity=%v", rig.book.OpenCount(), rig.book.Equity())
	}
}

func TestMarketOpen(t *testing.T) {
	rig := newTestRig(t, []string{"AAPL"}, 2)
	e := rig.engine
	e.cfg.TestMode = false

	// Monday 2026-03-02.
	monday := func(hour, min int) time.Time {
		return time.Date(2026, 3, 2, hour, min, 0, 0, time.UTC)
	}

	if !e.marketOpen(monday(10, 0)) {
		t.Error("mid-session weekday must be open")
	}
	if !e.marketOpen(monday(9, 30)) {
		t.Error("session open boundary must be open")
	}
	if e.marketOpen(monday(16, 0)) {
		t.Error("session close boundary must be closed")
	}
	if e.marketOpen(monday(8, 0)) {
		t.Error("pre-market must be closed")
	}

	saturday := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)
	if e.marketOpen(saturday) {
		t.Error("weekend must be closed")
	}

	e.cfg.TestMode = true
	if !e.marketOpen(saturday) {
		t.Error("test mode must bypass the gate")
	}
}

func TestTickStatusSnapshot(t *testing.T) {
	rig := newTestRig(t, []string{"AAPL"}, 2)
	rig.provider.prices["AAPL"] = 9
	rig.provider.klines["AAPL"] = buySeries(1)

	if _, err := rig.engine.tick(); err != nil {
		t.Fatal(err)
	}

	status := rig.engine.Status()
	if status.PositionCount != 1 || len(status.Positions) != 1 {
		t.Errorf("positions in status = %d/%d", status.PositionCount, len(status.Positions))
	}
	if status.TradeCount != 1 {
		t.Errorf("TradeCount = %d, want 1", status.TradeCount)
	}
	// Cash plus position value restores total equity at the entry mark.
	if math.Abs(status.TotalEquity-10000) > 1e-6 {
		t.Errorf("TotalEquity = %v, want 10000", status.TotalEquity)
	}
}
