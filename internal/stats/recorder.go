package stats

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"stock-trading-bot/internal/engine"
	"stock-trading-bot/internal/store"
)

// StatusSource exposes the account snapshot the recorder persists.
type StatusSource interface {
	Status() engine.Status
}

// StatStore persists daily snapshots.
type StatStore interface {
	SaveDailyStat(ctx context.Context, stat *store.DailyStat) error
}

// Recorder writes an end-of-day account snapshot on a cron schedule.
// Daily PnL and trade counts are deltas against the previous snapshot.
type Recorder struct {
	source StatusSource
	store  StatStore
	cron   *cron.Cron
	logger zerolog.Logger

	lastRealized float64
	lastTrades   int
}

// NewRecorder creates a recorder; call Start to schedule it.
func NewRecorder(source StatusSource, st StatStore, logger zerolog.Logger) *Recorder {
	return &Recorder{
		source: source,
		store:  st,
		cron:   cron.New(),
		logger: logger.With().Str("component", "stats").Logger(),
	}
}

// Start schedules the snapshot job shortly before midnight.
func (r *Recorder) Start() error {
	if _, err := r.cron.AddFunc("55 23 * * *", r.snapshot); err != nil {
		return err
	}
	r.cron.Start()
	r.logger.Info().Msg("daily stats recorder scheduled")
	return nil
}

// Stop cancels the schedule and waits for a running job.
func (r *Recorder) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

func (r *Recorder) snapshot() {
	status := r.source.Status()

	stat := &store.DailyStat{
		Date:        time.Now().Truncate(24 * time.Hour),
		TotalEquity: status.TotalEquity,
		DailyPnL:    status.RealizedPnL - r.lastRealized,
		TradesCount: status.TradeCount - r.lastTrades,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.store.SaveDailyStat(ctx, stat); err != nil {
		r.logger.Error().Err(err).Msg("failed to save daily stat")
		return
	}

	r.lastRealized = status.RealizedPnL
	r.lastTrades = status.TradeCount
	r.logger.Info().
		Float64("total_equity", stat.TotalEquity).
		Float64("daily_pnl", stat.DailyPnL).
		Int("trades", stat.TradesCount).
		Msg("daily snapshot saved")
}
