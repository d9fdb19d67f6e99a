package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Repository provides data access methods for positions, orders and
// daily statistics.
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// SavePosition inserts a new open position row and fills in its id.
func (r *Repository) SavePosition(ctx context.Context, rec *PositionRecord) error {
	query := `
		INSERT INTO positions (symbol, quantity, entry_price, entry_time, stop_loss, take_profit, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'OPEN')
		RETURNING id`

	err := r.db.Pool.QueryRow(ctx, query,
		rec.Symbol, rec.Quantity, rec.EntryPrice, rec.EntryTime, rec.StopLoss, rec.TakeProfit,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("save position: %w", err)
	}
	return nil
}

// ClosePosition marks the open position for symbol as closed. When no
// open row exists the update matches nothing, which keeps repeated
// close attempts harmless.
func (r *Repository) ClosePosition(ctx context.Context, symbol string, exitPrice, pnl float64, reason string, exitTime time.Time) error {
	query := `
		UPDATE positions
		SET exit_price = $2, exit_time = $3, pnl = $4, exit_reason = $5,
		    status = 'CLOSED', updated_at = CURRENT_TIMESTAMP
		WHERE symbol = $1 AND status = 'OPEN'`

	if _, err := r.db.Pool.Exec(ctx, query, symbol, exitPrice, exitTime, pnl, reason); err != nil {
		return fmt.Errorf("close position: %w", err)
	}
	return nil
}

// SaveOrder inserts an order row.
func (r *Repository) SaveOrder(ctx context.Context, rec *OrderRecord) error {
	query := `
		INSERT INTO orders (id, symbol, side, quantity, price, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if _, err := r.db.Pool.Exec(ctx, query,
		rec.ID, rec.Symbol, rec.Side, rec.Quantity, rec.Price, rec.Status, rec.CreatedAt,
	); err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	return nil
}

// GetOpenPositions returns all rows still marked OPEN.
func (r *Repository) GetOpenPositions(ctx context.Context) ([]PositionRecord, error) {
	query := `
		SELECT id, symbol, quantity, entry_price, entry_time, exit_price, exit_time,
		       stop_loss, take_profit, pnl, exit_reason, status
		FROM positions
		WHERE status = 'OPEN'
		ORDER BY entry_time DESC`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query open positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// GetPositionHistory returns the most recent closed positions.
func (r *Repository) GetPositionHistory(ctx context.Context, limit, offset int) ([]PositionRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `
		SELECT id, symbol, quantity, entry_price, entry_time, exit_price, exit_time,
		       stop_loss, take_profit, pnl, exit_reason, status
		FROM positions
		WHERE status = 'CLOSED'
		ORDER BY exit_time DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query position history: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

func scanPositions(rows pgx.Rows) ([]PositionRecord, error) {
	var records []PositionRecord
	for rows.Next() {
		var rec PositionRecord
		if err := rows.Scan(
			&rec.ID, &rec.Symbol, &rec.Quantity, &rec.EntryPrice, &rec.EntryTime,
			&rec.ExitPrice, &rec.ExitTime, &rec.StopLoss, &rec.TakeProfit,
			&rec.PnL, &rec.ExitReason, &rec.Status,
		); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SaveDailyStat upserts the end-of-day snapshot for its date.
func (r *Repository) SaveDailyStat(ctx context.Context, stat *DailyStat) error {
	query := `
		INSERT INTO daily_stats (date, total_equity, daily_pnl, trades_count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (date) DO UPDATE
		SET total_equity = EXCLUDED.total_equity,
		    daily_pnl = EXCLUDED.daily_pnl,
		    trades_count = EXCLUDED.trades_count`

	if _, err := r.db.Pool.Exec(ctx, query,
		stat.Date, stat.TotalEquity, stat.DailyPnL, stat.TradesCount,
	); err != nil {
		return fmt.Errorf("save daily stat: %w", err)
	}
	return nil
}

// GetDailyStats returns the most recent daily snapshots, newest first.
func (r *Repository) GetDailyStats(ctx context.Context, limit int) ([]DailyStat, error) {
	if limit <= 0 || limit > 365 {
		limit = 30
	}
	query := `
		SELECT date, total_equity, daily_pnl, trades_count
		FROM daily_stats
		ORDER BY date DESC
		LIMIT $1`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query daily stats: %w", err)
	}
	defer rows.Close()

	var stats []DailyStat
	for rows.Next() {
		var s DailyStat
		if err := rows.Scan(&s.Date, &s.TotalEquity, &s.DailyPnL, &s.TradesCount); err != nil {
			return nil, fmt.Errorf("scan daily stat: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
