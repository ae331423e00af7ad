package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tomszi/quotefeed/internal/model"
)

// TickStore persists market ticks to the ticks table.
type TickStore struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewTickStore creates a TickStore backed by the given pool.
func NewTickStore(db *pgxpool.Pool, logger *slog.Logger) *TickStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &TickStore{db: db, logger: logger}
}

// InsertTicks writes a batch of ticks using pgx.Batch with
// ON CONFLICT DO NOTHING. The (instrument_id, ts) key makes replayed
// ticks idempotent; conflicts are counted, not errors.
func (s *TickStore) InsertTicks(ctx context.Context, ticks []model.MarketTick) (conflicts int, err error) {
	if len(ticks) == 0 {
		return 0, nil
	}

	start := time.Now()

	batch := &pgx.Batch{}
	for _, tick := range ticks {
		batch.Queue(`
			INSERT INTO ticks (instrument_id, ts, last, change_abs, change_pct, day_high, day_low, volume, market_cap, session, sparkline, open, high, low, close, source, source_priority)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
			ON CONFLICT (instrument_id, ts) DO NOTHING`,
			tick.InstrumentID,
			tick.TS,
			tick.Last,
			tick.ChangeAbs,
			tick.ChangePct,
			tick.DayHigh,
			tick.DayLow,
			tick.Volume,
			tick.MarketCap,
			tick.Session,
			tick.Sparkline,
			tick.OHLC.Open,
			tick.OHLC.High,
			tick.OHLC.Low,
			tick.OHLC.Close,
			tick.Source,
			tick.SourcePriority,
		)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for range ticks {
		ct, err := results.Exec()
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) {
				return conflicts, fmt.Errorf("insert tick: %s (%s)", pgErr.Message, pgErr.Code)
			}
			return conflicts, fmt.Errorf("insert tick: %w", err)
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	s.logger.Debug("inserted ticks",
		"count", len(ticks),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
	return conflicts, nil
}

// LatestTicks returns the most recent persisted tick per instrument id.
func (s *TickStore) LatestTicks(ctx context.Context, ids []string) ([]model.MarketTick, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT ON (instrument_id)
			instrument_id, ts, last, change_abs, change_pct, day_high, day_low, volume, market_cap, session, sparkline, open, high, low, close, source, source_priority
		FROM ticks
		WHERE instrument_id = ANY($1)
		ORDER BY instrument_id, ts DESC`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("query latest ticks: %w", err)
	}
	defer rows.Close()

	var out []model.MarketTick
	for rows.Next() {
		var tick model.MarketTick
		if err := rows.Scan(
			&tick.InstrumentID,
			&tick.TS,
			&tick.Last,
			&tick.ChangeAbs,
			&tick.ChangePct,
			&tick.DayHigh,
			&tick.DayLow,
			&tick.Volume,
			&tick.MarketCap,
			&tick.Session,
			&tick.Sparkline,
			&tick.OHLC.Open,
			&tick.OHLC.High,
			&tick.OHLC.Low,
			&tick.OHLC.Close,
			&tick.Source,
			&tick.SourcePriority,
		); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		out = append(out, tick)
	}
	return out, rows.Err()
}
