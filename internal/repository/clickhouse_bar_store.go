package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"PatternLab/internal/domain/models"
	domrepo "PatternLab/internal/domain/repository"
	pkgch "PatternLab/pkg/clickhouse"
	applogger "PatternLab/pkg/logger"
)

// CHBarStore implements BarStore backed by ClickHouse.
type CHBarStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHBarStore(ch *pkgch.Client, database string, l *applogger.Logger) *CHBarStore {
	return &CHBarStore{db: ch.DB(), database: database, l: l.With("ch_bar_store")}
}

func (s *CHBarStore) GetBars(ctx context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) ([]models.Bar, error) {
	start := time.Now()
	table := s.database + "." + tf.Table()
	const qtpl = `
        SELECT ts, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ? AND ts >= ? AND ts <= ?
        ORDER BY ts ASC
    `
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, table), symbol, from, to)
	if err != nil {
		s.l.Error("clickhouse get_bars query error",
			applogger.String("table", table),
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("get bars: %w", err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 1024)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			s.l.Error("clickhouse get_bars scan error", applogger.String("table", table), applogger.Error(err))
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Timestamp = b.Timestamp.UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse get_bars ok",
		applogger.String("table", table),
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

// GetOptionsChains reads JSON snapshots stored per bar timestamp. The table is shared
// across timeframes; snapshots not matching a bar are dropped by AlignOptions.
func (s *CHBarStore) GetOptionsChains(ctx context.Context, symbol string, from, to time.Time, _ domrepo.Timeframe) (map[int64]*models.OptionsChain, error) {
	table := s.database + ".options_chain"
	const qtpl = `
        SELECT ts, payload
        FROM %s FINAL
        WHERE symbol = ? AND ts >= ? AND ts <= ?
    `
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, table), symbol, from, to)
	if err != nil {
		s.l.Error("clickhouse get_options query error", applogger.String("symbol", symbol), applogger.Error(err))
		return nil, fmt.Errorf("get options chains: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]*models.OptionsChain)
	for rows.Next() {
		var (
			ts      time.Time
			payload string
		)
		if err := rows.Scan(&ts, &payload); err != nil {
			return nil, fmt.Errorf("scan options chain: %w", err)
		}
		var ch models.OptionsChain
		if err := json.Unmarshal([]byte(payload), &ch); err != nil {
			s.l.Warn("skipping malformed options snapshot",
				applogger.String("symbol", symbol),
				applogger.Int64("ts", ts.UnixMilli()),
				applogger.Error(err),
			)
			continue
		}
		out[ts.UnixMilli()] = &ch
	}
	return out, rows.Err()
}

// InsertBars writes bars in chunks with multi-row VALUES.
func (s *CHBarStore) InsertBars(ctx context.Context, symbol string, tf domrepo.Timeframe, bars []models.Bar) error {
	table := s.database + "." + tf.Table()
	const chunk = 2000
	for lo := 0; lo < len(bars); lo += chunk {
		hi := min(lo+chunk, len(bars))
		q := fmt.Sprintf("INSERT INTO %s (ts, symbol, open, high, low, close, volume) VALUES %s", table, placeholders(hi-lo, 7))
		args := make([]interface{}, 0, (hi-lo)*7)
		for _, b := range bars[lo:hi] {
			args = append(args, b.Timestamp.UTC(), symbol, b.Open, b.High, b.Low, b.Close, b.Volume)
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert bars: %w", err)
		}
	}
	return nil
}
