package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"PatternLab/internal/domain/models"
	domrepo "PatternLab/internal/domain/repository"
	pkgch "PatternLab/pkg/clickhouse"
	applogger "PatternLab/pkg/logger"
)

// CHResultStore keeps backtest results in ClickHouse. Summary columns are
// denormalised for listing; the full result lives in payload as JSON.
type CHResultStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHResultStore(ch *pkgch.Client, database string, l *applogger.Logger) *CHResultStore {
	return &CHResultStore{db: ch.DB(), database: database, l: l.With("ch_result_store")}
}

func (s *CHResultStore) table() string { return s.database + ".backtest_results" }

func (s *CHResultStore) Init(ctx context.Context) error {
	return pkgch.ExecAll(ctx, s.db, Schema(s.database))
}

func (s *CHResultStore) SaveResult(ctx context.Context, r *models.BacktestResult) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	q := fmt.Sprintf(`INSERT INTO %s (run_id, symbol, timeframe, created_at, total_trades, total_pnl, sharpe_ratio, max_drawdown, final_capital, payload)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table())
	_, err = s.db.ExecContext(ctx, q,
		r.RunID, r.Symbol, r.Timeframe, r.CreatedAt.UTC(),
		uint32(r.Stats.TotalTrades), r.Stats.TotalPnL, r.Stats.SharpeRatio, r.Stats.MaxDrawdown, r.Stats.FinalCapital,
		string(payload),
	)
	if err != nil {
		s.l.Error("clickhouse save_result error", applogger.String("run_id", r.RunID), applogger.Error(err))
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

func (s *CHResultStore) GetResult(ctx context.Context, runID string) (*models.BacktestResult, error) {
	q := fmt.Sprintf("SELECT payload FROM %s FINAL WHERE run_id = ? LIMIT 1", s.table())
	var payload string
	if err := s.db.QueryRowContext(ctx, q, runID).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domrepo.ErrNotFound
		}
		return nil, fmt.Errorf("get result: %w", err)
	}
	var r models.BacktestResult
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, fmt.Errorf("decode result %s: %w", runID, err)
	}
	return &r, nil
}

func (s *CHResultStore) ListResults(ctx context.Context, symbol string, limit int) ([]models.BacktestSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	var (
		where []string
		args  []interface{}
	)
	if symbol != "" {
		where = append(where, "symbol = ?")
		args = append(args, symbol)
	}
	q := fmt.Sprintf("SELECT run_id, symbol, timeframe, created_at, total_trades, total_pnl, sharpe_ratio, max_drawdown, final_capital FROM %s FINAL", s.table())
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var out []models.BacktestSummary
	for rows.Next() {
		var (
			sum    models.BacktestSummary
			trades uint32
		)
		if err := rows.Scan(&sum.RunID, &sum.Symbol, &sum.Timeframe, &sum.CreatedAt, &trades,
			&sum.TotalPnL, &sum.SharpeRatio, &sum.MaxDrawdown, &sum.FinalCapital); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		sum.TotalTrades = int(trades)
		sum.CreatedAt = sum.CreatedAt.UTC()
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *CHResultStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to the clickhouse client.
func (s *CHResultStore) Close() error { return nil }

// placeholders renders n groups of k question marks for a multi-row VALUES clause.
func placeholders(n, k int) string {
	group := "(" + strings.TrimSuffix(strings.Repeat("?, ", k), ", ") + ")"
	parts := make([]string, n)
	for i := range parts {
		parts[i] = group
	}
	return strings.Join(parts, ",")
}
