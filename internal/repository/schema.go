package repository

import (
	"fmt"

	domrepo "PatternLab/internal/domain/repository"
)

var schemaTimeframes = []domrepo.Timeframe{
	domrepo.TF1m, domrepo.TF5m, domrepo.TF15m, domrepo.TF1h, domrepo.TF4h, domrepo.TF1d,
}

// Schema returns the idempotent DDL for every table the stores touch.
func Schema(database string) []string {
	stmts := []string{fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database)}
	for _, tf := range schemaTimeframes {
		stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    ts DateTime64(3, 'UTC'),
    symbol LowCardinality(String),
    open Float64,
    high Float64,
    low Float64,
    close Float64,
    volume Float64
) ENGINE = ReplacingMergeTree ORDER BY (symbol, ts)`, database, tf.Table()))
	}
	stmts = append(stmts,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.options_chain (
    ts DateTime64(3, 'UTC'),
    symbol LowCardinality(String),
    payload String
) ENGINE = ReplacingMergeTree ORDER BY (symbol, ts)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.backtest_results (
    run_id String,
    symbol LowCardinality(String),
    timeframe LowCardinality(String),
    created_at DateTime64(3, 'UTC'),
    total_trades UInt32,
    total_pnl Float64,
    sharpe_ratio Float64,
    max_drawdown Float64,
    final_capital Float64,
    payload String
) ENGINE = ReplacingMergeTree ORDER BY (run_id)`, database),
	)
	return stmts
}
