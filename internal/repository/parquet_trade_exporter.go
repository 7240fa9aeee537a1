package repository

import (
	"context"
	"path/filepath"

	"PatternLab/internal/domain/models"
)

type tradeRow struct {
	RunID        string   `parquet:"run_id"`
	Symbol       string   `parquet:"symbol"`
	Seq          int64    `parquet:"seq"`
	Action       string   `parquet:"action"`
	EntryTime    int64    `parquet:"entry_time"`
	ExitTime     int64    `parquet:"exit_time"`
	EntryPrice   float64  `parquet:"entry_price"`
	ExitPrice    float64  `parquet:"exit_price"`
	Quantity     float64  `parquet:"quantity"`
	PositionSize float64  `parquet:"position_size"`
	PnL          float64  `parquet:"pnl"`
	Fees         float64  `parquet:"fees"`
	ExitReason   string   `parquet:"exit_reason"`
	Regime       string   `parquet:"regime"`
	IVRank       *float64 `parquet:"iv_rank,optional"`
	IVPercentile *float64 `parquet:"iv_percentile,optional"`
	PutCallRatio *float64 `parquet:"put_call_ratio,optional"`
}

// ParquetTradeExporter writes one <dir>/<run_id>_trades.parquet per run.
type ParquetTradeExporter struct {
	dir string
}

func NewParquetTradeExporter(dir string) *ParquetTradeExporter {
	return &ParquetTradeExporter{dir: dir}
}

func (e *ParquetTradeExporter) ExportTrades(ctx context.Context, r *models.BacktestResult) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rows := make([]tradeRow, len(r.Trades))
	for i, t := range r.Trades {
		row := tradeRow{
			RunID:        r.RunID,
			Symbol:       r.Symbol,
			Seq:          int64(t.Seq),
			Action:       string(t.Action),
			EntryTime:    t.EntryTime.UnixMilli(),
			ExitTime:     t.ExitTime.UnixMilli(),
			EntryPrice:   t.EntryPrice,
			ExitPrice:    t.ExitPrice,
			Quantity:     t.Quantity,
			PositionSize: t.PositionSize,
			PnL:          t.PnL,
			Fees:         t.Fees,
			ExitReason:   string(t.ExitReason),
			Regime:       string(t.Regime),
		}
		if o := t.Options; o != nil {
			row.IVRank = o.IVRank
			row.IVPercentile = o.IVPercentile
			if o.PutCallRatio.Defined {
				row.PutCallRatio = models.Float(o.PutCallRatio.Value)
			}
		}
		rows[i] = row
	}
	path := filepath.Join(e.dir, r.RunID+"_trades.parquet")
	if err := writeRows(path, rows); err != nil {
		return "", err
	}
	return path, nil
}
