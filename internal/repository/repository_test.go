package repository

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"PatternLab/internal/domain/models"
	domrepo "PatternLab/internal/domain/repository"
)

func sampleBars(n int) []models.Bar {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Bar, n)
	for i := range out {
		p := 100 + float64(i)
		out[i] = models.Bar{Timestamp: t0.Add(time.Duration(i) * time.Hour), Open: p, High: p + 1, Low: p - 1, Close: p + 0.5, Volume: 1000}
	}
	return out
}

func TestParquetBarStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewParquetBarStore(dir)
	bars := sampleBars(10)
	if err := s.WriteBars("btcusdt", domrepo.TF1h, bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	got, err := s.GetBars(context.Background(), "BTCUSDT", bars[2].Timestamp, bars[5].Timestamp, domrepo.TF1h)
	if err != nil {
		t.Fatalf("GetBars: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 bars in range, got %d", len(got))
	}
	if !got[0].Timestamp.Equal(bars[2].Timestamp) || got[0].Close != bars[2].Close {
		t.Fatalf("unexpected first bar %+v", got[0])
	}

	all, err := s.GetBars(context.Background(), "BTCUSDT", time.Time{}, time.Time{}, domrepo.TF1h)
	if err != nil || len(all) != 10 {
		t.Fatalf("open range: %d bars, err %v", len(all), err)
	}
}

func TestParquetBarStoreMissingFile(t *testing.T) {
	s := NewParquetBarStore(t.TempDir())
	bars, err := s.GetBars(context.Background(), "ETH", time.Time{}, time.Time{}, domrepo.TF1d)
	if err != nil || len(bars) != 0 {
		t.Fatalf("missing file should read empty, got %d bars err %v", len(bars), err)
	}
	chains, err := s.GetOptionsChains(context.Background(), "ETH", time.Time{}, time.Time{}, domrepo.TF1d)
	if err != nil || len(chains) != 0 {
		t.Fatalf("missing options should read empty, got %d err %v", len(chains), err)
	}
}

func TestParquetOptionsRoundTrip(t *testing.T) {
	s := NewParquetBarStore(t.TempDir())
	bars := sampleBars(3)
	chains := map[int64]*models.OptionsChain{
		bars[1].Timestamp.UnixMilli(): {CurrentIV: 0.4, IV52wHigh: 0.8, IV52wLow: 0.2, Skew: map[string]float64{"25d": -0.03}},
	}
	if err := s.WriteOptions("SPY", domrepo.TF1h, chains); err != nil {
		t.Fatalf("WriteOptions: %v", err)
	}
	got, err := s.GetOptionsChains(context.Background(), "SPY", time.Time{}, time.Time{}, domrepo.TF1h)
	if err != nil {
		t.Fatalf("GetOptionsChains: %v", err)
	}
	aligned := models.AlignOptions(bars, got)
	if aligned[0] != nil || aligned[2] != nil || aligned[1] == nil {
		t.Fatalf("unexpected alignment %v", aligned)
	}
	if aligned[1].CurrentIV != 0.4 || aligned[1].Skew["25d"] != -0.03 {
		t.Fatalf("payload not preserved: %+v", aligned[1])
	}
}

func TestParquetTradeExporter(t *testing.T) {
	dir := t.TempDir()
	bars := sampleBars(2)
	r := &models.BacktestResult{
		RunID:  "run-1",
		Symbol: "BTC",
		Trades: []models.SimulatedTrade{
			{Seq: 1, Action: models.Buy, EntryTime: bars[0].Timestamp, ExitTime: bars[1].Timestamp, EntryPrice: 100, ExitPrice: 101, PnL: 10, ExitReason: models.ExitTarget, Regime: models.Unclassified,
				Options: &models.OptionsContext{IVRank: models.Float(0.5), PutCallRatio: models.UndefinedRatio()}},
			{Seq: 2, Action: models.Sell, EntryTime: bars[1].Timestamp, ExitTime: bars[1].Timestamp, EntryPrice: 101, ExitPrice: 101, ExitReason: models.ExitEnd},
		},
	}
	path, err := NewParquetTradeExporter(dir).ExportTrades(context.Background(), r)
	if err != nil {
		t.Fatalf("ExportTrades: %v", err)
	}
	if path != filepath.Join(dir, "run-1_trades.parquet") {
		t.Fatalf("unexpected path %s", path)
	}
	rows, err := parquet.ReadFile[tradeRow](path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(rows) != 2 || rows[0].Action != "BUY" || rows[1].ExitReason != "end_of_data" {
		t.Fatalf("unexpected rows %+v", rows)
	}
	if rows[0].IVRank == nil || *rows[0].IVRank != 0.5 || rows[0].PutCallRatio != nil {
		t.Fatalf("options columns wrong: %+v", rows[0])
	}
	if rows[1].IVRank != nil {
		t.Fatalf("trade without options should have null iv_rank")
	}
}

func TestMemoryResultStore(t *testing.T) {
	s := NewMemoryResultStore()
	ctx := context.Background()
	t0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, sym := range []string{"BTC", "ETH", "BTC"} {
		r := &models.BacktestResult{RunID: string(rune('a' + i)), Symbol: sym, CreatedAt: t0.Add(time.Duration(i) * time.Minute)}
		if err := s.SaveResult(ctx, r); err != nil {
			t.Fatalf("SaveResult: %v", err)
		}
	}
	list, _ := s.ListResults(ctx, "BTC", 10)
	if len(list) != 2 || list[0].RunID != "c" || list[1].RunID != "a" {
		t.Fatalf("expected newest first, got %+v", list)
	}
	list, _ = s.ListResults(ctx, "", 1)
	if len(list) != 1 || list[0].RunID != "c" {
		t.Fatalf("limit not applied: %+v", list)
	}
	if _, err := s.GetResult(ctx, "zz"); !errors.Is(err, domrepo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSchemaCoversTables(t *testing.T) {
	ddl := strings.Join(Schema("patternlab"), "\n")
	for _, want := range []string{"patternlab.bars_1m", "patternlab.bars_1d", "patternlab.options_chain", "patternlab.backtest_results"} {
		if !strings.Contains(ddl, want) {
			t.Fatalf("schema missing %s", want)
		}
	}
}

func TestPlaceholders(t *testing.T) {
	if got := placeholders(2, 3); got != "(?, ?, ?),(?, ?, ?)" {
		t.Fatalf("placeholders = %q", got)
	}
}
