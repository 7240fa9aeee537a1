package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"PatternLab/internal/domain/models"
	domrepo "PatternLab/internal/domain/repository"
)

type barRow struct {
	Timestamp int64   `parquet:"t"`
	Open      float64 `parquet:"o"`
	High      float64 `parquet:"h"`
	Low       float64 `parquet:"l"`
	Close     float64 `parquet:"c"`
	Volume    float64 `parquet:"v"`
}

type optionsRow struct {
	Timestamp int64  `parquet:"t"`
	Payload   string `parquet:"payload"`
}

// ParquetBarStore reads bars from <dir>/<SYMBOL>_<tf>.parquet and options snapshots
// from <dir>/<SYMBOL>_<tf>_options.parquet. Timestamps are unix millis.
// A missing file reads as an empty range.
type ParquetBarStore struct {
	dir string
}

func NewParquetBarStore(dir string) *ParquetBarStore {
	return &ParquetBarStore{dir: dir}
}

func (s *ParquetBarStore) barsPath(symbol string, tf domrepo.Timeframe) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.parquet", strings.ToUpper(symbol), tf))
}

func (s *ParquetBarStore) optionsPath(symbol string, tf domrepo.Timeframe) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s_options.parquet", strings.ToUpper(symbol), tf))
}

func (s *ParquetBarStore) GetBars(ctx context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) ([]models.Bar, error) {
	rows, err := readRows[barRow](s.barsPath(symbol, tf))
	if err != nil {
		return nil, fmt.Errorf("get bars: %w", err)
	}
	out := make([]models.Bar, 0, len(rows))
	for _, r := range rows {
		ts := time.UnixMilli(r.Timestamp).UTC()
		if !inRange(ts, from, to) {
			continue
		}
		out = append(out, models.Bar{Timestamp: ts, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume})
	}
	return out, ctx.Err()
}

func (s *ParquetBarStore) GetOptionsChains(ctx context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) (map[int64]*models.OptionsChain, error) {
	rows, err := readRows[optionsRow](s.optionsPath(symbol, tf))
	if err != nil {
		return nil, fmt.Errorf("get options chains: %w", err)
	}
	out := make(map[int64]*models.OptionsChain, len(rows))
	for _, r := range rows {
		if !inRange(time.UnixMilli(r.Timestamp), from, to) {
			continue
		}
		var ch models.OptionsChain
		if err := json.Unmarshal([]byte(r.Payload), &ch); err != nil {
			return nil, fmt.Errorf("options snapshot at %d: %w", r.Timestamp, err)
		}
		out[r.Timestamp] = &ch
	}
	return out, ctx.Err()
}

// WriteBars replaces the bar file of symbol/tf.
func (s *ParquetBarStore) WriteBars(symbol string, tf domrepo.Timeframe, bars []models.Bar) error {
	rows := make([]barRow, len(bars))
	for i, b := range bars {
		rows[i] = barRow{Timestamp: b.Timestamp.UnixMilli(), Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
	}
	return writeRows(s.barsPath(symbol, tf), rows)
}

// WriteOptions replaces the options file of symbol/tf. Keys are unix millis.
func (s *ParquetBarStore) WriteOptions(symbol string, tf domrepo.Timeframe, chains map[int64]*models.OptionsChain) error {
	rows := make([]optionsRow, 0, len(chains))
	for ts, ch := range chains {
		b, err := json.Marshal(ch)
		if err != nil {
			return err
		}
		rows = append(rows, optionsRow{Timestamp: ts, Payload: string(b)})
	}
	return writeRows(s.optionsPath(symbol, tf), rows)
}

func readRows[T any](path string) ([]T, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return parquet.ReadFile[T](path)
}

func writeRows[T any](path string, rows []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, rows)
}

// inRange treats zero bounds as open.
func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}
