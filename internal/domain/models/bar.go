package models

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Bar represents one OHLCV record. Bars are immutable once produced by a store.
type Bar struct {
	Timestamp time.Time `json:"t"`
	Open      float64   `json:"o"`
	High      float64   `json:"h"`
	Low       float64   `json:"l"`
	Close     float64   `json:"c"`
	Volume    float64   `json:"v"`
}

// TypicalPrice returns (high+low+close)/3.
func (b Bar) TypicalPrice() float64 { return (b.High + b.Low + b.Close) / 3 }

// Validate checks the OHLC shape of a single bar.
func (b Bar) Validate() error {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite value")
		}
	}
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return fmt.Errorf("prices must be positive")
	}
	if b.High < math.Max(b.Open, b.Close) {
		return fmt.Errorf("high %.8f below body", b.High)
	}
	if b.Low > math.Min(b.Open, b.Close) {
		return fmt.Errorf("low %.8f above body", b.Low)
	}
	if b.Volume < 0 {
		return fmt.Errorf("negative volume")
	}
	return nil
}

// Series is an ordered bar sequence with optional options chains aligned by index.
type Series struct {
	Symbol    string          `json:"symbol"`
	Timeframe string          `json:"timeframe"`
	Bars      []Bar           `json:"bars"`
	Options   []*OptionsChain `json:"options,omitempty"`
}

// Closes extracts close prices.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// ValidateSeries checks that timestamps are strictly increasing and gap-free and
// that every bar is well formed. interval <= 0 infers the modal bar spacing.
// A bar is a gap when its distance to the previous bar exceeds interval*gapTolerance.
func ValidateSeries(bars []Bar, interval time.Duration, gapTolerance float64) error {
	if gapTolerance < 1 {
		gapTolerance = 1
	}
	for i, b := range bars {
		if err := b.Validate(); err != nil {
			return &DataQualityError{Index: i, Timestamp: b.Timestamp, Reason: err.Error()}
		}
		if i > 0 && !b.Timestamp.After(bars[i-1].Timestamp) {
			return &DataQualityError{Index: i, Timestamp: b.Timestamp, Reason: "timestamp not strictly increasing"}
		}
	}
	if len(bars) < 3 {
		return nil
	}
	if interval <= 0 {
		interval = ModalInterval(bars)
	}
	limit := time.Duration(float64(interval) * gapTolerance)
	for i := 1; i < len(bars); i++ {
		if d := bars[i].Timestamp.Sub(bars[i-1].Timestamp); d > limit {
			return &DataQualityError{
				Index:     i,
				Timestamp: bars[i].Timestamp,
				Reason:    fmt.Sprintf("gap of %s exceeds %s", d, limit),
			}
		}
	}
	return nil
}

// ModalInterval returns the most frequent spacing between bars; ties pick the shortest.
func ModalInterval(bars []Bar) time.Duration {
	counts := make(map[time.Duration]int)
	for i := 1; i < len(bars); i++ {
		counts[bars[i].Timestamp.Sub(bars[i-1].Timestamp)]++
	}
	keys := make([]time.Duration, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	var best time.Duration
	bestN := 0
	for _, k := range keys {
		if counts[k] > bestN {
			best, bestN = k, counts[k]
		}
	}
	return best
}
