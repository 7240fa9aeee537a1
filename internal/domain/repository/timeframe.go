package repository

import "time"

// Timeframe represents bar resolution buckets.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

var tfDurations = map[Timeframe]time.Duration{
	TF1m:  time.Minute,
	TF5m:  5 * time.Minute,
	TF15m: 15 * time.Minute,
	TF1h:  time.Hour,
	TF4h:  4 * time.Hour,
	TF1d:  24 * time.Hour,
}

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	_, ok := tfDurations[tf]
	return ok
}

// DefaultTimeframe returns the default timeframe.
func DefaultTimeframe() Timeframe { return TF1h }

// NormalizeTimeframe converts raw string to a valid timeframe (or default).
func NormalizeTimeframe(s string) Timeframe {
	if s == "" {
		return DefaultTimeframe()
	}
	tf := Timeframe(s)
	if IsValidTimeframe(tf) {
		return tf
	}
	return DefaultTimeframe()
}

// Duration is the bar spacing of tf, 0 when unknown.
func (tf Timeframe) Duration() time.Duration { return tfDurations[tf] }

// Table is the ClickHouse table holding bars of this timeframe.
func (tf Timeframe) Table() string {
	switch tf {
	case TF1m:
		return "bars_1m"
	case TF5m:
		return "bars_5m"
	case TF15m:
		return "bars_15m"
	case TF4h:
		return "bars_4h"
	case TF1d:
		return "bars_1d"
	default:
		return "bars_1h"
	}
}
