package models

import "time"

// RegimeLabel names a market regime.
type RegimeLabel string

const (
	HighVolatility RegimeLabel = "high_volatility"
	LowVolatility  RegimeLabel = "low_volatility"
	Trending       RegimeLabel = "trending"
	Ranging        RegimeLabel = "ranging"

	// Unclassified groups trades entered outside any regime.
	Unclassified RegimeLabel = "unclassified"
)

// Regime is a contiguous [Start, End) interval derived from price history.
type Regime struct {
	Label      RegimeLabel `json:"label"`
	Start      time.Time   `json:"start"`
	End        time.Time   `json:"end"`
	StartIndex int         `json:"start_index"`
	EndIndex   int         `json:"end_index"`
}

// Contains reports whether t falls in [Start, End).
func (r Regime) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}
