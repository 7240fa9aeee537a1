package backtest

import (
	"fmt"
	"time"
)

// ExitPolicy decides when a simulated trade closes.
type ExitPolicy string

const (
	// FixedHorizon exits at the close Horizon bars after entry.
	FixedHorizon ExitPolicy = "fixed_horizon"
	// StopTarget scans up to Horizon bars for the stop or target, stop first within a bar.
	StopTarget ExitPolicy = "stop_target"
)

type Config struct {
	InitialCapital float64
	MaxPositionPct float64
	ExitPolicy     ExitPolicy
	Horizon        int
	FeeBps         float64
	SlippageBps    float64
	// GapTolerance is the multiple of Interval tolerated between consecutive bars.
	GapTolerance float64
	// Interval is the expected bar spacing; zero infers it from the series.
	Interval time.Duration
	// Start and End bound the ticks that trade. Zero values are open.
	Start time.Time
	End   time.Time
	// TrendRegimes adds trending/ranging labels to the volatility regimes.
	TrendRegimes bool
}

func DefaultConfig() Config {
	return Config{
		InitialCapital: 100000,
		MaxPositionPct: 0.05,
		ExitPolicy:     StopTarget,
		Horizon:        10,
		GapTolerance:   1.5,
	}
}

func (c Config) validate() error {
	if c.InitialCapital <= 0 {
		return fmt.Errorf("initial capital must be positive")
	}
	if c.MaxPositionPct <= 0 || c.MaxPositionPct > 1 {
		return fmt.Errorf("max position pct must be in (0,1]")
	}
	if c.Horizon <= 0 {
		return fmt.Errorf("horizon must be positive")
	}
	switch c.ExitPolicy {
	case FixedHorizon, StopTarget:
	default:
		return fmt.Errorf("unknown exit policy %q", c.ExitPolicy)
	}
	if c.FeeBps < 0 || c.SlippageBps < 0 {
		return fmt.Errorf("fees and slippage must be non-negative")
	}
	if !c.Start.IsZero() && !c.End.IsZero() && c.End.Before(c.Start) {
		return fmt.Errorf("end before start")
	}
	return nil
}

func (c Config) inWindow(t time.Time) bool {
	if !c.Start.IsZero() && t.Before(c.Start) {
		return false
	}
	if !c.End.IsZero() && t.After(c.End) {
		return false
	}
	return true
}
