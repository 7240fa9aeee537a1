package models

import "time"

// ExitReason records why a simulated trade closed.
type ExitReason string

const (
	ExitHorizon ExitReason = "horizon"
	ExitStop    ExitReason = "stop"
	ExitTarget  ExitReason = "target"
	ExitEnd     ExitReason = "end_of_data"
	// ExitLiquidated marks a trade whose loss was capped at its notional.
	ExitLiquidated ExitReason = "liquidated"
)

// SimulatedTrade is one entry in the append-only trade log.
type SimulatedTrade struct {
	Seq          int             `json:"seq"`
	Action       Action          `json:"action"`
	EntryTime    time.Time       `json:"entry_time"`
	ExitTime     time.Time       `json:"exit_time"`
	EntryPrice   float64         `json:"entry_price"`
	ExitPrice    float64         `json:"exit_price"`
	Quantity     float64         `json:"quantity"`
	PositionSize float64         `json:"position_size"`
	PnL          float64         `json:"pnl"`
	Fees         float64         `json:"fees"`
	ExitReason   ExitReason      `json:"exit_reason"`
	Regime       RegimeLabel     `json:"regime"`
	Options      *OptionsContext `json:"options,omitempty"`
}

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	Timestamp time.Time `json:"t"`
	Capital   float64   `json:"capital"`
}

// Stats are the headline performance numbers.
type Stats struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	TotalPnL      float64 `json:"total_pnl"`
	AvgTrade      float64 `json:"avg_trade"`
	ProfitFactor  float64 `json:"profit_factor"`
	MaxDrawdown   float64 `json:"max_drawdown"`
	SharpeRatio   float64 `json:"sharpe_ratio"`
	FinalCapital  float64 `json:"final_capital"`
}

// RegimeStats summarizes trades entered during one regime label.
type RegimeStats struct {
	Trades   int     `json:"trades"`
	Winning  int     `json:"winning"`
	WinRate  float64 `json:"win_rate"`
	TotalPnL float64 `json:"total_pnl"`
	AvgPnL   float64 `json:"avg_pnl"`
}

// OptionsMetrics aggregates the options context recorded at entry.
type OptionsMetrics struct {
	TradesWithOptions     int      `json:"trades_with_options"`
	AvgIVRank             *float64 `json:"avg_iv_rank"`
	AvgIVPercentile       *float64 `json:"avg_iv_percentile"`
	AvgHistoricalVol      *float64 `json:"avg_historical_volatility"`
	AvgPutCallRatio       *float64 `json:"avg_put_call_ratio"`
	UndefinedPutCallCount int      `json:"undefined_put_call_count"`
	AvgGammaExposure      *float64 `json:"avg_gamma_exposure"`
}

// BacktestConfigSnapshot echoes the simulator settings used for a run.
type BacktestConfigSnapshot struct {
	InitialCapital float64   `json:"initial_capital"`
	MaxPositionPct float64   `json:"max_position_pct"`
	ExitPolicy     string    `json:"exit_policy"`
	Horizon        int       `json:"horizon"`
	FeeBps         float64   `json:"fee_bps"`
	SlippageBps    float64   `json:"slippage_bps"`
	Start          time.Time `json:"start,omitempty"`
	End            time.Time `json:"end,omitempty"`
}

// BacktestResult is a pure function of its inputs and safe to recompute.
type BacktestResult struct {
	RunID               string                      `json:"run_id"`
	Symbol              string                      `json:"symbol"`
	Timeframe           string                      `json:"timeframe"`
	CreatedAt           time.Time                   `json:"created_at"`
	Config              BacktestConfigSnapshot      `json:"config"`
	Ticks               int                         `json:"ticks"`
	Trades              []SimulatedTrade            `json:"trades"`
	EquityCurve         []EquityPoint               `json:"equity_curve"`
	Regimes             []Regime                    `json:"regimes"`
	Stats               Stats                       `json:"stats"`
	PerformanceByRegime map[RegimeLabel]RegimeStats `json:"performance_by_regime"`
	OptionsMetrics      OptionsMetrics              `json:"options_metrics"`
	RejectedProposals   int                         `json:"rejected_proposals"`
	OracleFailures      int                         `json:"oracle_failures"`
}

// BacktestSummary is the listing row of a stored run.
type BacktestSummary struct {
	RunID        string    `json:"run_id"`
	Symbol       string    `json:"symbol"`
	Timeframe    string    `json:"timeframe"`
	CreatedAt    time.Time `json:"created_at"`
	TotalTrades  int       `json:"total_trades"`
	TotalPnL     float64   `json:"total_pnl"`
	SharpeRatio  float64   `json:"sharpe_ratio"`
	MaxDrawdown  float64   `json:"max_drawdown"`
	FinalCapital float64   `json:"final_capital"`
}

// Summary projects the result onto its listing row.
func (r *BacktestResult) Summary() BacktestSummary {
	return BacktestSummary{
		RunID:        r.RunID,
		Symbol:       r.Symbol,
		Timeframe:    r.Timeframe,
		CreatedAt:    r.CreatedAt,
		TotalTrades:  r.Stats.TotalTrades,
		TotalPnL:     r.Stats.TotalPnL,
		SharpeRatio:  r.Stats.SharpeRatio,
		MaxDrawdown:  r.Stats.MaxDrawdown,
		FinalCapital: r.Stats.FinalCapital,
	}
}
