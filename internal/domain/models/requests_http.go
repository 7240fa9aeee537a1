package models

// Requests for the HTTP API. Defaults are applied by creasty/defaults before validation.

type BacktestRequest struct {
	Symbol          string  `query:"symbol" json:"symbol" validate:"required"`
	TF              string  `query:"tf" json:"tf" default:"1h" validate:"oneof=1m 5m 15m 1h 4h 1d"`
	From            string  `query:"from" json:"from"`
	To              string  `query:"to" json:"to"`
	Start           string  `query:"start" json:"start"`
	End             string  `query:"end" json:"end"`
	InitialCapital  float64 `query:"initial_capital" json:"initial_capital" default:"100000" validate:"gt=0"`
	MaxPositionPct  float64 `query:"max_position_pct" json:"max_position_pct" default:"0.05" validate:"gt=0,lte=1"`
	ExitPolicy      string  `query:"exit_policy" json:"exit_policy" default:"stop_target" validate:"oneof=fixed_horizon stop_target"`
	Horizon         int     `query:"horizon" json:"horizon" default:"10" validate:"gte=1,lte=1000"`
	FeeBps          float64 `query:"fee_bps" json:"fee_bps" validate:"gte=0,lte=500"`
	SlippageBps     float64 `query:"slippage_bps" json:"slippage_bps" validate:"gte=0,lte=500"`
	Oracle          string  `query:"oracle" json:"oracle" default:"rule" validate:"oneof=rule remote"`
	Sizer           string  `query:"sizer" json:"sizer" default:"fixed" validate:"oneof=fixed risk"`
	PositionSizePct float64 `query:"position_size_pct" json:"position_size_pct" default:"0.02" validate:"gt=0,lte=1"`
	Publish         bool    `query:"publish" json:"publish"`
}

type PatternScanRequest struct {
	Symbol         string   `query:"symbol" json:"symbol" validate:"required"`
	TF             string   `query:"tf" json:"tf" default:"1h" validate:"oneof=1m 5m 15m 1h 4h 1d"`
	From           string   `query:"from" json:"from"`
	To             string   `query:"to" json:"to"`
	Types          []string `query:"types" json:"types" validate:"dive,oneof=double_top double_bottom head_and_shoulders inverse_head_and_shoulders wyckoff_spring wyckoff_distribution orderblock liquidity_level liquidation_cascade volume_node"`
	SkipValidation bool     `query:"skip_validation" json:"skip_validation"`
	Threshold      float64  `query:"threshold" json:"threshold" default:"0.7" validate:"gte=0,lte=1"`
	Publish        bool     `query:"publish" json:"publish"`
}

type PatternEvaluateRequest struct {
	Symbol  string `query:"symbol" json:"symbol" validate:"required"`
	TF      string `query:"tf" json:"tf" default:"1h" validate:"oneof=1m 5m 15m 1h 4h 1d"`
	From    string `query:"from" json:"from"`
	To      string `query:"to" json:"to"`
	Horizon int    `query:"horizon" json:"horizon" default:"100" validate:"gte=1,lte=5000"`
}

type IndicatorRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	TF     string `query:"tf" json:"tf" default:"1h" validate:"oneof=1m 5m 15m 1h 4h 1d"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	Last   int    `query:"last" json:"last" default:"1" validate:"gte=1,lte=5000"`
}

type RegimeRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	TF     string `query:"tf" json:"tf" default:"1h" validate:"oneof=1m 5m 15m 1h 4h 1d"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	Trend  bool   `query:"trend" json:"trend"`
}
