package models

import (
	"math"
	"time"
)

// Action is the trade direction proposed by a strategy oracle.
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
)

// MarketSnapshot is everything an oracle may see at one tick, built from bars up to Index.
type MarketSnapshot struct {
	Symbol     string          `json:"symbol"`
	Index      int             `json:"index"`
	Timestamp  time.Time       `json:"timestamp"`
	Bar        Bar             `json:"bar"`
	Indicators IndicatorSet    `json:"indicators"`
	Options    *OptionsContext `json:"options,omitempty"`
}

// StrategyProposal is a candidate trade. The simulator validates it but never builds one.
type StrategyProposal struct {
	Action          Action  `json:"action"`
	EntryPrice      float64 `json:"entry_price"`
	StopLoss        float64 `json:"stop_loss"`
	TakeProfit      float64 `json:"take_profit"`
	PositionSizePct float64 `json:"position_size_pct"`
	Confidence      float64 `json:"confidence"`
	Rationale       string  `json:"rationale,omitempty"`
}

// Validate checks completeness, directional ordering and the size cap.
func (p StrategyProposal) Validate(maxPositionPct float64) error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"entry_price", p.EntryPrice},
		{"stop_loss", p.StopLoss},
		{"take_profit", p.TakeProfit},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v <= 0 {
			return invalidProposal("%s must be a positive finite price", f.name)
		}
	}
	if math.IsNaN(p.PositionSizePct) || p.PositionSizePct <= 0 {
		return invalidProposal("position_size_pct must be positive")
	}
	if p.PositionSizePct > maxPositionPct {
		return invalidProposal("position_size_pct %.4f exceeds max %.4f", p.PositionSizePct, maxPositionPct)
	}
	if math.IsNaN(p.Confidence) || p.Confidence < 0 || p.Confidence > 1 {
		return invalidProposal("confidence %.4f outside [0,1]", p.Confidence)
	}
	switch p.Action {
	case Buy:
		if !(p.StopLoss < p.EntryPrice && p.EntryPrice < p.TakeProfit) {
			return invalidProposal("BUY requires stop < entry < target")
		}
	case Sell:
		if !(p.StopLoss > p.EntryPrice && p.EntryPrice > p.TakeProfit) {
			return invalidProposal("SELL requires stop > entry > target")
		}
	default:
		return invalidProposal("unknown action %q", p.Action)
	}
	return nil
}
